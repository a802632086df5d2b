package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
)

// PersistedState is the part of a session that survives a viewer restart.
// Device selection and subscriptions are not kept: a new process has to
// pick a device again.
type PersistedState struct {
	DeviceConfig   dm.DeviceConfig `yaml:"device_config"`
	NeuralNetworks []dm.AIModel    `yaml:"neural_networks"`
}

func LoadPersisted(path string) (*PersistedState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p PersistedState
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &p, nil
}

func (p PersistedState) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
