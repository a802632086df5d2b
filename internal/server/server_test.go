package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
	api "github.com/luxonis/depthai-viewer/devicemgr/internal/http"
)

func TestStartSimulatorNilBackend(t *testing.T) {
	_, _, _, err := StartSimulator(context.Background(), SimulatorConfig{})
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestStartSimulatorServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := api.NewBackend([]dm.DeviceID{3}, nil)
	_, addr, errCh, err := StartSimulator(ctx, SimulatorConfig{ListenAddr: "127.0.0.1:0", Backend: b})
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/devices")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get("http://" + addr + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "unexpected serve error %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("simulator did not stop")
	}
}
