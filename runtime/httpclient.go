package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	dm "github.com/luxonis/depthai-viewer/devicemgr"
)

// apiClient is a lightweight helper around http.Client for the backend REST API.
type apiClient struct {
	BaseURL string
	Auth    dm.AuthStrategy
	HTTP    *http.Client
}

// APIError is a non-2xx reply that carried a backend diagnostic.
type APIError struct {
	Status int
	Detail string
	Action dm.ErrorAction
	err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error { return e.err }

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// doJSON sends in (when non-nil) as JSON and decodes a 2xx reply into out.
// Non-2xx replies come back as *APIError wrapping a devicemgr sentinel where
// one fits; everything else is a transport failure.
func (c *apiClient) doJSON(ctx context.Context, method, path string, header http.Header, in, out interface{}) (http.Header, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Auth != nil {
		if v, e := c.Auth.AuthorizationValue(); e == nil && v != "" {
			req.Header.Set("Authorization", v)
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.Unmarshal(b, out); err != nil {
				return resp.Header, fmt.Errorf("%w: %v", dm.ErrMalformedPayload, err)
			}
		}
		return resp.Header, nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Detail: resp.Status, Action: dm.ActionNone}
	var probe struct {
		Detail string         `json:"detail"`
		Action dm.ErrorAction `json:"action"`
	}
	if json.Unmarshal(b, &probe) == nil {
		if probe.Detail != "" {
			apiErr.Detail = probe.Detail
		}
		if probe.Action == dm.ActionFullReset {
			apiErr.Action = dm.ActionFullReset
		}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		apiErr.err = dm.ErrDeviceNotFound
	case resp.StatusCode >= 500:
		apiErr.err = dm.ErrBackendUnavailable
	default:
		apiErr.err = errors.New(resp.Status)
	}
	return resp.Header, apiErr
}
