package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type sourceStatus struct {
	ID            uint32  `json:"id"`
	Name          string  `json:"name"`
	GainLinear    float32 `json:"gain_linear"`
	GainDB        float32 `json:"gain_db"`
	Muted         bool    `json:"muted"`
	LatencyFrames int64   `json:"latency_frames"`
	BufferFill    float64 `json:"buffer_fill"`
	RMS           float64 `json:"rms"`
	DriftPPM      float64 `json:"drift_ppm"`
}

type statusResponse struct {
	SampleRate   uint32         `json:"sample_rate"`
	BufferFrames int            `json:"buffer_frames"`
	LatencyMS    float64        `json:"latency_ms"`
	BufferFill   float64        `json:"buffer_fill"`
	DriftPPM     float64        `json:"drift_ppm"`
	Sources      []sourceStatus `json:"sources"`
}

// statusClient talks to a running loopback-mixerd's HTTP control surface.
type statusClient struct {
	baseURL string
	http    *http.Client
}

func newStatusClient(baseURL string) *statusClient {
	return &statusClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *statusClient) fetchStatus() (*statusResponse, error) {
	resp, err := c.http.Get(c.baseURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("loopbackctl: no active mixer detected: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loopbackctl: status request failed: %s", resp.Status)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("loopbackctl: decoding status response: %w", err)
	}
	return &status, nil
}

func (c *statusClient) setMute(id uint32, muted bool) error {
	return c.post(fmt.Sprintf("/sources/%d/mute", id), map[string]any{"muted": muted})
}

func (c *statusClient) setGain(id uint32, linear float32) error {
	return c.post(fmt.Sprintf("/sources/%d/gain", id), map[string]any{"linear": linear})
}

func (c *statusClient) post(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loopbackctl: request to %s failed: %s", path, resp.Status)
	}
	return nil
}
