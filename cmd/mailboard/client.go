package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

// apiClient is a thin REST client for the gateway's queue endpoints.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("gateway: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) listQueues() ([]models.QueueSummary, error) {
	var resp struct {
		Queues []models.QueueSummary `json:"queues"`
	}
	if err := c.do(http.MethodGet, "/api/v1/queues", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Queues, nil
}

func (c *apiClient) suspendQueue(name, reason string) (*models.QueueSummary, error) {
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var resp struct {
		Queue models.QueueSummary `json:"queue"`
	}
	if err := c.do(http.MethodPost, "/api/v1/queues/"+name+"/suspend", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

func (c *apiClient) resumeQueue(name string) (*models.QueueSummary, error) {
	var resp struct {
		Queue models.QueueSummary `json:"queue"`
	}
	if err := c.do(http.MethodPost, "/api/v1/queues/"+name+"/resume", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}
