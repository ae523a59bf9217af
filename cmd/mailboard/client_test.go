package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailboard-io/mailboard-ce/internal/models"
)

func newGatewayStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)

		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing authorization token"})
			return
		}

		switch r.Method + " " + r.URL.Path {
		case "GET /api/v1/queues":
			json.NewEncoder(w).Encode(map[string]any{"queues": []models.QueueSummary{
				{Name: "outbound-acme", Domain: "acme.test", MessageCount: 3, Status: models.QueueStatusActive},
			}})
		case "POST /api/v1/queues/outbound-acme/suspend":
			var body struct {
				Reason string `json:"reason"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "spam burst", body.Reason)
			json.NewEncoder(w).Encode(map[string]any{"queue": models.QueueSummary{
				Name: "outbound-acme", Status: models.QueueStatusSuspended,
			}})
		case "POST /api/v1/queues/outbound-acme/resume":
			json.NewEncoder(w).Encode(map[string]any{"queue": models.QueueSummary{
				Name: "outbound-acme", Status: models.QueueStatusActive,
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown queue"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestAPIClientQueues(t *testing.T) {
	srv, seen := newGatewayStub(t)
	client := newAPIClient(srv.URL, "good-token")

	t.Run("list", func(t *testing.T) {
		queues, err := client.listQueues()
		require.NoError(t, err)
		require.Len(t, queues, 1)
		assert.Equal(t, "outbound-acme", queues[0].Name)
		assert.Equal(t, 3, queues[0].MessageCount)
	})

	t.Run("suspend with reason", func(t *testing.T) {
		queue, err := client.suspendQueue("outbound-acme", "spam burst")
		require.NoError(t, err)
		assert.Equal(t, models.QueueStatusSuspended, queue.Status)
	})

	t.Run("resume", func(t *testing.T) {
		queue, err := client.resumeQueue("outbound-acme")
		require.NoError(t, err)
		assert.Equal(t, models.QueueStatusActive, queue.Status)
	})

	t.Run("gateway error surfaces its message", func(t *testing.T) {
		_, err := client.suspendQueue("nope", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown queue")
		assert.Contains(t, err.Error(), "404")
	})

	assert.Contains(t, *seen, "GET /api/v1/queues")
	assert.Contains(t, *seen, "POST /api/v1/queues/outbound-acme/suspend")
	assert.Contains(t, *seen, "POST /api/v1/queues/outbound-acme/resume")
}

func TestAPIClientBadToken(t *testing.T) {
	srv, _ := newGatewayStub(t)
	client := newAPIClient(srv.URL, "stale-token")

	_, err := client.listQueues()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing authorization token")
}
