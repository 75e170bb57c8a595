package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	server := startRelay(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallHistoryEndpoint(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	store := &HistoryStore{}
	server := httptest.NewServer(NewServeMux(hub, store))
	defer server.Close()

	rec := CallRecord{
		Caller:    "alice",
		Callee:    "bob",
		Status:    "ended",
		Timestamp: "2026-09-01T10:00:00Z",
		Duration:  42,
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/calls", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(server.URL + "/calls")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []CallRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestCallHistoryRejectsBadRecord(t *testing.T) {
	server := startRelay(t)

	resp, err := http.Post(server.URL+"/calls", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
