package call

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HistoryRecord is posted to the history endpoint once per ended call.
type HistoryRecord struct {
	Caller    string `json:"caller"`
	Callee    string `json:"callee"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Duration  int64  `json:"duration_seconds"`
}

// HistoryReporter posts ended-call records, fire-and-forget. A failed or
// slow post never delays teardown and is only logged.
type HistoryReporter struct {
	url    string
	client *http.Client
}

// NewHistoryReporter builds a reporter for url. An empty url disables
// reporting.
func NewHistoryReporter(url string) *HistoryReporter {
	return &HistoryReporter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Report posts rec in the background.
func (r *HistoryReporter) Report(rec HistoryRecord) {
	if r == nil || r.url == "" {
		return
	}

	go func() {
		body, err := json.Marshal(rec)
		if err != nil {
			slog.Debug("encode call record", "err", err)
			return
		}

		resp, err := r.client.Post(r.url, "application/json", bytes.NewReader(body))
		if err != nil {
			slog.Debug("post call record", "err", err)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			slog.Debug("call record rejected", "status", resp.StatusCode)
		}
	}()
}
