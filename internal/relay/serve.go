package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// In production you'd check r.Header.Get("Origin") against your domain.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := &Client{
			Hub:  hub,
			Conn: conn,
			Send: make(chan *signaling.Message, 256),
		}

		client.Hub.Register <- client

		// Start the client's read and write pumps in separate goroutines.
		go client.WritePump()
		go client.ReadPump()
	}
}

// CallRecord is the body accepted by the call-history endpoint. Clients post
// one record per ended call, fire-and-forget.
type CallRecord struct {
	Caller    string `json:"caller"`
	Callee    string `json:"callee"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Duration  int64  `json:"duration_seconds"`
}

// HistoryStore keeps posted call records in memory, newest last.
type HistoryStore struct {
	mu      sync.Mutex
	records []CallRecord
}

// Add appends a record to the store.
func (s *HistoryStore) Add(rec CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records returns a copy of all stored records.
func (s *HistoryStore) Records() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.records))
	copy(out, s.records)
	return out
}

// handleCalls accepts posted call records and lists stored ones.
func (s *HistoryStore) handleCalls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var rec CallRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "invalid call record", http.StatusBadRequest)
			return
		}
		s.Add(rec)
		slog.Info("call record stored",
			"caller", rec.Caller, "callee", rec.Callee, "duration_s", rec.Duration)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Records())

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// NewServeMux wires the relay's HTTP surface: websocket signaling, a health
// check, and the call-history sink.
func NewServeMux(hub *Hub, history *HistoryStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/calls", history.handleCalls)
	return mux
}

// ListenAndServe runs the relay on addr until the listener fails.
func ListenAndServe(addr string) error {
	hub := NewHub()
	go hub.Run()

	mux := NewServeMux(hub, &HistoryStore{})

	slog.Info("starting signaling relay", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
