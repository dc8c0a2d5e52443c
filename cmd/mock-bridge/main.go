// mock-bridge is a stand-in for the whatsapp-web bridge sidecar, for local
// runs and docker-compose. It fakes session lifecycle (start, ready after a
// lag, destroy) and message accept/reject depending on MOCK_MODE.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"wacast/internal/config"
	"wacast/internal/logging"
)

type bridge struct {
	cfg config.BridgeConfig

	mu      sync.Mutex
	started bool
	readyAt time.Time
	sends   int
}

func main() {
	cfg := config.LoadBridge()
	logging.Init("mock-bridge", cfg.LogFormat, cfg.LogLevel)

	b := &bridge{cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", b.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/session/start", b.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/session", b.handleDestroy).Methods(http.MethodDelete)
	r.HandleFunc("/api/messages", b.handleSend).Methods(http.MethodPost)

	slog.Info("mock bridge listening", "port", cfg.Port, "mode", cfg.Mode)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("mock bridge failed", "err", err)
		os.Exit(1)
	}
}

func (b *bridge) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.Mode == "down" {
		return false
	}
	return b.started && time.Now().After(b.readyAt)
}

func (b *bridge) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ready": b.ready()})
}

func (b *bridge) handleStart(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		http.Error(w, `{"error":"session already starting"}`, http.StatusConflict)
		return
	}
	b.started = true
	b.readyAt = time.Now().Add(b.cfg.ReadyLag)
	slog.Info("session starting", "ready_in", b.cfg.ReadyLag)
	w.WriteHeader(http.StatusAccepted)
}

func (b *bridge) handleDestroy(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		http.Error(w, `{"error":"no session"}`, http.StatusNotFound)
		return
	}
	b.started = false
	slog.Info("session destroyed")
	w.WriteHeader(http.StatusOK)
}

func (b *bridge) handleSend(w http.ResponseWriter, r *http.Request) {
	if !b.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session not ready"})
		return
	}

	var req struct {
		ChatID   string `json:"chatId"`
		Body     string `json:"body"`
		MediaURL string `json:"mediaUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chatId and body required"})
		return
	}

	b.mu.Lock()
	b.sends++
	n := b.sends
	b.mu.Unlock()

	if b.cfg.Mode == "flaky" && b.cfg.FailEvery > 0 && n%b.cfg.FailEvery == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transient send failure"})
		return
	}

	slog.Info("message accepted", "chat_id", req.ChatID, "media", req.MediaURL != "")
	writeJSON(w, http.StatusOK, map[string]string{"messageId": fmt.Sprintf("mock-%d", n)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
