package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"wacast/internal/domain"
	"wacast/internal/importer"
	"wacast/internal/service"
	"wacast/internal/store"
)

type API struct {
	Svc  *service.BroadcastService
	Rows importer.RowReader

	// MaxImportBytes caps multipart uploads on /v1/broadcasts/import.
	MaxImportBytes int64
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/broadcasts", a.handleCreateBroadcast).Methods(http.MethodPost)
	mux.HandleFunc("/v1/broadcasts/import", a.handleImportBroadcast).Methods(http.MethodPost)
	mux.HandleFunc("/v1/broadcasts/{id}", a.handleGetBroadcast).Methods(http.MethodGet)
}

func (a *API) handleCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	resp, err := a.Svc.PrepareBroadcast(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrMissingMessage) || errors.Is(err, domain.ErrMissingRecipients) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("prepare broadcast failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// handleImportBroadcast accepts a multipart form: a "file" part with the
// contact sheet plus "message" and optional "attachmentUrl" fields.
func (a *API) handleImportBroadcast(w http.ResponseWriter, r *http.Request) {
	if a.MaxImportBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxImportBytes)
	}
	if err := r.ParseMultipartForm(a.MaxImportBytes); err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, ErrBadForm, http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := a.Rows.Parse(file)
	if err != nil {
		slog.Warn("import parse failed", "err", err)
		http.Error(w, ErrBadCSV, http.StatusBadRequest)
		return
	}

	req := domain.BroadcastRequest{
		Rows:          rows,
		Message:       r.FormValue("message"),
		AttachmentURL: r.FormValue("attachmentUrl"),
	}

	resp, err := a.Svc.PrepareBroadcast(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrMissingMessage) || errors.Is(err, domain.ErrMissingRecipients) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("prepare broadcast failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

type broadcastView struct {
	BroadcastID string               `json:"broadcastId"`
	State       string               `json:"state"`
	Total       int                  `json:"total"`
	SentCount   int                  `json:"sentCount"`
	FailedCount int                  `json:"failedCount"`
	InputErrors []string             `json:"inputErrors,omitempty"`
	Aborted     bool                 `json:"aborted,omitempty"`
	Outcomes    []domain.SendOutcome `json:"outcomes,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func (a *API) handleGetBroadcast(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}

	summary, err := a.Svc.GetBroadcast(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, ErrNotFound, http.StatusNotFound)
			return
		}
		slog.Error("get broadcast failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	b := summary.Broadcast
	writeJSON(w, http.StatusOK, broadcastView{
		BroadcastID: b.ID,
		State:       b.State,
		Total:       b.Total,
		SentCount:   b.SentCount,
		FailedCount: b.FailedCount,
		InputErrors: b.InputErrors,
		Aborted:     b.Aborted,
		Outcomes:    summary.Outcomes,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
