package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wacast/internal/domain"
	"wacast/internal/importer"
	"wacast/internal/phone"
	"wacast/internal/resolver"
	"wacast/internal/service"
	"wacast/internal/store"
)

type fakeStore struct {
	inserted  *store.BroadcastInsert
	summaries map[string]store.BroadcastSummary
}

func (f *fakeStore) InsertBroadcast(_ context.Context, in store.BroadcastInsert) error {
	f.inserted = &in
	return nil
}

func (f *fakeStore) GetBroadcastForWorker(context.Context, string) (store.BroadcastForWorker, error) {
	return store.BroadcastForWorker{}, store.ErrNotFound
}

func (f *fakeStore) MarkBroadcastState(context.Context, store.StateUpdate) error { return nil }
func (f *fakeStore) SetRecipientOutcome(context.Context, store.RecipientOutcomeUpdate) error {
	return nil
}
func (f *fakeStore) FinishBroadcast(context.Context, store.FinishUpdate) error { return nil }

func (f *fakeStore) GetBroadcast(_ context.Context, id string) (store.BroadcastSummary, error) {
	if s, ok := f.summaries[id]; ok {
		return s, nil
	}
	return store.BroadcastSummary{}, store.ErrNotFound
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) EnqueueBroadcast(_ context.Context, id string) error {
	f.enqueued = append(f.enqueued, id)
	return nil
}

func newTestAPI(st *fakeStore, q *fakeQueue) (*API, *Server) {
	svc := &service.BroadcastService{
		Store:    st,
		Queue:    q,
		Resolver: resolver.New(phone.New("57", "@c.us")),
	}
	api := &API{Svc: svc, Rows: &importer.CSVReader{}, MaxImportBytes: 1 << 20}
	srv := New()
	api.Register(srv.Mux)
	return api, srv
}

func TestCreateBroadcastAccepted(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	_, srv := newTestAPI(st, q)

	body := `{"phones":["3001234567","3107654321"],"message":"hola"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/broadcasts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp domain.CreateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.State != "queued" || resp.BroadcastID == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued = %v", q.enqueued)
	}
}

func TestCreateBroadcastBadJSON(t *testing.T) {
	_, srv := newTestAPI(&fakeStore{}, &fakeQueue{})

	req := httptest.NewRequest(http.MethodPost, "/v1/broadcasts", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateBroadcastMissingMessage(t *testing.T) {
	_, srv := newTestAPI(&fakeStore{}, &fakeQueue{})

	req := httptest.NewRequest(http.MethodPost, "/v1/broadcasts", strings.NewReader(`{"phones":["3001234567"]}`))
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestImportBroadcast(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	_, srv := newTestAPI(st, q)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "contacts.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("Nombre,Telefono\nAna,3001234567\nLuis,3107654321\n"))
	mw.WriteField("message", "hola {nombre}")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/broadcasts/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if st.inserted == nil || len(st.inserted.Recipients) != 2 {
		t.Fatalf("insert = %+v", st.inserted)
	}
	if st.inserted.Recipients[0].RenderedMessage != "hola Ana" {
		t.Fatalf("rendered = %q", st.inserted.Recipients[0].RenderedMessage)
	}
}

func TestGetBroadcast(t *testing.T) {
	st := &fakeStore{summaries: map[string]store.BroadcastSummary{
		"brc_1": {
			Broadcast: store.Broadcast{ID: "brc_1", State: "completed", Total: 2, SentCount: 2},
			Outcomes: []domain.SendOutcome{
				{Recipient: "3001234567", Status: domain.StatusSent, MessageID: "m1"},
				{Recipient: "3107654321", Status: domain.StatusSent, MessageID: "m2"},
			},
		},
	}}
	_, srv := newTestAPI(st, &fakeQueue{})

	req := httptest.NewRequest(http.MethodGet, "/v1/broadcasts/brc_1", nil)
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view broadcastView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != "completed" || len(view.Outcomes) != 2 {
		t.Fatalf("view = %+v", view)
	}
}

func TestGetBroadcastNotFound(t *testing.T) {
	_, srv := newTestAPI(&fakeStore{}, &fakeQueue{})

	req := httptest.NewRequest(http.MethodGet, "/v1/broadcasts/brc_missing", nil)
	rec := httptest.NewRecorder()
	srv.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
