package statusapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tenclass/sweet-encoder/internal/pipeline"
	"github.com/tenclass/sweet-encoder/internal/statusapi"
)

type fakeStatsProvider struct {
	stats pipeline.Stats
}

func (f fakeStatsProvider) Stats() pipeline.Stats { return f.stats }

func TestHandleHealth(t *testing.T) {
	srv := statusapi.New(fakeStatsProvider{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body[status] = %q, want ok", body["status"])
	}
}

func TestHandleStats(t *testing.T) {
	want := pipeline.Stats{FramesEncoded: 42, KeyframesSent: 3, QueueDepth: 1}
	srv := statusapi.New(fakeStatsProvider{stats: want})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got pipeline.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.FramesEncoded != want.FramesEncoded || got.KeyframesSent != want.KeyframesSent {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHandleStatsRejectsPost(t *testing.T) {
	srv := statusapi.New(fakeStatsProvider{})
	req := httptest.NewRequest(http.MethodPost, "/stats", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
