package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fixedLive int

func (f fixedLive) LiveCount() int { return int(f) }

func TestHTTPHandlerNilCollaborators(t *testing.T) {
	handler := HTTPHandler(nil, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var st Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("response parse: %v", err)
	}
	if !st.OK || st.Message != "ok" || !st.Database {
		t.Errorf("status = %+v", st)
	}
}

func TestHTTPHandlerReportsLiveTasks(t *testing.T) {
	handler := HTTPHandler(nil, fixedLive(7))
	w := httptest.NewRecorder()

	handler(w, httptest.NewRequest("GET", "/healthz", nil))

	var st Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("response parse: %v", err)
	}
	if st.LiveTasks != 7 {
		t.Errorf("LiveTasks = %d, want 7", st.LiveTasks)
	}
}
