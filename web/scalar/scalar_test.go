package scalar_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mxn2020/prompt-verse-io/web/scalar"
)

func TestModuleServesReference(t *testing.T) {
	m := scalar.NewModule("/scalar", "/api/openapi.json")

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/scalar", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `data-url="/api/openapi.json"`) {
		t.Error("page does not reference the spec URL")
	}
}

func TestModuleUnknownPath(t *testing.T) {
	m := scalar.NewModule("/scalar", "/api/openapi.json")

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/scalar/missing.js", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
