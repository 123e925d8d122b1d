package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestDirectionCodes(t *testing.T) {
	tests := []struct {
		dir     Direction
		source  string
		target  string
		wantErr bool
	}{
		{DirectionEnToEs, "en", "es", false},
		{DirectionEsToEn, "es", "en", false},
		{Direction("fr-de"), "", "", true},
		{Direction(""), "", "", true},
	}

	for _, tt := range tests {
		source, target, err := tt.dir.Codes()
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownDirection) {
				t.Errorf("Codes(%q): expected ErrUnknownDirection, got %v", tt.dir, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Codes(%q): unexpected error: %v", tt.dir, err)
			continue
		}
		if source != tt.source || target != tt.target {
			t.Errorf("Codes(%q) = %s, %s, want %s, %s", tt.dir, source, target, tt.source, tt.target)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"one\ttwo\nthree", "one two three"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*GoogleTranslator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr := NewGoogleTranslator("test-key")
	tr.SetEndpoint(srv.URL)
	return tr, srv
}

func TestGoogleTranslate(t *testing.T) {
	var gotForm url.Values
	tr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"translations": []map[string]string{{"translatedText": "Hola"}},
			},
		})
	})

	got, err := tr.Translate(context.Background(), "Hello", DirectionEnToEs)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "Hola" {
		t.Errorf("expected Hola, got %q", got)
	}

	if gotForm.Get("q") != "Hello" || gotForm.Get("source") != "en" || gotForm.Get("target") != "es" {
		t.Errorf("unexpected request form: %v", gotForm)
	}
	if gotForm.Get("format") != "text" {
		t.Errorf("expected plain-text format marker, got %q", gotForm.Get("format"))
	}
}

func TestGoogleTranslateEmptyInputSkipsNetwork(t *testing.T) {
	called := false
	tr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	got, err := tr.Translate(context.Background(), "   \t ", DirectionEnToEs)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
	if called {
		t.Error("expected no network call for whitespace-only input")
	}
}

func TestGoogleTranslateErrorResponse(t *testing.T) {
	tr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid key"}`, http.StatusForbidden)
	})

	_, err := tr.Translate(context.Background(), "Hello", DirectionEnToEs)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", reqErr.StatusCode)
	}
	if reqErr.Body == "" {
		t.Error("expected error body to be captured")
	}
}

func TestGoogleVerifyReachable(t *testing.T) {
	tr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"translations": []map[string]string{{"translatedText": "hola"}},
			},
		})
	})

	if err := tr.VerifyReachable(context.Background(), DirectionEnToEs); err != nil {
		t.Fatalf("VerifyReachable failed: %v", err)
	}
}

func TestGoogleTranslateUnknownDirection(t *testing.T) {
	tr := NewGoogleTranslator("test-key")
	if _, err := tr.Translate(context.Background(), "Hello", Direction("xx-yy")); !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("expected ErrUnknownDirection, got %v", err)
	}
}

func TestNewTranslator(t *testing.T) {
	if _, err := NewTranslator("google", "k", ""); err != nil {
		t.Errorf("google provider: %v", err)
	}
	if _, err := NewTranslator("openai", "k", "gpt-4o-mini"); err != nil {
		t.Errorf("openai provider: %v", err)
	}
	if _, err := NewTranslator("babelfish", "k", ""); err == nil {
		t.Error("expected error for unknown provider")
	}
}
