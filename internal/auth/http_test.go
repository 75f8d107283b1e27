// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Covers bearer token extraction, principal resolution and role gating

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridianbank/advisor-gateway/internal/identity"
)

// fakeDirectory resolves from a fixed map.
type fakeDirectory struct {
	principals map[string]*identity.Principal
}

func (d *fakeDirectory) Resolve(_ context.Context, id string) (*identity.Principal, error) {
	p, ok := d.principals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrUnknownPrincipal, id)
	}
	return p, nil
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   bool
	}{
		{name: "valid", header: "Bearer abc123", wantToken: "abc123"},
		{name: "missing header", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc123", wantErr: true},
		{name: "empty token", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if tt.wantErr {
				if errMsg == "" {
					t.Error("expected an error message")
				}
				return
			}
			if errMsg != "" {
				t.Fatalf("unexpected error: %s", errMsg)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{principals: map[string]*identity.Principal{
		"advisor-1": {ID: "advisor-1", Role: identity.RoleAdvisor, Name: "Ana"},
	}}

	var gotPrincipal *identity.Principal
	handler := Middleware(verifier, directory)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := verifier.Generate("advisor-1", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotPrincipal == nil || gotPrincipal.ID != "advisor-1" {
		t.Errorf("principal not in context: %+v", gotPrincipal)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{principals: map[string]*identity.Principal{}}

	handler := Middleware(verifier, directory)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	// No header
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rec.Code)
	}

	// Bad token
	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	// Valid token but the subject no longer resolves
	token, err := verifier.Generate("deleted-user", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown principal: status = %d, want 401", rec.Code)
	}
}

func TestRequireStaff(t *testing.T) {
	tests := []struct {
		name       string
		principal  *identity.Principal
		wantStatus int
	}{
		{name: "advisor", principal: &identity.Principal{ID: "a", Role: identity.RoleAdvisor}, wantStatus: http.StatusOK},
		{name: "director", principal: &identity.Principal{ID: "d", Role: identity.RoleDirector}, wantStatus: http.StatusOK},
		{name: "client", principal: &identity.Principal{ID: "c", Role: identity.RoleClient}, wantStatus: http.StatusForbidden},
		{name: "unauthenticated", principal: nil, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireStaff()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
