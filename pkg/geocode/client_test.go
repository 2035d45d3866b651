package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

func TestResolveSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "14 Cold Chain Rd, Duluth, MN, 55802, US" {
			t.Fatalf("unexpected address param %q", got)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Fatal("api key not forwarded")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"formatted_address": "14 Cold Chain Rd, Duluth, MN 55802, USA",
				"geometry": map[string]any{
					"location": map[string]any{"lat": 46.78, "lng": -92.1},
				},
			}},
		})
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.Resolve(context.Background(), "14 Cold Chain Rd, Duluth, MN, 55802, US")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Location.Lat != 46.78 || result.Location.Lng != -92.1 {
		t.Fatalf("unexpected location %+v", result.Location)
	}
	if result.FormattedAddress == "" {
		t.Fatal("expected formatted address")
	}
}

func TestResolveZeroResultsIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS"})
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Resolve(context.Background(), "nowhere at all")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveUpstreamFailureIsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Resolve(context.Background(), "14 Cold Chain Rd")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestResolveRequiresAddress(t *testing.T) {
	client, err := NewClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Resolve(context.Background(), "   "); err == nil {
		t.Fatal("expected validation error for blank address")
	}
}
