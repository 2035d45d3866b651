package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

func testRequest() QuoteRequest {
	return QuoteRequest{
		Destination: types.Coordinates{Lat: 46.78, Lng: -92.1},
		PostalCode:  "55802",
		Items: []QuoteItem{
			{ProductID: "prod-1", Quantity: 2, WeightGrams: 900},
		},
	}
}

func TestQuotesSuccessStampsObtainedAt(t *testing.T) {
	fixed := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "courier-key" {
			t.Fatal("api key header not set")
		}
		var req QuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Items) != 1 || req.Items[0].WeightGrams != 900 {
			t.Fatalf("unexpected items %+v", req.Items)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"quotes": []map[string]any{
				{"quote_id": "q-1", "service_tier": "frozen_standard", "fee_cents": 1299, "eta_minutes": 90, "distance_km": 4.2},
				{"quote_id": "q-2", "service_tier": "frozen_express", "fee_cents": 2499, "eta_minutes": 45, "distance_km": 4.2},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "courier-key", WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	quotes, err := client.Quotes(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("quotes failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].FeeCents != 1299 || quotes[1].ServiceTier != "frozen_express" {
		t.Fatalf("quotes not mapped: %+v", quotes)
	}
	for _, q := range quotes {
		if !q.ObtainedAt.Equal(fixed) {
			t.Fatalf("obtained_at not stamped: %v", q.ObtainedAt)
		}
	}
}

func TestQuoteFreshness(t *testing.T) {
	obtained := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	q := Quote{ObtainedAt: obtained}

	if !q.Fresh(obtained.Add(5*time.Minute), 10*time.Minute) {
		t.Fatal("quote inside window should be fresh")
	}
	if q.Fresh(obtained.Add(11*time.Minute), 10*time.Minute) {
		t.Fatal("quote outside window should be stale")
	}
	if (Quote{}).Fresh(obtained, 10*time.Minute) {
		t.Fatal("zero obtained_at should never be fresh")
	}
}

func TestQuotesOutsideDeliveryArea(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Quotes(context.Background(), testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuotesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Quotes(context.Background(), testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestQuotesValidatesInput(t *testing.T) {
	client, err := NewClient("http://localhost:1", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Quotes(context.Background(), QuoteRequest{}); err == nil {
		t.Fatal("expected validation error for zero destination")
	}

	req := testRequest()
	req.Items = nil
	if _, err := client.Quotes(context.Background(), req); err == nil {
		t.Fatal("expected validation error for empty items")
	}
}
