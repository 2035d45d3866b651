package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

const (
	responseBodyReadLimit int64 = 1024
	apiKeyHeader                = "X-Api-Key"
)

var (
	errBaseURLRequired = errors.New("delivery base url is required")
)

// Client talks to the cold-chain courier quoting API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the quote timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds the courier client.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return client, nil
}

// QuoteItem describes one shipment line for quoting.
type QuoteItem struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	WeightGrams int    `json:"weight_grams"`
}

// QuoteRequest is the payload sent to the courier.
type QuoteRequest struct {
	Destination types.Coordinates `json:"destination"`
	PostalCode  string            `json:"postal_code"`
	Items       []QuoteItem       `json:"items"`
}

// Quote is a priced delivery option. ObtainedAt drives the freshness window
// checked before payment.
type Quote struct {
	QuoteID     string    `json:"quote_id"`
	ServiceTier string    `json:"service_tier"`
	FeeCents    int       `json:"fee_cents"`
	EtaMinutes  int       `json:"eta_minutes"`
	DistanceKm  float64   `json:"distance_km"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

// Fresh reports whether the quote is younger than maxAge at the given time.
func (q Quote) Fresh(at time.Time, maxAge time.Duration) bool {
	if q.ObtainedAt.IsZero() {
		return false
	}
	return at.Sub(q.ObtainedAt) <= maxAge
}

// Quotes requests delivery options for the destination and shipment lines.
func (c *Client) Quotes(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery client not configured")
	}
	if req.Destination.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination coordinates are required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one quote item is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal quote request")
	}

	endpoint := fmt.Sprintf("%s/v1/quotes", strings.TrimRight(c.baseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build quote request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute quote request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination outside delivery area")
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "quote request failed")
	}

	var apiResp struct {
		Quotes []struct {
			QuoteID     string  `json:"quote_id"`
			ServiceTier string  `json:"service_tier"`
			FeeCents    int     `json:"fee_cents"`
			EtaMinutes  int     `json:"eta_minutes"`
			DistanceKm  float64 `json:"distance_km"`
		} `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode quote response")
	}
	if len(apiResp.Quotes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no delivery options for destination")
	}

	obtained := c.now()
	quotes := make([]Quote, 0, len(apiResp.Quotes))
	for _, q := range apiResp.Quotes {
		quotes = append(quotes, Quote{
			QuoteID:     q.QuoteID,
			ServiceTier: q.ServiceTier,
			FeeCents:    q.FeeCents,
			EtaMinutes:  q.EtaMinutes,
			DistanceKm:  q.DistanceKm,
			ObtainedAt:  obtained,
		})
	}

	return quotes, nil
}
