package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/frostlinehq/frostline-backend/pkg/auth"
	"github.com/frostlinehq/frostline-backend/pkg/config"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "frostline-test",
		ExpirationMinutes: 15,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "shopper@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthRejectsMissingCredentials(t *testing.T) {
	mw := Auth(testJWT(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsContextFromBearerToken(t *testing.T) {
	cfg := testJWT()
	userID := uuid.New()
	var gotUser, gotRole string

	mw := Auth(cfg, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, userID, enums.ActorRoleCustomer))
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != userID.String() {
		t.Fatalf("expected user id %s got %q", userID, gotUser)
	}
	if gotRole != string(enums.ActorRoleCustomer) {
		t.Fatalf("expected customer role got %q", gotRole)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	mw := Auth(testJWT(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestShopperAllowsAnonymousGuests(t *testing.T) {
	mw := Shopper(testJWT(), nil)
	var gotGuest, gotUser string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGuest = GuestTokenFromContext(r.Context())
		gotUser = UserIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Guest-Token", "guest-123")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if gotGuest != "guest-123" {
		t.Fatalf("expected guest token in context, got %q", gotGuest)
	}
	if gotUser != "" {
		t.Fatalf("anonymous request must not carry a user id")
	}
}

func TestGuestTokenRedactionIsStableAndOpaque(t *testing.T) {
	token := "guest-123"
	redacted := redactGuestToken(token)

	if redacted == token {
		t.Fatalf("raw guest token must not appear in log fields")
	}
	if len(redacted) != 12 {
		t.Fatalf("expected a 12-char handle, got %q", redacted)
	}
	if redactGuestToken(token) != redacted {
		t.Fatalf("redaction must be stable for correlation")
	}
	if redactGuestToken("guest-456") == redacted {
		t.Fatalf("distinct tokens must redact to distinct handles")
	}
}

func TestShopperCarriesBothIdentities(t *testing.T) {
	cfg := testJWT()
	userID := uuid.New()
	var gotGuest, gotUser string

	mw := Shopper(cfg, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGuest = GuestTokenFromContext(r.Context())
		gotUser = UserIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, userID, enums.ActorRoleCustomer))
	req.Header.Set("X-Guest-Token", "guest-123")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != userID.String() || gotGuest != "guest-123" {
		t.Fatalf("merge needs both identities, got user=%q guest=%q", gotUser, gotGuest)
	}
}

func TestShopperRejectsInvalidBearerToken(t *testing.T) {
	mw := Shopper(testJWT(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
