package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/frostlinehq/frostline-backend/api/responses"
	"github.com/frostlinehq/frostline-backend/pkg/config"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
)

const guestTokenHeader = "X-Guest-Token"

// Shopper seeds the context for cart routes, which serve both signed-in
// customers and anonymous guests. A bearer token, when present, must be
// valid; the guest token header rides along either way so sign-in merge can
// see both identities in one request.
func Shopper(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := bearerToken(r); token != "" {
				seeded, err := seedClaims(ctx, cfg, logg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				ctx = seeded
			}

			if guest := strings.TrimSpace(r.Header.Get(guestTokenHeader)); guest != "" {
				ctx = WithGuestToken(ctx, guest)
				if logg != nil {
					ctx = logg.WithField(ctx, "guest_token", redactGuestToken(guest))
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redactGuestToken keeps the raw token out of the logs while leaving a stable
// handle to correlate requests by.
func redactGuestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
