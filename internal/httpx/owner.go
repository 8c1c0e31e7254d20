package httpx

import (
	"context"
	"net/http"
	"strings"
)

// HeaderUserID carries the authenticated subject set by the gateway after it
// validated the caller's token.
const HeaderUserID = "X-User-Id"

type ownerKey struct{}

// RequireOwner rejects requests without an identity. The identity is opaque
// here; it is only used as a key.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Detail: "missing " + HeaderUserID})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	s, _ := ctx.Value(ownerKey{}).(string)
	return s
}
