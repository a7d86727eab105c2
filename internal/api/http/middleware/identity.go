package middleware

import (
	"net/http"
	"strings"

	"github.com/formai/engine/internal/api/auth"
)

// Headers set by the authenticating gateway in front of the engine
const (
	HeaderUserID       = "X-User-ID"
	HeaderOrganization = "X-Organization-ID"
	HeaderGroups       = "X-User-Groups"
)

// Identity reads the caller identity from trusted gateway headers. Requests
// without a user id carry no identity and are left to the authorizer.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			id := &auth.Identity{
				UserID:       userID,
				Organization: strings.TrimSpace(r.Header.Get(HeaderOrganization)),
				Groups:       splitGroups(r.Header.Get(HeaderGroups)),
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func splitGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
