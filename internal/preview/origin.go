package preview

import (
	"net/http"
	"net/url"
	"strings"
)

// previewPolicy puts served documents in an opaque origin. Without
// allow-same-origin a generated page cannot read or drive the API it is
// served next to.
const previewPolicy = "sandbox allow-scripts allow-forms allow-modals allow-popups"

// sameOrigin reports whether r carries no Origin or one naming the host it
// was sent to. The opaque "null" origin never matches.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// checkSocketOrigin admits same-origin sockets. Preview documents run in an
// opaque origin, so a surface socket may also come from "null".
func checkSocketOrigin(r *http.Request) bool {
	if sameOrigin(r) {
		return true
	}
	return r.Header.Get("Origin") == "null" && r.URL.Query().Get("role") != string(roleObserver)
}

// withOriginGuard refuses cross-origin requests to the API and debug routes.
func withOriginGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if guarded(r.URL.Path) && !sameOrigin(r) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "cross-origin request refused"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func guarded(p string) bool {
	return strings.HasPrefix(p, "/api/") || p == "/api" || strings.HasPrefix(p, "/debug/")
}
