// ABOUTME: Client version check middleware for the development auth server
// ABOUTME: Rejects requests whose X-Client-Version major.minor differs from the server's

package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/coven-signin/internal/apiclient"
	"github.com/2389/coven-signin/internal/apierr"
)

// majorMinor returns the first two dot-separated components of v.
func majorMinor(v string) string {
	parts := strings.SplitN(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}

// versionCheck refuses requests from incompatible clients. Requests without
// the header are let through.
func versionCheck(serverVersion string, next http.Handler) http.Handler {
	want := majorMinor(serverVersion)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(apiclient.HeaderClientVersion)
		if got != "" && majorMinor(got) != want {
			writeErrors(w, http.StatusBadRequest, apierr.Detail{
				Message:   fmt.Sprintf("Client request for %s does not match server version %s.", got, serverVersion),
				ErrorType: apierr.ErrorTypeVersionMismatch,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
