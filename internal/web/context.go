package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetvault/internal/core"
)

// withClientMetadata adds the caller's IP and User-Agent to the context for import logs.
func withClientMetadata(r *http.Request) context.Context {
	ip := r.RemoteAddr // Already resolved by middleware.TrustedRealIP
	return core.ContextWithClient(r.Context(), ip, r.UserAgent())
}
