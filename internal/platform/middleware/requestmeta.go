package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"hackgate/pkg/requestcontext"
)

// RequestMeta assigns a correlation ID, pins the request time, and records the
// client address. Pinning time here keeps every date-gated rule in a request
// evaluating against one instant.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ctx = requestcontext.WithClientIP(ctx, host)

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Device summarizes the caller's user agent into the context for audit
// enrichment. The raw header is not stored.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		ua := useragent.New(raw)
		name, version := ua.Browser()
		summary := name + "/" + version + " (" + ua.OS() + ")"
		ctx := requestcontext.WithUserAgent(r.Context(), summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
