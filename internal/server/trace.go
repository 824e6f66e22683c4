package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tube-curator/internal/observability/logging"
)

const (
	traceHeader         = "X-Trace-Id"
	legacyRequestHeader = "X-Request-Id"
)

type idGenerator func() string

// traceMiddleware resolves the request's trace id and threads it through the
// context and the response. The legacy X-Request-Id header wins over
// X-Trace-Id so older internal tooling keeps its correlation ids; responses
// always carry the current header regardless of what the client sent.
// Operational probe paths skip correlation entirely.
func traceMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return traceMiddlewareWithGenerator(logger, newTraceID, next)
}

func traceMiddlewareWithGenerator(logger *slog.Logger, generator idGenerator, next http.Handler) http.Handler {
	if generator == nil {
		generator = newTraceID
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if operationalPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		traceID := strings.TrimSpace(r.Header.Get(legacyRequestHeader))
		if traceID == "" {
			traceID = strings.TrimSpace(r.Header.Get(traceHeader))
		}
		if traceID == "" {
			traceID = generator()
		}

		ctx := logging.ContextWithTraceID(r.Context(), traceID)
		ctxLogger := logging.WithContext(ctx, logger)
		ctx = logging.ContextWithLogger(ctx, ctxLogger)

		w.Header().Set(traceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}
