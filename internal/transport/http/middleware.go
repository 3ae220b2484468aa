package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"party-beacon/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

const redacted = "[redacted]"

// APILogMiddleware writes one JSON access line per request, tagged with the
// hosted session.
func APILogMiddleware(sessionID string) func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("session_id", sessionID),
					slog.String("method", req.Method),
					slog.String("route", routePattern(req)),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func routePattern(req *http.Request) string {
	if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return req.URL.Path
}

// BodyCaptureMiddleware attaches truncated request and response bodies to the
// access log. Player validation tokens never reach the log.
func BodyCaptureMiddleware(maxCaptureBytes int) func(http.Handler) http.Handler {
	if maxCaptureBytes <= 0 {
		maxCaptureBytes = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqBody, err := io.ReadAll(r.Body)
			if err != nil {
				reqBody = nil
			}
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			cw := &captureWriter{ResponseWriter: w, maxBytes: maxCaptureBytes}
			next.ServeHTTP(cw, r)

			reqLog := reqBody
			if len(reqLog) > maxCaptureBytes {
				reqLog = reqLog[:maxCaptureBytes]
			}
			httplog.SetAttrs(r.Context(), slog.Any("request_body", scrubBody(reqLog)))
			httplog.SetAttrs(r.Context(), slog.Any("response_body", scrubBody(cw.body.Bytes())))
			if len(reqBody) > maxCaptureBytes || cw.truncated {
				httplog.SetAttrs(r.Context(), slog.Bool("body_truncated", true))
			}
		})
	}
}

type captureWriter struct {
	http.ResponseWriter
	body      bytes.Buffer
	maxBytes  int
	truncated bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if remain := c.maxBytes - c.body.Len(); remain >= len(p) {
		c.body.Write(p)
	} else {
		if remain > 0 {
			c.body.Write(p[:remain])
		}
		c.truncated = true
	}
	return c.ResponseWriter.Write(p)
}

// scrubBody decodes b when it is JSON and blanks every "validation" field.
// Non-JSON bodies, including truncated ones, are logged only by size.
func scrubBody(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"bytes": len(b)}
	}
	return redactValidation(out)
}

func redactValidation(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			if k == "validation" {
				t[k] = redacted
				continue
			}
			t[k] = redactValidation(inner)
		}
	case []any:
		for i, inner := range t {
			t[i] = redactValidation(inner)
		}
	}
	return v
}
