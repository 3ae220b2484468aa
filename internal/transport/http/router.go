package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"party-beacon/internal/config"
	"party-beacon/internal/eventstream"
	"party-beacon/internal/host"
	"party-beacon/internal/mcpserver"
	"party-beacon/internal/store"
	"party-beacon/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the beacon endpoint, the MCP admin tools and the admin API.
// st may be nil when the host runs without Postgres, events when no live feed
// is kept.
func NewRouter(h *host.Host, st *store.Store, events *eventstream.Buffer, cfg config.HostConfig) *chi.Mux {
	mcpSrv := mcpserver.New(h)
	wsSrv := ws.NewServer(h)
	adminHandlers := NewAdminHandlers(h, st)
	apiLog := APILogMiddleware(h.SessionID())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLog).Get("/healthz", adminHandlers.Health())
	// The upgrade hijacks the connection, so no response logger here.
	r.Get("/beacon", wsSrv.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(apiLog)
		r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
		r.MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLog)
		r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))

		r.Get("/session", adminHandlers.Session())
		r.Get("/reservations", adminHandlers.Reservations())
		if events != nil {
			r.Get("/events", eventstream.Handler(events))
		}
		r.Group(func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/reservations", adminHandlers.AddReservation())
			r.Delete("/reservations/{leader_id}", adminHandlers.RemoveReservation())
			r.Delete("/players/{player_id}", adminHandlers.RemovePlayer())
			r.Post("/players/{player_id}/leader", adminHandlers.UpdatePartyLeader())
			r.Post("/pause", adminHandlers.Pause())
		})

		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
