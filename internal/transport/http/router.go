package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apppublic "teenpatti-casino/internal/app/public"
	"teenpatti-casino/internal/config"
	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/mcpserver"
	"teenpatti-casino/internal/store"
	"teenpatti-casino/internal/stream"
	"teenpatti-casino/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st store.Backend, cfg config.ServerConfig, coord *coordinator.Coordinator, hub *stream.Hub) *chi.Mux {
	publicSvc := apppublic.NewService(st, coord)
	mcpSrv := mcpserver.New(publicSvc, coord)
	wsSrv := ws.NewServer(coord, hub)

	publicHandlers := NewPublicHandlers(publicSvc, hub)
	playHandlers := NewPlayHandlers(coord)
	adminHandlers := NewAdminHandlers(st, publicSvc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Get("/ws", wsSrv.ServeHTTP)
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/rooms", publicHandlers.Rooms())
		r.Get("/sessions", publicHandlers.Sessions())
		r.Get("/sessions/{session_id}", publicHandlers.Session())
		r.Get("/sessions/{session_id}/events", publicHandlers.SessionEvents())
		r.Get("/players/{user_id}", publicHandlers.Player())

		// Player surface. Callers are trusted to name their own user_id.
		r.Group(func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/players/{user_id}/events", publicHandlers.PlayerEvents())
			r.Post("/rooms/{room}/join", playHandlers.Join())
			r.Post("/rooms/{room}/leave", playHandlers.Leave())
			r.Post("/sessions/{session_id}/actions", playHandlers.Act())
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/ledger", adminHandlers.Ledger())
			r.Post("/topup", adminHandlers.Topup())
			r.MethodFunc(http.MethodGet, "/admin/rooms", adminHandlers.Rooms())
			r.MethodFunc(http.MethodPost, "/admin/rooms", adminHandlers.Rooms())

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
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
