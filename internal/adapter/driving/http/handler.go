package http

import (
	"net/http"

	"github.com/Wyydra/rtcpeer/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/Wyydra/rtcpeer/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	Peer      *service.Peer
	Signaling *service.SignalingService
	States    port.StateRepository
	Hub       *ws.Hub
	StaticDir string
}

func NewHandler(peer *service.Peer, signaling *service.SignalingService, states port.StateRepository, hub *ws.Hub) *Handler {
	return &Handler{
		Peer:      peer,
		Signaling: signaling,
		States:    states,
		Hub:       hub,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/ws", h.ServeWS)
	r.Get("/parameters", h.Parameters)

	r.Route("/connections", func(r chi.Router) {
		r.Get("/", h.ListConnections)
		r.Get("/{id}", h.GetConnection)
		r.Delete("/{id}", h.CloseConnection)
	})

	if h.StaticDir != "" {
		fs := http.FileServer(http.Dir(h.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": h.Hub.Len(),
	})
}
