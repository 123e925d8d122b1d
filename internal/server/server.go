package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lingorelay/lingo-relay/internal/session"
)

// ControlHooks lets the HTTP layer drive the session controller without
// depending on its concrete type.
type ControlHooks struct {
	Start    func(name, direction string) error
	Stop     func() (bool, error)
	Status   func() session.Status
	Warnings func() []string
}

func Handler(hub *Hub, store SessionStore, controls ControlHooks) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, store, controls)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func Serve(addr string, hub *Hub, store SessionStore, controls ControlHooks) error {
	h := Handler(hub, store, controls)

	log.Info().Str("addr", addr).Msg("http server listening")
	return http.ListenAndServe(addr, h)
}
