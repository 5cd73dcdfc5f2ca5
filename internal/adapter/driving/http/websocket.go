package http

import (
	"errors"
	"net/http"

	"github.com/Wyydra/rtcpeer/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/sdptransform"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var errMissingConnectionID = errors.New("missing connection_id")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// TODO: check Origin against a configured allow list before exposing this beyond localhost
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and relays signals for every connection id
// the browser names. Connections a client opened are closed when it leaves.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := ws.NewClient(conn)
	l := log.With().Str("client_id", client.ID()).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)
	go client.WritePump()

	owned := make(map[domain.ConnectionID]bool)
	defer func() {
		l.Info().Int("connections", len(owned)).Msg("Client disconnected")
		for id := range owned {
			if err := h.Peer.CloseConnection(id); err != nil {
				l.Debug().Err(err).Str("connection_id", id.String()).Msg("Failed to close connection")
			}
		}
		h.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		signal := msg.Signal()
		id := signal.ConnectionID
		if err := h.accept(signal); err != nil {
			l.Warn().Err(err).Str("connection_id", id.String()).Msg("Rejected signal")
			client.SendSignal(domain.NewErrorSignal(id, err))
			continue
		}

		if err := h.Hub.Bind(id, client); err != nil {
			client.SendSignal(domain.NewErrorSignal(id, err))
			continue
		}
		owned[id] = true

		if err := h.Signaling.HandleSignal(r.Context(), signal); err != nil {
			l.Error().Err(err).Str("connection_id", id.String()).Msg("Failed to handle signal")
			client.SendSignal(domain.NewErrorSignal(id, err))
			continue
		}
		if signal.Type == domain.SignalClose {
			delete(owned, id)
			h.Hub.Unbind(id)
		}
	}
}

// accept rejects frames that could never be scheduled: no connection id, or
// a description that does not parse.
func (h *Handler) accept(signal domain.Signal) error {
	if signal.ConnectionID == "" {
		return errMissingConnectionID
	}
	switch signal.Type {
	case domain.SignalOffer, domain.SignalAnswer:
		return sdptransform.Validate(signal.SDP)
	}
	return nil
}
