package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type descriptionDTO struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type stateDTO struct {
	ConnectionID      string          `json:"connection_id"`
	Role              string          `json:"role"`
	Phase             string          `json:"phase"`
	LocalDescription  *descriptionDTO `json:"local_description,omitempty"`
	RemoteDescription *descriptionDTO `json:"remote_description,omitempty"`
	PendingCandidates int             `json:"pending_candidates"`
	CandidatesDrained bool            `json:"candidates_drained"`
	InFlight          string          `json:"in_flight,omitempty"`
}

func newStateDTO(state domain.NegotiationState) stateDTO {
	return stateDTO{
		ConnectionID:      state.ConnectionID.String(),
		Role:              state.Role.String(),
		Phase:             state.Phase.String(),
		LocalDescription:  newDescriptionDTO(state.LocalDescription),
		RemoteDescription: newDescriptionDTO(state.RemoteDescription),
		PendingCandidates: state.PendingCandidates,
		CandidatesDrained: state.CandidatesDrained,
		InFlight:          state.InFlight,
	}
}

func newDescriptionDTO(desc *domain.SessionDescription) *descriptionDTO {
	if desc == nil {
		return nil
	}
	return &descriptionDTO{Type: string(desc.Type), SDP: desc.SDP}
}

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	states, err := h.States.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]stateDTO, 0, len(states))
	for _, state := range states {
		out = append(out, newStateDTO(state))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id := domain.ConnectionID(chi.URLParam(r, "id"))
	state, err := h.States.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateDTO(state))
}

// CloseConnection schedules the close and answers before it has run.
func (h *Handler) CloseConnection(w http.ResponseWriter, r *http.Request) {
	id := domain.ConnectionID(chi.URLParam(r, "id"))
	if err := h.Peer.CloseConnection(id); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.Hub.Unbind(id)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
