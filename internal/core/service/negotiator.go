package service

import (
	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/Wyydra/rtcpeer/internal/core/sdptransform"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type operation string

const (
	opNone         operation = ""
	opCreateOffer  operation = "create_offer"
	opRemoteOffer  operation = "receive_remote_offer"
	opCreateAnswer operation = "create_answer"
	opRemoteAnswer operation = "receive_remote_answer"
)

// Negotiator is the offer/answer state machine of one connection.
//
// Every method must run on the registry's executor. Calls into the media
// engine that complete asynchronously come back as follow-up tasks, so a
// negotiator never blocks the worker and never sees two transitions overlap.
// While one of those calls is outstanding, further transitions are rejected
// with domain.ErrProtocolSequence.
type Negotiator struct {
	id          domain.ConnectionID
	engine      port.MediaEngine
	resource    port.Resource
	pipeline    sdptransform.Pipeline
	constraints domain.MediaConstraints
	submit      func(Task) error
	observers   *observerSet
	log         zerolog.Logger

	role       domain.Role
	phase      domain.Phase
	local      *domain.SessionDescription
	remote     *domain.SessionDescription
	candidates *CandidateQueue
	inFlight   operation
	closed     bool
}

func newNegotiator(id domain.ConnectionID, r *ConnectionRegistry) *Negotiator {
	return &Negotiator{
		id:          id,
		engine:      r.engine,
		pipeline:    r.pipeline,
		constraints: r.constraints,
		submit:      r.exec.Submit,
		observers:   &r.observers,
		log:         log.With().Str("connection_id", id.String()).Logger(),
		role:        domain.RoleUndecided,
		phase:       domain.PhaseNew,
		candidates:  NewCandidateQueue(),
	}
}

func (n *Negotiator) ID() domain.ConnectionID {
	return n.id
}

func (n *Negotiator) Snapshot() domain.NegotiationState {
	state := domain.NegotiationState{
		ConnectionID:      n.id,
		Role:              n.role,
		Phase:             n.phase,
		PendingCandidates: n.candidates.Len(),
		CandidatesDrained: n.candidates.Drained(),
		InFlight:          string(n.inFlight),
	}
	if n.local != nil {
		local := *n.local
		state.LocalDescription = &local
	}
	if n.remote != nil {
		remote := *n.remote
		state.RemoteDescription = &remote
	}
	return state
}

// CreateOffer makes this connection the offerer and produces the local offer.
// The offer only gets codec preference; bitrates are never injected into
// locally generated descriptions.
func (n *Negotiator) CreateOffer() error {
	const op = string(opCreateOffer)
	if n.closed {
		return n.closedError(op)
	}
	switch {
	case n.role == domain.RoleAnswerer:
		return n.reject(op, "connection is the answerer")
	case n.local != nil:
		return n.reject(op, "local description already set")
	case n.inFlight != opNone:
		return n.reject(op, "%s in progress", n.inFlight)
	}

	n.role = domain.RoleOfferer
	n.phase = domain.PhaseOfferer
	n.begin(opCreateOffer)
	n.engine.SynthesizeOffer(n.resource, n.constraints, func(desc domain.SessionDescription, err error) {
		n.resume(func() { n.offerSynthesized(desc, err) })
	})
	return nil
}

func (n *Negotiator) offerSynthesized(desc domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("synthesize_offer", err)
		return
	}
	local := n.pipeline.Local(desc)
	n.engine.ApplyLocalDescription(n.resource, local, func(err error) {
		n.resume(func() { n.localOfferApplied(local, err) })
	})
}

func (n *Negotiator) localOfferApplied(local domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("apply_local_description", err)
		return
	}
	n.local = &local
	n.phase = domain.PhaseLocalSet
	n.finish()
	n.log.Debug().Msg("Local offer set")
	n.observers.localOffer(n.id, local)
}

// ReceiveRemoteOffer makes this connection the answerer. The offer is
// rewritten with codec preference and bitrates, applied, and answered. If a
// previous attempt applied the offer but failed to answer, calling it again
// resumes at answer synthesis.
func (n *Negotiator) ReceiveRemoteOffer(desc domain.SessionDescription) error {
	const op = string(opRemoteOffer)
	if n.closed {
		return n.closedError(op)
	}
	switch {
	case desc.Type != domain.SDPOffer:
		return n.reject(op, "expected offer, got %q", desc.Type)
	case n.role == domain.RoleOfferer:
		return n.reject(op, "connection is the offerer")
	case n.inFlight != opNone:
		return n.reject(op, "%s in progress", n.inFlight)
	case n.local != nil:
		return n.reject(op, "renegotiation is not supported")
	case n.remote != nil:
		n.createAnswer()
		return nil
	}

	n.role = domain.RoleAnswerer
	n.phase = domain.PhaseAnswerer
	n.begin(opRemoteOffer)
	remote := n.pipeline.Remote(desc)
	n.engine.ApplyRemoteDescription(n.resource, remote, func(err error) {
		n.resume(func() { n.remoteOfferApplied(remote, err) })
	})
	return nil
}

func (n *Negotiator) remoteOfferApplied(remote domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("apply_remote_description", err)
		return
	}
	n.remote = &remote
	n.phase = domain.PhaseRemoteSet
	n.log.Debug().Msg("Remote offer set")
	n.drainCandidates()
	n.createAnswer()
}

func (n *Negotiator) createAnswer() {
	n.begin(opCreateAnswer)
	n.engine.SynthesizeAnswer(n.resource, n.constraints, func(desc domain.SessionDescription, err error) {
		n.resume(func() { n.answerSynthesized(desc, err) })
	})
}

func (n *Negotiator) answerSynthesized(desc domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("synthesize_answer", err)
		return
	}
	local := n.pipeline.Local(desc)
	n.engine.ApplyLocalDescription(n.resource, local, func(err error) {
		n.resume(func() { n.localAnswerApplied(local, err) })
	})
}

func (n *Negotiator) localAnswerApplied(local domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("apply_local_description", err)
		return
	}
	n.local = &local
	n.phase = domain.PhaseStable
	n.finish()
	n.log.Debug().Msg("Local answer set")
	n.observers.localAnswer(n.id, local)
}

// ReceiveRemoteAnswer completes an exchange this connection started with
// CreateOffer. Queued candidates are forwarded once the answer is applied.
func (n *Negotiator) ReceiveRemoteAnswer(desc domain.SessionDescription) error {
	const op = string(opRemoteAnswer)
	if n.closed {
		return n.closedError(op)
	}
	switch {
	case desc.Type != domain.SDPAnswer:
		return n.reject(op, "expected answer, got %q", desc.Type)
	case n.inFlight != opNone:
		return n.reject(op, "%s in progress", n.inFlight)
	case n.role != domain.RoleOfferer || n.phase != domain.PhaseLocalSet:
		return n.reject(op, "no local offer awaiting an answer (role %s, phase %s)", n.role, n.phase)
	}

	n.begin(opRemoteAnswer)
	remote := n.pipeline.Remote(desc)
	n.engine.ApplyRemoteDescription(n.resource, remote, func(err error) {
		n.resume(func() { n.remoteAnswerApplied(remote, err) })
	})
	return nil
}

func (n *Negotiator) remoteAnswerApplied(remote domain.SessionDescription, err error) {
	if err != nil {
		n.collaboratorFailed("apply_remote_description", err)
		return
	}
	n.remote = &remote
	n.drainCandidates()
	n.phase = domain.PhaseStable
	n.finish()
	n.log.Debug().Msg("Remote answer set")
}

// AddRemoteCandidate queues c until the remote description is applied and
// forwards it straight to the engine afterwards. It is valid in any phase.
func (n *Negotiator) AddRemoteCandidate(c domain.Candidate) error {
	if n.closed {
		return n.closedError("add_remote_candidate")
	}
	if n.remote == nil && n.candidates.Enqueue(c) {
		n.stateChanged()
		return nil
	}
	return n.forwardCandidate(c)
}

func (n *Negotiator) AttachLocalStream(stream domain.MediaStream) error {
	if n.closed {
		return n.closedError("attach_local_stream")
	}
	if err := n.engine.AddStream(n.resource, stream); err != nil {
		return n.collaboratorError("add_stream", err)
	}
	return nil
}

func (n *Negotiator) DetachLocalStream(streamID string) error {
	if n.closed {
		return n.closedError("detach_local_stream")
	}
	if err := n.engine.RemoveStream(n.resource, streamID); err != nil {
		return n.collaboratorError("remove_stream", err)
	}
	return nil
}

func (n *Negotiator) CreateDataChannel(label string) error {
	if n.closed {
		return n.closedError("create_data_channel")
	}
	if err := n.engine.CreateDataChannel(n.resource, label); err != nil {
		return n.collaboratorError("create_data_channel", err)
	}
	return nil
}

// close releases the engine resource. Completions still in flight are
// dropped when they arrive.
func (n *Negotiator) close() {
	if n.closed {
		return
	}
	n.closed = true
	n.phase = domain.PhaseClosed
	n.inFlight = opNone
	if n.resource != nil {
		n.engine.ReleaseResource(n.resource)
	}
	n.log.Debug().Msg("Connection closed")
}

func (n *Negotiator) drainCandidates() {
	pending := n.candidates.MarkReadyAndDrain()
	if len(pending) > 0 {
		n.log.Debug().Int("count", len(pending)).Msg("Adding queued remote candidates")
	}
	for _, c := range pending {
		n.forwardCandidate(c)
	}
}

func (n *Negotiator) forwardCandidate(c domain.Candidate) error {
	if err := n.engine.AddCandidate(n.resource, c); err != nil {
		return n.collaboratorError("add_candidate", err)
	}
	return nil
}

func (n *Negotiator) begin(op operation) {
	n.inFlight = op
	n.stateChanged()
}

func (n *Negotiator) finish() {
	n.inFlight = opNone
	n.stateChanged()
}

// resume schedules step as a follow-up task. Steps for a connection that
// has been closed in the meantime are dropped.
func (n *Negotiator) resume(step func()) {
	err := n.submit(func() {
		if n.closed {
			n.log.Debug().Msg("Dropping media engine completion for closed connection")
			return
		}
		step()
	})
	if err != nil {
		n.log.Warn().Err(err).Msg("Dropping media engine completion")
	}
}

func (n *Negotiator) stateChanged() {
	n.observers.stateChanged(n.Snapshot())
}

func (n *Negotiator) collaboratorFailed(op string, err error) {
	n.inFlight = opNone
	n.stateChanged()
	n.collaboratorError(op, err)
}

func (n *Negotiator) collaboratorError(op string, err error) error {
	return n.report(&domain.ConnectionError{
		ID:  n.id,
		Op:  op,
		Err: &domain.CollaboratorError{Op: op, Err: err},
	})
}

func (n *Negotiator) reject(op, format string, args ...any) error {
	return n.report(domain.NewSequenceError(n.id, op, format, args...))
}

func (n *Negotiator) closedError(op string) error {
	return n.report(&domain.ConnectionError{ID: n.id, Op: op, Err: domain.ErrConnectionClosed})
}

func (n *Negotiator) report(err error) error {
	n.log.Warn().Err(err).Str("phase", n.phase.String()).Msg("Connection error")
	n.observers.connectionError(n.id, err)
	return err
}
