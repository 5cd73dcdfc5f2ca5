package service

import (
	"context"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
)

// Peer is the asynchronous entry point to the signaling core. Each method
// schedules a task on the executor and returns at once; outcomes reach the
// registered observers. The only error a method returns is
// ErrExecutorStopped.
type Peer struct {
	exec     *SerialExecutor
	registry *ConnectionRegistry
}

func NewPeer(engine port.MediaEngine, params domain.ConnectionParameters, signaling domain.SignalingParameters) *Peer {
	exec := NewSerialExecutor()
	return &Peer{
		exec:     exec,
		registry: NewConnectionRegistry(exec, engine, params, signaling),
	}
}

// Parameters returns the connection parameters every connection shares.
// They never change, so it is safe to call from any goroutine.
func (p *Peer) Parameters() domain.ConnectionParameters {
	return p.registry.params
}

func (p *Peer) Start() {
	p.exec.Start()
}

// AddObserver schedules the registration of o. Observers added before Start
// see every event.
func (p *Peer) AddObserver(o any) error {
	return p.exec.Submit(func() { p.registry.AddObserver(o) })
}

// GenerateOffer creates the connection if it does not exist yet and makes it
// the offerer.
func (p *Peer) GenerateOffer(id domain.ConnectionID) error {
	return p.exec.Submit(func() {
		n, err := p.lookupOrCreate(id)
		if err != nil {
			p.registry.reportError(id, err)
			return
		}
		_ = n.CreateOffer()
	})
}

// ProcessOffer creates the connection if it does not exist yet and answers
// the remote offer.
func (p *Peer) ProcessOffer(id domain.ConnectionID, desc domain.SessionDescription) error {
	return p.exec.Submit(func() {
		n, err := p.lookupOrCreate(id)
		if err != nil {
			p.registry.reportError(id, err)
			return
		}
		_ = n.ReceiveRemoteOffer(desc)
	})
}

func (p *Peer) ProcessAnswer(id domain.ConnectionID, desc domain.SessionDescription) error {
	return p.withConnection(id, "receive_remote_answer", func(n *Negotiator) error {
		return n.ReceiveRemoteAnswer(desc)
	})
}

func (p *Peer) AddRemoteCandidate(id domain.ConnectionID, c domain.Candidate) error {
	return p.withConnection(id, "add_remote_candidate", func(n *Negotiator) error {
		return n.AddRemoteCandidate(c)
	})
}

func (p *Peer) AttachLocalStream(id domain.ConnectionID, stream domain.MediaStream) error {
	return p.withConnection(id, "attach_local_stream", func(n *Negotiator) error {
		return n.AttachLocalStream(stream)
	})
}

func (p *Peer) DetachLocalStream(id domain.ConnectionID, streamID string) error {
	return p.withConnection(id, "detach_local_stream", func(n *Negotiator) error {
		return n.DetachLocalStream(streamID)
	})
}

func (p *Peer) CreateDataChannel(id domain.ConnectionID, label string) error {
	return p.withConnection(id, "create_data_channel", func(n *Negotiator) error {
		return n.CreateDataChannel(label)
	})
}

// CloseConnection releases the connection. Unknown ids are ignored.
func (p *Peer) CloseConnection(id domain.ConnectionID) error {
	return p.exec.Submit(func() { p.registry.Close(id) })
}

// Close releases every connection, runs whatever is still queued and stops
// the executor. It blocks until the worker exits and must not be called from
// an observer.
func (p *Peer) Close() {
	_ = p.exec.Submit(p.registry.CloseAll)
	p.exec.Stop()
}

// State returns a snapshot of one connection. It waits for the executor and
// must not be called from an observer.
func (p *Peer) State(ctx context.Context, id domain.ConnectionID) (domain.NegotiationState, bool, error) {
	var (
		state domain.NegotiationState
		ok    bool
	)
	err := p.exec.Do(ctx, func() {
		var h Handle
		if h, ok = p.registry.Get(id); ok {
			state, ok = h.Snapshot()
		}
	})
	return state, ok, err
}

func (p *Peer) lookupOrCreate(id domain.ConnectionID) (*Negotiator, error) {
	h, ok := p.registry.Get(id)
	if !ok {
		var err error
		if h, err = p.registry.Create(id); err != nil {
			return nil, err
		}
	}
	n, _ := h.Negotiator()
	return n, nil
}

func (p *Peer) withConnection(id domain.ConnectionID, op string, fn func(n *Negotiator) error) error {
	return p.exec.Submit(func() {
		h, ok := p.registry.Get(id)
		if !ok {
			p.registry.reportError(id, &domain.ConnectionError{ID: id, Op: op, Err: domain.ErrNotFound})
			return
		}
		n, _ := h.Negotiator()
		_ = fn(n)
	})
}
