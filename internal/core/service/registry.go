package service

import (
	"fmt"
	"sort"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/Wyydra/rtcpeer/internal/core/sdptransform"
	"github.com/rs/zerolog/log"
)

// ConnectionRegistry owns every Negotiator, keyed by connection id.
//
// The registry is not safe for concurrent use and does not try to be: all of
// its methods, and all methods of the negotiators it hands out, must be called
// from tasks running on exec. That confinement is what serializes signaling
// for a connection, and across connections.
type ConnectionRegistry struct {
	exec        *SerialExecutor
	engine      port.MediaEngine
	params      domain.ConnectionParameters
	signaling   domain.SignalingParameters
	pipeline    sdptransform.Pipeline
	constraints domain.MediaConstraints

	connections map[domain.ConnectionID]*Negotiator
	observers   observerSet
}

// NewConnectionRegistry captures params and signaling once; every connection
// created later shares them.
func NewConnectionRegistry(exec *SerialExecutor, engine port.MediaEngine, params domain.ConnectionParameters, signaling domain.SignalingParameters) *ConnectionRegistry {
	return &ConnectionRegistry{
		exec:        exec,
		engine:      engine,
		params:      params,
		signaling:   signaling,
		pipeline:    sdptransform.NewPipeline(params),
		constraints: params.MediaConstraints(),
		connections: make(map[domain.ConnectionID]*Negotiator),
	}
}

// AddObserver registers o under every observer interface from package port
// that it implements. Call it before the executor starts or from a task.
func (r *ConnectionRegistry) AddObserver(o any) {
	if !r.observers.add(o) {
		log.Warn().Str("observer", fmt.Sprintf("%T", o)).Msg("Observer implements no observer interface")
	}
}

// Create registers a new connection and allocates its engine resource.
func (r *ConnectionRegistry) Create(id domain.ConnectionID) (Handle, error) {
	if _, ok := r.connections[id]; ok {
		return Handle{}, &domain.ConnectionError{ID: id, Op: "create", Err: domain.ErrAlreadyExists}
	}

	n := newNegotiator(id, r)
	res, err := r.engine.CreateConnectionResource(id, r.signaling.ICEServers, r.constraints, &resourceEvents{n: n})
	if err != nil {
		return Handle{}, &domain.ConnectionError{
			ID:  id,
			Op:  "create",
			Err: &domain.CollaboratorError{Op: "create_connection_resource", Err: err},
		}
	}
	n.resource = res
	r.connections[id] = n

	log.Info().Str("connection_id", id.String()).Int("count", len(r.connections)).Msg("Connection created")
	n.stateChanged()
	return Handle{id: id, registry: r}, nil
}

func (r *ConnectionRegistry) Get(id domain.ConnectionID) (Handle, bool) {
	if _, ok := r.connections[id]; !ok {
		return Handle{}, false
	}
	return Handle{id: id, registry: r}, true
}

// Close removes the connection and releases its engine resource. Closing an
// unknown or already closed id does nothing.
func (r *ConnectionRegistry) Close(id domain.ConnectionID) {
	n, ok := r.connections[id]
	if !ok {
		return
	}
	delete(r.connections, id)
	n.close()
	log.Info().Str("connection_id", id.String()).Int("count", len(r.connections)).Msg("Connection removed")
	r.observers.connectionClosed(id)
}

func (r *ConnectionRegistry) CloseAll() {
	for _, id := range r.IDs() {
		r.Close(id)
	}
}

func (r *ConnectionRegistry) Len() int {
	return len(r.connections)
}

// IDs returns the registered ids in sorted order.
func (r *ConnectionRegistry) IDs() []domain.ConnectionID {
	ids := make([]domain.ConnectionID, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *ConnectionRegistry) reportError(id domain.ConnectionID, err error) {
	log.Warn().Err(err).Str("connection_id", id.String()).Msg("Connection error")
	r.observers.connectionError(id, err)
}

// Handle refers to a connection by id. It does not keep the connection
// alive: once the registry closes the id, every lookup through the handle
// reports absent.
type Handle struct {
	id       domain.ConnectionID
	registry *ConnectionRegistry
}

func (h Handle) ID() domain.ConnectionID {
	return h.id
}

func (h Handle) Negotiator() (*Negotiator, bool) {
	if h.registry == nil {
		return nil, false
	}
	n, ok := h.registry.connections[h.id]
	return n, ok
}

func (h Handle) Snapshot() (domain.NegotiationState, bool) {
	n, ok := h.Negotiator()
	if !ok {
		return domain.NegotiationState{}, false
	}
	return n.Snapshot(), true
}
