package memory

import (
	"errors"
	"sync"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
)

const (
	OpCreateResource    = "create_connection_resource"
	OpSynthesizeOffer   = "synthesize_offer"
	OpSynthesizeAnswer  = "synthesize_answer"
	OpApplyLocal        = "apply_local_description"
	OpApplyRemote       = "apply_remote_description"
	OpAddCandidate      = "add_candidate"
	OpAddStream         = "add_stream"
	OpRemoveStream      = "remove_stream"
	OpCreateDataChannel = "create_data_channel"
	OpRelease           = "release_resource"
)

var ErrReleased = errors.New("resource released")

// OfferSDP and AnswerSDP are the descriptions the engine synthesizes.
const (
	OfferSDP = "v=0\r\n" +
		"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"a=group:BUNDLE 0 1\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 103 111 9\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\n" +
		"a=rtpmap:103 ISAC/16000\r\n" +
		"a=rtpmap:111 opus/48000/2\r\n" +
		"a=fmtp:111 minptime=10;useinbandfec=1\r\n" +
		"a=rtpmap:9 G722/8000\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 98 96 102\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:1\r\n" +
		"a=rtpmap:98 VP9/90000\r\n" +
		"a=rtpmap:96 VP8/90000\r\n" +
		"a=rtpmap:102 H264/90000\r\n"

	AnswerSDP = "v=0\r\n" +
		"o=- 1833510349285718911 2 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"a=group:BUNDLE 0 1\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 103 111\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\n" +
		"a=rtpmap:103 ISAC/16000\r\n" +
		"a=rtpmap:111 opus/48000/2\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 98 96\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:1\r\n" +
		"a=rtpmap:98 VP9/90000\r\n" +
		"a=rtpmap:96 VP8/90000\r\n"
)

// Call records one request the engine received. Arg carries the SDP,
// candidate, stream id or label the request was about.
type Call struct {
	Op           string
	ConnectionID domain.ConnectionID
	Arg          string
}

type resource struct {
	id       domain.ConnectionID
	events   port.ResourceEvents
	released bool
}

func (r *resource) ConnectionID() domain.ConnectionID {
	return r.id
}

var _ port.MediaEngine = (*Engine)(nil)

// Engine is a scripted media engine. It answers every request with canned
// descriptions, records what it was asked to do and completes asynchronous
// requests from its own goroutines, the way a real stack would.
type Engine struct {
	mu        sync.Mutex
	calls     []Call
	failures  map[string]error
	resources map[domain.ConnectionID]*resource
}

func NewEngine() *Engine {
	return &Engine{
		failures:  make(map[string]error),
		resources: make(map[domain.ConnectionID]*resource),
	}
}

// FailNext makes the next request for op fail with err.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op] = err
}

func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallsFor returns the recorded requests for one connection, optionally
// restricted to the given ops.
func (e *Engine) CallsFor(id domain.ConnectionID, ops ...string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.ConnectionID != id {
			continue
		}
		if len(ops) > 0 && !contains(ops, c.Op) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Events returns the event sink registered for a live resource, so callers
// can raise engine notifications.
func (e *Engine) Events(id domain.ConnectionID) (port.ResourceEvents, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.resources[id]
	if !ok || r.released {
		return nil, false
	}
	return r.events, true
}

func (e *Engine) EmitLocalCandidate(id domain.ConnectionID, c domain.Candidate) bool {
	events, ok := e.Events(id)
	if !ok {
		return false
	}
	go events.OnLocalCandidate(c)
	return true
}

func (e *Engine) CreateConnectionResource(id domain.ConnectionID, iceServers []domain.ICEServer, constraints domain.MediaConstraints, events port.ResourceEvents) (port.Resource, error) {
	if err := e.record(OpCreateResource, id, ""); err != nil {
		return nil, err
	}
	r := &resource{id: id, events: events}
	e.mu.Lock()
	e.resources[id] = r
	e.mu.Unlock()
	return r, nil
}

func (e *Engine) SynthesizeOffer(res port.Resource, constraints domain.MediaConstraints, done port.DescriptionCallback) {
	e.synthesize(OpSynthesizeOffer, res, domain.SessionDescription{Type: domain.SDPOffer, SDP: OfferSDP}, done)
}

func (e *Engine) SynthesizeAnswer(res port.Resource, constraints domain.MediaConstraints, done port.DescriptionCallback) {
	e.synthesize(OpSynthesizeAnswer, res, domain.SessionDescription{Type: domain.SDPAnswer, SDP: AnswerSDP}, done)
}

func (e *Engine) ApplyLocalDescription(res port.Resource, desc domain.SessionDescription, done port.DoneCallback) {
	err := e.use(OpApplyLocal, res, desc.SDP)
	go done(err)
}

func (e *Engine) ApplyRemoteDescription(res port.Resource, desc domain.SessionDescription, done port.DoneCallback) {
	err := e.use(OpApplyRemote, res, desc.SDP)
	go done(err)
}

func (e *Engine) AddCandidate(res port.Resource, c domain.Candidate) error {
	return e.use(OpAddCandidate, res, c.Candidate)
}

func (e *Engine) AddStream(res port.Resource, stream domain.MediaStream) error {
	return e.use(OpAddStream, res, stream.ID)
}

func (e *Engine) RemoveStream(res port.Resource, streamID string) error {
	return e.use(OpRemoveStream, res, streamID)
}

func (e *Engine) CreateDataChannel(res port.Resource, label string) error {
	return e.use(OpCreateDataChannel, res, label)
}

func (e *Engine) ReleaseResource(res port.Resource) {
	r := res.(*resource)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: OpRelease, ConnectionID: r.id})
	r.released = true
	delete(e.resources, r.id)
}

func (e *Engine) synthesize(op string, res port.Resource, desc domain.SessionDescription, done port.DescriptionCallback) {
	if err := e.use(op, res, ""); err != nil {
		go done(domain.SessionDescription{}, err)
		return
	}
	go done(desc, nil)
}

// use records a request against a resource and returns the injected or
// release failure, if any.
func (e *Engine) use(op string, res port.Resource, arg string) error {
	r := res.(*resource)
	if err := e.record(op, r.id, arg); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return nil
}

func (e *Engine) record(op string, id domain.ConnectionID, arg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: op, ConnectionID: id, Arg: arg})
	if err, ok := e.failures[op]; ok {
		delete(e.failures, op)
		return err
	}
	return nil
}

func contains(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}
