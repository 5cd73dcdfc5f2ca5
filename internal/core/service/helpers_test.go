package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/rtcpeer/internal/adapter/driven/media/memory"
	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

const waitTimeout = 2 * time.Second

// recorder implements every observer interface and turns callbacks into
// "<kind>:<connection id>" events tests can wait for.
type recorder struct {
	mu      sync.Mutex
	offers  map[domain.ConnectionID]domain.SessionDescription
	answers map[domain.ConnectionID]domain.SessionDescription
	errs    map[domain.ConnectionID][]error
	events  chan string
}

func newRecorder() *recorder {
	return &recorder{
		offers:  make(map[domain.ConnectionID]domain.SessionDescription),
		answers: make(map[domain.ConnectionID]domain.SessionDescription),
		errs:    make(map[domain.ConnectionID][]error),
		events:  make(chan string, 4096),
	}
}

func (r *recorder) push(event string) {
	select {
	case r.events <- event:
	default:
	}
}

func (r *recorder) OnLocalOffer(id domain.ConnectionID, desc domain.SessionDescription) {
	r.mu.Lock()
	r.offers[id] = desc
	r.mu.Unlock()
	r.push("offer:" + id.String())
}

func (r *recorder) OnLocalAnswer(id domain.ConnectionID, desc domain.SessionDescription) {
	r.mu.Lock()
	r.answers[id] = desc
	r.mu.Unlock()
	r.push("answer:" + id.String())
}

func (r *recorder) OnLocalCandidate(id domain.ConnectionID, c domain.Candidate) {
	r.push("local_candidate:" + id.String() + ":" + c.Candidate)
}

func (r *recorder) OnStateChange(state domain.NegotiationState) {
	r.push("state:" + state.ConnectionID.String() + ":" + state.Phase.String())
}

func (r *recorder) OnConnectionClosed(id domain.ConnectionID) {
	r.push("closed:" + id.String())
}

func (r *recorder) OnConnectivityStateChange(id domain.ConnectionID, state string) {
	r.push("connectivity:" + id.String() + ":" + state)
}

func (r *recorder) OnRemoteStreamAdded(id domain.ConnectionID, stream domain.MediaStream) {
	r.push("stream_added:" + id.String() + ":" + stream.ID)
}

func (r *recorder) OnRemoteStreamRemoved(id domain.ConnectionID, stream domain.MediaStream) {
	r.push("stream_removed:" + id.String() + ":" + stream.ID)
}

func (r *recorder) OnDataChannel(id domain.ConnectionID, label string) {
	r.push("data_channel:" + id.String() + ":" + label)
}

func (r *recorder) OnDataChannelStateChange(id domain.ConnectionID, label, state string) {
	r.push("data_channel_state:" + id.String() + ":" + label + ":" + state)
}

func (r *recorder) OnDataChannelMessage(id domain.ConnectionID, msg domain.DataChannelMessage) {
	r.push("data_channel_message:" + id.String() + ":" + string(msg.Data))
}

func (r *recorder) OnConnectionError(id domain.ConnectionID, err error) {
	r.mu.Lock()
	r.errs[id] = append(r.errs[id], err)
	r.mu.Unlock()
	r.push("error:" + id.String())
}

func (r *recorder) offer(id domain.ConnectionID) domain.SessionDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offers[id]
}

func (r *recorder) answer(id domain.ConnectionID) domain.SessionDescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answers[id]
}

func (r *recorder) lastError(id domain.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.errs[id]
	if len(errs) == 0 {
		return nil
	}
	return errs[len(errs)-1]
}

// wait consumes events until want shows up.
func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case got := <-r.events:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

// newTestPeer returns a peer that has not been started, so tests can queue
// work before the worker picks anything up.
func newTestPeer(t *testing.T, params domain.ConnectionParameters) (*Peer, *memory.Engine, *recorder) {
	t.Helper()
	engine := memory.NewEngine()
	peer := NewPeer(engine, params, domain.SignalingParameters{})
	rec := newRecorder()
	if err := peer.AddObserver(rec); err != nil {
		t.Fatalf("AddObserver: %v", err)
	}
	t.Cleanup(peer.Close)
	return peer, engine, rec
}

func mustState(t *testing.T, peer *Peer, id domain.ConnectionID) domain.NegotiationState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	state, ok, err := peer.State(ctx, id)
	if err != nil {
		t.Fatalf("State(%s): %v", id, err)
	}
	if !ok {
		t.Fatalf("State(%s): connection not found", id)
	}
	return state
}

func candidate(s string) domain.Candidate {
	mid := "0"
	var index uint16
	return domain.Candidate{Candidate: s, SDPMid: &mid, SDPMLineIndex: &index}
}

func answerDesc() domain.SessionDescription {
	return domain.SessionDescription{Type: domain.SDPAnswer, SDP: memory.AnswerSDP}
}

func offerDesc() domain.SessionDescription {
	return domain.SessionDescription{Type: domain.SDPOffer, SDP: memory.OfferSDP}
}

func argsOf(calls []memory.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Arg
	}
	return out
}

func opsOf(calls []memory.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
