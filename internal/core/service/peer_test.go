package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Wyydra/rtcpeer/internal/adapter/driven/media/memory"
	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

var errBoom = errors.New("boom")

func TestPeerOffererLifecycle(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	id := domain.ConnectionID("peer1")
	peer.Start()

	if err := peer.GenerateOffer(id); err != nil {
		t.Fatalf("GenerateOffer: %v", err)
	}
	rec.wait(t, "offer:peer1")

	state := mustState(t, peer, id)
	if state.Role != domain.RoleOfferer || state.Phase != domain.PhaseLocalSet {
		t.Fatalf("after offer: role %s phase %s", state.Role, state.Phase)
	}
	if state.LocalDescription == nil || state.LocalDescription.Type != domain.SDPOffer {
		t.Fatalf("local description = %+v", state.LocalDescription)
	}
	offer := rec.offer(id)
	if !strings.Contains(offer.SDP, "m=audio 9 UDP/TLS/RTP/SAVPF 111 103 9\r\n") {
		t.Errorf("opus not preferred in offer:\n%s", offer.SDP)
	}
	if !strings.Contains(offer.SDP, "m=video 9 UDP/TLS/RTP/SAVPF 96 98 102\r\n") {
		t.Errorf("VP8 not preferred in offer:\n%s", offer.SDP)
	}

	c1, c2 := candidate("candidate:1 1 udp 2122260223 10.0.0.1 50000 typ host"), candidate("candidate:2 1 udp 2122260223 10.0.0.2 50001 typ host")
	_ = peer.AddRemoteCandidate(id, c1)
	_ = peer.AddRemoteCandidate(id, c2)
	if err := peer.ProcessAnswer(id, answerDesc()); err != nil {
		t.Fatalf("ProcessAnswer: %v", err)
	}
	rec.wait(t, "state:peer1:STABLE")

	ops := opsOf(engine.CallsFor(id, memory.OpApplyRemote, memory.OpAddCandidate))
	wantOps := []string{memory.OpApplyRemote, memory.OpAddCandidate, memory.OpAddCandidate}
	if !equalStrings(ops, wantOps) {
		t.Errorf("engine calls = %v, want %v", ops, wantOps)
	}
	got := argsOf(engine.CallsFor(id, memory.OpAddCandidate))
	if want := []string{c1.Candidate, c2.Candidate}; !equalStrings(got, want) {
		t.Errorf("forwarded candidates = %v, want %v", got, want)
	}

	state = mustState(t, peer, id)
	if state.Phase != domain.PhaseStable || state.RemoteDescription == nil {
		t.Errorf("after answer: phase %s remote %v", state.Phase, state.RemoteDescription)
	}
	if state.PendingCandidates != 0 || !state.CandidatesDrained {
		t.Errorf("candidate queue: pending %d drained %v", state.PendingCandidates, state.CandidatesDrained)
	}

	_ = peer.CloseConnection(id)
	rec.wait(t, "closed:peer1")

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if _, ok, err := peer.State(ctx, id); err != nil || ok {
		t.Errorf("State after close: ok %v err %v", ok, err)
	}
	if n := len(engine.CallsFor(id, memory.OpRelease)); n != 1 {
		t.Errorf("release calls = %d, want 1", n)
	}
}

func TestQueuedCandidatesDrainOnce(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	id := domain.ConnectionID("a")

	_ = peer.GenerateOffer(id)
	want := []string{"c1", "c2", "c3"}
	for _, c := range want {
		_ = peer.AddRemoteCandidate(id, candidate(c))
	}
	peer.Start()
	rec.wait(t, "offer:a")

	if state := mustState(t, peer, id); state.PendingCandidates != 3 {
		t.Fatalf("pending candidates = %d, want 3", state.PendingCandidates)
	}
	if n := len(engine.CallsFor(id, memory.OpAddCandidate)); n != 0 {
		t.Fatalf("%d candidates forwarded before the remote description", n)
	}

	_ = peer.ProcessAnswer(id, answerDesc())
	rec.wait(t, "state:a:STABLE")

	if got := argsOf(engine.CallsFor(id, memory.OpAddCandidate)); !equalStrings(got, want) {
		t.Errorf("forwarded candidates = %v, want %v", got, want)
	}

	var again []domain.Candidate
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	err := peer.exec.Do(ctx, func() {
		h, _ := peer.registry.Get(id)
		n, _ := h.Negotiator()
		again = n.candidates.MarkReadyAndDrain()
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second drain returned %d candidates", len(again))
	}

	_ = peer.AddRemoteCandidate(id, candidate("c4"))
	mustState(t, peer, id)
	if got := argsOf(engine.CallsFor(id, memory.OpAddCandidate)); len(got) != 4 || got[3] != "c4" {
		t.Errorf("late candidate not forwarded directly: %v", got)
	}
}

func TestRemoteDescriptionGetsBitrates(t *testing.T) {
	params := domain.DefaultConnectionParameters()
	params.VideoStartBitrate = 300
	params.AudioStartBitrate = 32
	peer, engine, rec := newTestPeer(t, params)
	id := domain.ConnectionID("a")
	peer.Start()

	_ = peer.GenerateOffer(id)
	rec.wait(t, "offer:a")
	if sdp := rec.offer(id).SDP; strings.Contains(sdp, "x-google-start-bitrate") || strings.Contains(sdp, "maxaveragebitrate") {
		t.Errorf("local offer carries bitrates:\n%s", sdp)
	}

	_ = peer.ProcessAnswer(id, answerDesc())
	rec.wait(t, "state:a:STABLE")

	calls := engine.CallsFor(id, memory.OpApplyRemote)
	if len(calls) != 1 {
		t.Fatalf("apply_remote calls = %d", len(calls))
	}
	remote := calls[0].Arg
	for _, want := range []string{
		"m=audio 9 UDP/TLS/RTP/SAVPF 111 103\r\n",
		"m=video 9 UDP/TLS/RTP/SAVPF 96 98\r\n",
		"a=rtpmap:96 VP8/90000\r\na=fmtp:96 x-google-start-bitrate=300\r\n",
		"a=rtpmap:98 VP9/90000\r\na=fmtp:98 x-google-start-bitrate=300\r\n",
		"a=rtpmap:111 opus/48000/2\r\na=fmtp:111 maxaveragebitrate=32000\r\n",
	} {
		if !strings.Contains(remote, want) {
			t.Errorf("remote description missing %q:\n%s", want, remote)
		}
	}
}

func TestAnswererDrainsBeforeAnswer(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	id := domain.ConnectionID("b")

	_ = peer.ProcessOffer(id, offerDesc())
	_ = peer.AddRemoteCandidate(id, candidate("c1"))
	_ = peer.AddRemoteCandidate(id, candidate("c2"))
	peer.Start()
	rec.wait(t, "answer:b")

	got := opsOf(engine.CallsFor(id))
	want := []string{
		memory.OpCreateResource,
		memory.OpApplyRemote,
		memory.OpAddCandidate,
		memory.OpAddCandidate,
		memory.OpSynthesizeAnswer,
		memory.OpApplyLocal,
	}
	if !equalStrings(got, want) {
		t.Errorf("engine calls = %v, want %v", got, want)
	}

	state := mustState(t, peer, id)
	if state.Role != domain.RoleAnswerer || state.Phase != domain.PhaseStable {
		t.Errorf("role %s phase %s", state.Role, state.Phase)
	}
	if sdp := rec.answer(id).SDP; !strings.Contains(sdp, "m=audio 9 UDP/TLS/RTP/SAVPF 111 103\r\n") {
		t.Errorf("opus not preferred in answer:\n%s", sdp)
	}
}

func TestRoleIsFixedOnceChosen(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()

	_ = peer.ProcessOffer("b", offerDesc())
	rec.wait(t, "answer:b")
	_ = peer.GenerateOffer("b")
	rec.wait(t, "error:b")

	if err := rec.lastError("b"); !errors.Is(err, domain.ErrProtocolSequence) {
		t.Errorf("createOffer on answerer: %v", err)
	}
	if state := mustState(t, peer, "b"); state.Role != domain.RoleAnswerer {
		t.Errorf("role changed to %s", state.Role)
	}
	if n := len(engine.CallsFor("b", memory.OpSynthesizeOffer)); n != 0 {
		t.Errorf("synthesize_offer called %d times", n)
	}

	_ = peer.GenerateOffer("a")
	rec.wait(t, "offer:a")
	_ = peer.ProcessOffer("a", offerDesc())
	rec.wait(t, "error:a")
	if err := rec.lastError("a"); !errors.Is(err, domain.ErrProtocolSequence) {
		t.Errorf("remote offer on offerer: %v", err)
	}
}

func TestWrongDescriptionTypeRejected(t *testing.T) {
	peer, _, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()

	_ = peer.ProcessOffer("a", answerDesc())
	rec.wait(t, "error:a")
	if err := rec.lastError("a"); !errors.Is(err, domain.ErrProtocolSequence) {
		t.Errorf("answer passed as offer: %v", err)
	}
	if state := mustState(t, peer, "a"); state.Role != domain.RoleUndecided {
		t.Errorf("role = %s, want UNDECIDED", state.Role)
	}
}

func TestOfferRetryAfterEngineFailure(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	engine.FailNext(memory.OpSynthesizeOffer, errBoom)
	peer.Start()

	_ = peer.GenerateOffer("a")
	rec.wait(t, "error:a")

	err := rec.lastError("a")
	var collab *domain.CollaboratorError
	if !errors.As(err, &collab) || collab.Op != memory.OpSynthesizeOffer || !errors.Is(err, errBoom) {
		t.Fatalf("error = %v", err)
	}
	state := mustState(t, peer, "a")
	if state.Phase != domain.PhaseOfferer || state.InFlight != "" || state.LocalDescription != nil {
		t.Fatalf("after failure: phase %s in flight %q local %v", state.Phase, state.InFlight, state.LocalDescription)
	}

	_ = peer.GenerateOffer("a")
	rec.wait(t, "offer:a")
}

func TestAnswerRetryResumesAtSynthesis(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	engine.FailNext(memory.OpSynthesizeAnswer, errBoom)
	peer.Start()

	_ = peer.ProcessOffer("b", offerDesc())
	rec.wait(t, "error:b")
	if state := mustState(t, peer, "b"); state.Phase != domain.PhaseRemoteSet {
		t.Fatalf("phase = %s, want REMOTE_SET", state.Phase)
	}

	_ = peer.ProcessOffer("b", offerDesc())
	rec.wait(t, "answer:b")
	if n := len(engine.CallsFor("b", memory.OpApplyRemote)); n != 1 {
		t.Errorf("remote offer applied %d times", n)
	}
}

func TestRemoteAnswerRetryAfterApplyFailure(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()

	_ = peer.GenerateOffer("a")
	rec.wait(t, "offer:a")
	engine.FailNext(memory.OpApplyRemote, errBoom)
	_ = peer.ProcessAnswer("a", answerDesc())
	rec.wait(t, "error:a")

	state := mustState(t, peer, "a")
	if state.Phase != domain.PhaseLocalSet || state.RemoteDescription != nil || state.CandidatesDrained {
		t.Fatalf("after failure: phase %s remote %v drained %v", state.Phase, state.RemoteDescription, state.CandidatesDrained)
	}

	_ = peer.ProcessAnswer("a", answerDesc())
	rec.wait(t, "state:a:STABLE")
}

func TestOperationRejectedWhileInFlight(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	_ = peer.GenerateOffer("a")
	_ = peer.GenerateOffer("a")
	peer.Start()

	rec.wait(t, "error:a")
	if err := rec.lastError("a"); !errors.Is(err, domain.ErrProtocolSequence) {
		t.Errorf("second offer: %v", err)
	}
	rec.wait(t, "offer:a")
	if n := len(engine.CallsFor("a", memory.OpSynthesizeOffer)); n != 1 {
		t.Errorf("synthesize_offer called %d times", n)
	}
}

func TestCompletionAfterCloseIsDropped(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	_ = peer.GenerateOffer("a")
	_ = peer.CloseConnection("a")
	peer.Start()

	rec.wait(t, "closed:a")
	time.Sleep(50 * time.Millisecond)
	mustNotExist(t, peer, "a")

	if n := len(engine.CallsFor("a", memory.OpApplyLocal)); n != 0 {
		t.Errorf("apply_local called %d times after close", n)
	}
	if sdp := rec.offer("a").SDP; sdp != "" {
		t.Errorf("offer emitted after close")
	}
}

func TestUnknownConnectionReportsNotFound(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()

	_ = peer.ProcessAnswer("ghost", answerDesc())
	rec.wait(t, "error:ghost")
	if err := rec.lastError("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v", err)
	}
	_ = peer.AddRemoteCandidate("ghost", candidate("c1"))
	rec.wait(t, "error:ghost")
	if n := len(engine.CallsFor("ghost")); n != 0 {
		t.Errorf("engine saw %d calls for an unknown id", n)
	}

	_ = peer.CloseConnection("ghost")
	mustNotExist(t, peer, "ghost")
}

func TestEngineEventsReachObservers(t *testing.T) {
	peer, engine, rec := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()
	_ = peer.GenerateOffer("a")
	rec.wait(t, "offer:a")

	events, ok := engine.Events("a")
	if !ok {
		t.Fatal("no events registered for a")
	}

	engine.EmitLocalCandidate("a", candidate("local-1"))
	rec.wait(t, "local_candidate:a:local-1")

	events.OnConnectivityStateChange("connected")
	rec.wait(t, "connectivity:a:connected")

	events.OnRemoteStreamAdded(domain.MediaStream{ID: "weird", VideoTracks: []string{"v1", "v2"}})
	rec.wait(t, "error:a")

	events.OnRemoteStreamAdded(domain.MediaStream{ID: "s1", AudioTracks: []string{"a1"}, VideoTracks: []string{"v1"}})
	rec.wait(t, "stream_added:a:s1")
	events.OnRemoteStreamRemoved(domain.MediaStream{ID: "s1", AudioTracks: []string{"a1"}})
	rec.wait(t, "stream_removed:a:s1")

	events.OnDataChannel("chat")
	rec.wait(t, "data_channel:a:chat")
	events.OnDataChannelStateChange("chat", "open")
	rec.wait(t, "data_channel_state:a:chat:open")
	events.OnDataChannelMessage(domain.DataChannelMessage{Label: "chat", IsString: true, Data: []byte("hi")})
	rec.wait(t, "data_channel_message:a:hi")

	events.OnResourceError(errBoom)
	rec.wait(t, "error:a")
	var collab *domain.CollaboratorError
	if err := rec.lastError("a"); !errors.As(err, &collab) || collab.Op != "resource" {
		t.Errorf("resource error = %v", err)
	}
}

func TestLocalMediaDelegatesToEngine(t *testing.T) {
	peer, engine, _ := newTestPeer(t, domain.DefaultConnectionParameters())
	peer.Start()

	_ = peer.GenerateOffer("a")
	_ = peer.AttachLocalStream("a", domain.MediaStream{ID: "local", AudioTracks: []string{"mic"}})
	_ = peer.CreateDataChannel("a", "chat")
	_ = peer.DetachLocalStream("a", "local")
	mustState(t, peer, "a")

	got := argsOf(engine.CallsFor("a", memory.OpAddStream, memory.OpCreateDataChannel, memory.OpRemoveStream))
	if want := []string{"local", "chat", "local"}; !equalStrings(got, want) {
		t.Errorf("engine args = %v, want %v", got, want)
	}
}

func TestPeerCloseReleasesEverything(t *testing.T) {
	engine := memory.NewEngine()
	peer := NewPeer(engine, domain.DefaultConnectionParameters(), domain.SignalingParameters{})
	peer.Start()
	for _, id := range []domain.ConnectionID{"a", "b", "c"} {
		_ = peer.GenerateOffer(id)
	}
	peer.Close()

	if n := len(engine.Calls()); n == 0 {
		t.Fatal("no engine calls recorded")
	}
	for _, id := range []domain.ConnectionID{"a", "b", "c"} {
		if n := len(engine.CallsFor(id, memory.OpRelease)); n != 1 {
			t.Errorf("%s released %d times", id, n)
		}
	}
	if err := peer.GenerateOffer("d"); !errors.Is(err, ErrExecutorStopped) {
		t.Errorf("GenerateOffer after Close: %v", err)
	}
}

func mustNotExist(t *testing.T, peer *Peer, id domain.ConnectionID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if _, ok, err := peer.State(ctx, id); err != nil || ok {
		t.Errorf("State(%s): ok %v err %v", id, ok, err)
	}
}
