package pion

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const pliInterval = 3 * time.Second

var errForeignResource = errors.New("resource was not created by the pion engine")

type Config struct {
	Params        domain.ConnectionParameters
	LoggerFactory logging.LoggerFactory
}

var _ port.MediaEngine = (*Engine)(nil)

// Engine implements port.MediaEngine on top of pion/webrtc. Each resource is
// one PeerConnection; pion's blocking calls run on their own goroutines and
// report back through the callbacks.
type Engine struct {
	api        *webrtc.API
	params     domain.ConnectionParameters
	videoCodec webrtc.RTPCodecCapability
	audioCodec webrtc.RTPCodecCapability
}

func NewEngine(cfg Config) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	s := webrtc.SettingEngine{}
	if cfg.LoggerFactory != nil {
		s.LoggerFactory = cfg.LoggerFactory
	}
	if cfg.Params.Loopback {
		s.SetIncludeLoopbackCandidate(true)
	}

	video, err := videoCapability(cfg.Params.VideoCodec)
	if err != nil {
		return nil, err
	}

	return &Engine{
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)),
		params:     cfg.Params,
		videoCodec: video,
		audioCodec: audioCapability(cfg.Params.AudioCodec),
	}, nil
}

func videoCapability(codec domain.VideoCodec) (webrtc.RTPCodecCapability, error) {
	switch codec {
	case domain.VideoCodecVP8, "":
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, nil
	case domain.VideoCodecVP9:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000}, nil
	case domain.VideoCodecH264:
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}, nil
	default:
		return webrtc.RTPCodecCapability{}, fmt.Errorf("unsupported video codec %q", codec)
	}
}

// audioCapability falls back to Opus; pion ships no ISAC support.
func audioCapability(codec domain.AudioCodec) webrtc.RTPCodecCapability {
	if codec != domain.AudioCodecOpus && codec != "" {
		log.Warn().Str("codec", string(codec)).Msg("Audio codec not available in pion, sending Opus")
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

type connection struct {
	id     domain.ConnectionID
	pc     *webrtc.PeerConnection
	events port.ResourceEvents
	log    zerolog.Logger

	mu      sync.Mutex
	senders map[string][]*webrtc.RTPSender
	remote  remoteStreams
	done    chan struct{}
	once    sync.Once
}

func (c *connection) ConnectionID() domain.ConnectionID {
	return c.id
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		if err := c.pc.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Error closing peer connection")
		}
	})
}

func (e *Engine) CreateConnectionResource(id domain.ConnectionID, iceServers []domain.ICEServer, constraints domain.MediaConstraints, events port.ResourceEvents) (port.Resource, error) {
	config := webrtc.Configuration{}
	for _, s := range iceServers {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if !constraints.DTLSSRTPKeyAgreement {
		log.Warn().Str("connection_id", id.String()).Msg("DTLS-SRTP cannot be disabled in pion, keeping it on")
	}

	pc, err := e.api.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	if constraints.OfferToReceiveAudio {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, err
		}
	}
	if constraints.OfferToReceiveVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, err
		}
	}

	c := &connection{
		id:      id,
		pc:      pc,
		events:  events,
		log:     log.With().Str("connection_id", id.String()).Logger(),
		senders: make(map[string][]*webrtc.RTPSender),
		remote:  make(remoteStreams),
		done:    make(chan struct{}),
	}
	e.wire(c)
	return c, nil
}

func (e *Engine) wire(c *connection) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		j := candidate.ToJSON()
		c.events.OnLocalCandidate(domain.Candidate{
			Candidate:        j.Candidate,
			SDPMid:           j.SDPMid,
			SDPMLineIndex:    j.SDPMLineIndex,
			UsernameFragment: j.UsernameFragment,
		})
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.events.OnConnectivityStateChange(state.String())
		if state == webrtc.PeerConnectionStateFailed {
			c.events.OnResourceError(errors.New("peer connection failed"))
		}
	})

	// OnTrack fires once per remote track. Each announcement carries every
	// track of that stream seen so far; removal is announced when the
	// stream's last track ends.
	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.log.Debug().Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("Received remote track")
		isVideo := track.Kind() == webrtc.RTPCodecTypeVideo
		if isVideo {
			go c.requestKeyframes(track)
		}
		c.mu.Lock()
		stream := c.remote.add(track.StreamID(), track.ID(), isVideo)
		c.mu.Unlock()
		c.events.OnRemoteStreamAdded(stream)

		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					break
				}
			}
			c.mu.Lock()
			stream, gone := c.remote.remove(track.StreamID(), track.ID())
			c.mu.Unlock()
			if gone {
				c.events.OnRemoteStreamRemoved(stream)
			}
		}()
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.events.OnDataChannel(dc.Label())
		c.watchDataChannel(dc)
	})
}

// requestKeyframes sends a PLI right away and then every few seconds until
// the connection goes away.
func (c *connection) requestKeyframes(track *webrtc.TrackRemote) {
	sendPLI := func() {
		if err := c.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
		}); err != nil {
			c.log.Debug().Err(err).Msg("Failed to send PLI")
		}
	}
	sendPLI()

	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sendPLI()
		case <-c.done:
			return
		}
	}
}

func (c *connection) watchDataChannel(dc *webrtc.DataChannel) {
	label := dc.Label()
	dc.OnOpen(func() {
		c.events.OnDataChannelStateChange(label, dc.ReadyState().String())
	})
	dc.OnClose(func() {
		c.events.OnDataChannelStateChange(label, dc.ReadyState().String())
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.events.OnDataChannelMessage(domain.DataChannelMessage{
			Label:    label,
			IsString: msg.IsString,
			Data:     msg.Data,
		})
	})
}

func (e *Engine) SynthesizeOffer(res port.Resource, constraints domain.MediaConstraints, done port.DescriptionCallback) {
	c, err := e.connection(res)
	if err != nil {
		go done(domain.SessionDescription{}, err)
		return
	}
	go func() {
		e.preferCodecs(c)
		offer, err := c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: constraints.ICERestart})
		if err != nil {
			done(domain.SessionDescription{}, err)
			return
		}
		done(domain.SessionDescription{Type: domain.SDPOffer, SDP: offer.SDP}, nil)
	}()
}

func (e *Engine) SynthesizeAnswer(res port.Resource, constraints domain.MediaConstraints, done port.DescriptionCallback) {
	c, err := e.connection(res)
	if err != nil {
		go done(domain.SessionDescription{}, err)
		return
	}
	go func() {
		e.preferCodecs(c)
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			done(domain.SessionDescription{}, err)
			return
		}
		done(domain.SessionDescription{Type: domain.SDPAnswer, SDP: answer.SDP}, nil)
	}()
}

// preferCodecs puts the configured codecs first on every transceiver before a
// description is generated. pion only accepts a local description that is
// byte-identical to the one it generated, so the order has to come from here.
func (e *Engine) preferCodecs(c *connection) {
	for _, tr := range c.pc.GetTransceivers() {
		name := e.preferredCodec(tr.Kind())
		receiver := tr.Receiver()
		if name == "" || receiver == nil {
			continue
		}
		codecs, ok := preferFirst(receiver.GetParameters().Codecs, name)
		if !ok {
			continue
		}
		if err := tr.SetCodecPreferences(codecs); err != nil {
			c.log.Warn().Err(err).Str("codec", name).Msg("Cannot set codec preferences")
		}
	}
}

func (e *Engine) preferredCodec(kind webrtc.RTPCodecType) string {
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		return string(e.params.AudioCodec)
	case webrtc.RTPCodecTypeVideo:
		if e.params.VideoCallEnabled {
			return string(e.params.VideoCodec)
		}
	}
	return ""
}

// preferFirst moves every codec whose encoding name is name ahead of the
// others, keeping relative order on both sides. ok is false when no codec
// matches.
func preferFirst(codecs []webrtc.RTPCodecParameters, name string) (ordered []webrtc.RTPCodecParameters, ok bool) {
	ordered = make([]webrtc.RTPCodecParameters, 0, len(codecs))
	var rest []webrtc.RTPCodecParameters
	for _, codec := range codecs {
		_, encoding, _ := strings.Cut(codec.MimeType, "/")
		if strings.EqualFold(encoding, name) {
			ordered = append(ordered, codec)
			continue
		}
		rest = append(rest, codec)
	}
	if len(ordered) == 0 {
		return codecs, false
	}
	return append(ordered, rest...), true
}

func (e *Engine) ApplyLocalDescription(res port.Resource, desc domain.SessionDescription, done port.DoneCallback) {
	c, err := e.connection(res)
	if err != nil {
		go done(err)
		return
	}
	go func() {
		done(c.pc.SetLocalDescription(toPion(desc)))
	}()
}

func (e *Engine) ApplyRemoteDescription(res port.Resource, desc domain.SessionDescription, done port.DoneCallback) {
	c, err := e.connection(res)
	if err != nil {
		go done(err)
		return
	}
	go func() {
		done(c.pc.SetRemoteDescription(toPion(desc)))
	}()
}

func (e *Engine) AddCandidate(res port.Resource, candidate domain.Candidate) error {
	c, err := e.connection(res)
	if err != nil {
		return err
	}
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	})
}

// AddStream adds one static RTP track per track id of stream. The caller
// feeds media into the tracks; the engine only negotiates them.
func (e *Engine) AddStream(res port.Resource, stream domain.MediaStream) error {
	c, err := e.connection(res)
	if err != nil {
		return err
	}

	var senders []*webrtc.RTPSender
	add := func(capability webrtc.RTPCodecCapability, trackID string) error {
		track, err := webrtc.NewTrackLocalStaticRTP(capability, trackID, stream.ID)
		if err != nil {
			return err
		}
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return err
		}
		senders = append(senders, sender)
		go drainRTCP(sender)
		return nil
	}
	for _, id := range stream.AudioTracks {
		if err := add(e.audioCodec, id); err != nil {
			return err
		}
	}
	if e.params.VideoCallEnabled {
		for _, id := range stream.VideoTracks {
			if err := add(e.videoCodec, id); err != nil {
				return err
			}
		}
	}

	c.mu.Lock()
	c.senders[stream.ID] = append(c.senders[stream.ID], senders...)
	c.mu.Unlock()
	return nil
}

func (e *Engine) RemoveStream(res port.Resource, streamID string) error {
	c, err := e.connection(res)
	if err != nil {
		return err
	}
	c.mu.Lock()
	senders := c.senders[streamID]
	delete(c.senders, streamID)
	c.mu.Unlock()

	if len(senders) == 0 {
		return fmt.Errorf("stream %s not attached", streamID)
	}
	for _, sender := range senders {
		if err := c.pc.RemoveTrack(sender); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) CreateDataChannel(res port.Resource, label string) error {
	c, err := e.connection(res)
	if err != nil {
		return err
	}
	dc, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return err
	}
	c.watchDataChannel(dc)
	return nil
}

func (e *Engine) ReleaseResource(res port.Resource) {
	c, err := e.connection(res)
	if err != nil {
		log.Error().Err(err).Msg("Cannot release resource")
		return
	}
	c.close()
}

func (e *Engine) connection(res port.Resource) (*connection, error) {
	c, ok := res.(*connection)
	if !ok {
		return nil, errForeignResource
	}
	return c, nil
}

func toPion(desc domain.SessionDescription) webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if desc.Type == domain.SDPAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: desc.SDP}
}

// drainRTCP reads the sender's RTCP so interceptors keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
