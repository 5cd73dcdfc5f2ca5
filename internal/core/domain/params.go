package domain

import "fmt"

type AudioCodec string

const (
	AudioCodecOpus AudioCodec = "OPUS"
	AudioCodecISAC AudioCodec = "ISAC"
)

type VideoCodec string

const (
	VideoCodecVP8  VideoCodec = "VP8"
	VideoCodecVP9  VideoCodec = "VP9"
	VideoCodecH264 VideoCodec = "H264"
)

func ParseAudioCodec(s string) (AudioCodec, error) {
	switch c := AudioCodec(s); c {
	case AudioCodecOpus, AudioCodecISAC:
		return c, nil
	}
	return "", fmt.Errorf("unknown audio codec %q", s)
}

func ParseVideoCodec(s string) (VideoCodec, error) {
	switch c := VideoCodec(s); c {
	case VideoCodecVP8, VideoCodecVP9, VideoCodecH264:
		return c, nil
	}
	return "", fmt.Errorf("unknown video codec %q", s)
}

const (
	hdVideoWidth   = 1280
	hdVideoHeight  = 720
	maxVideoWidth  = 1280
	maxVideoHeight = 1280
	maxVideoFPS    = 30
)

// ConnectionParameters is captured once by a registry and shared read-only by
// every connection it creates. Bitrates are in kbps; zero disables injection.
type ConnectionParameters struct {
	VideoCallEnabled         bool
	Loopback                 bool
	VideoWidth               int
	VideoHeight              int
	VideoFPS                 int
	VideoStartBitrate        int
	VideoCodec               VideoCodec
	VideoCodecHWAcceleration bool
	AudioStartBitrate        int
	AudioCodec               AudioCodec
	NoAudioProcessing        bool
	CPUOveruseDetection      bool
}

func DefaultConnectionParameters() ConnectionParameters {
	return ConnectionParameters{
		VideoCallEnabled:         true,
		VideoWidth:               640,
		VideoHeight:              480,
		VideoFPS:                 30,
		VideoCodec:               VideoCodecVP8,
		VideoCodecHWAcceleration: true,
		AudioCodec:               AudioCodecOpus,
		CPUOveruseDetection:      true,
	}
}

type MediaConstraints struct {
	OfferToReceiveAudio  bool
	OfferToReceiveVideo  bool
	DTLSSRTPKeyAgreement bool
	ICERestart           bool
}

func (p ConnectionParameters) MediaConstraints() MediaConstraints {
	return MediaConstraints{
		OfferToReceiveAudio:  true,
		OfferToReceiveVideo:  p.VideoCallEnabled || p.Loopback,
		DTLSSRTPKeyAgreement: !p.Loopback,
	}
}

type VideoConstraints struct {
	Width  int
	Height int
	FPS    int
}

// VideoConstraints returns the capture constraints for local video. The zero
// value means no constraint on that axis.
func (p ConnectionParameters) VideoConstraints() VideoConstraints {
	if !p.VideoCallEnabled {
		return VideoConstraints{}
	}
	var vc VideoConstraints
	w, h := p.VideoWidth, p.VideoHeight
	if (w == 0 || h == 0) && p.VideoCodecHWAcceleration {
		w, h = hdVideoWidth, hdVideoHeight
	}
	if w > 0 && h > 0 {
		vc.Width = min(w, maxVideoWidth)
		vc.Height = min(h, maxVideoHeight)
	}
	if p.VideoFPS > 0 {
		vc.FPS = min(p.VideoFPS, maxVideoFPS)
	}
	return vc
}
