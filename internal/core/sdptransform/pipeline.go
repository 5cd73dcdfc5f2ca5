package sdptransform

import (
	"errors"
	"fmt"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/pion/sdp/v3"
)

var startBitrateVideoCodecs = []domain.VideoCodec{
	domain.VideoCodecVP8,
	domain.VideoCodecVP9,
	domain.VideoCodecH264,
}

// Pipeline applies the rewrites a set of connection parameters asks for.
// Locally generated descriptions only get codec preference; remote ones also
// get bitrate injection.
type Pipeline struct {
	params domain.ConnectionParameters
}

func NewPipeline(params domain.ConnectionParameters) Pipeline {
	return Pipeline{params: params}
}

func (p Pipeline) Local(desc domain.SessionDescription) domain.SessionDescription {
	return desc.WithSDP(p.preferCodecs(desc.SDP))
}

func (p Pipeline) Remote(desc domain.SessionDescription) domain.SessionDescription {
	payload := p.preferCodecs(desc.SDP)
	if p.params.VideoCallEnabled && p.params.VideoStartBitrate > 0 {
		for _, codec := range startBitrateVideoCodecs {
			payload = SetStartBitrate(string(codec), true, payload, p.params.VideoStartBitrate)
		}
	}
	if p.params.AudioStartBitrate > 0 {
		payload = SetStartBitrate(string(domain.AudioCodecOpus), false, payload, p.params.AudioStartBitrate)
	}
	return desc.WithSDP(payload)
}

func (p Pipeline) preferCodecs(payload string) string {
	if p.params.AudioCodec != "" {
		payload = PreferCodec(payload, string(p.params.AudioCodec), MediaAudio)
	}
	if p.params.VideoCallEnabled && p.params.VideoCodec != "" {
		payload = PreferCodec(payload, string(p.params.VideoCodec), MediaVideo)
	}
	return payload
}

// Validate parses payload as SDP and requires at least one media section.
func Validate(payload string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(payload)); err != nil {
		return fmt.Errorf("parse session description: %w", err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return errors.New("session description has no media sections")
	}
	return nil
}
