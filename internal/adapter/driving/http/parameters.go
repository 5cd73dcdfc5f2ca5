package http

import "net/http"

type constraintsDTO struct {
	OfferToReceiveAudio  bool `json:"offer_to_receive_audio"`
	OfferToReceiveVideo  bool `json:"offer_to_receive_video"`
	DTLSSRTPKeyAgreement bool `json:"dtls_srtp_key_agreement"`
}

type videoDTO struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	FPS    int `json:"fps,omitempty"`
}

type parametersDTO struct {
	VideoCallEnabled  bool           `json:"video_call_enabled"`
	Loopback          bool           `json:"loopback"`
	AudioCodec        string         `json:"audio_codec"`
	VideoCodec        string         `json:"video_codec"`
	AudioStartBitrate int            `json:"audio_start_bitrate,omitempty"`
	VideoStartBitrate int            `json:"video_start_bitrate,omitempty"`
	Constraints       constraintsDTO `json:"constraints"`
	Video             videoDTO       `json:"video"`
}

// Parameters tells browsers what the server negotiates with, including the
// capture constraints they should apply to local video.
func (h *Handler) Parameters(w http.ResponseWriter, r *http.Request) {
	p := h.Peer.Parameters()
	mc := p.MediaConstraints()
	vc := p.VideoConstraints()
	writeJSON(w, http.StatusOK, parametersDTO{
		VideoCallEnabled:  p.VideoCallEnabled,
		Loopback:          p.Loopback,
		AudioCodec:        string(p.AudioCodec),
		VideoCodec:        string(p.VideoCodec),
		AudioStartBitrate: p.AudioStartBitrate,
		VideoStartBitrate: p.VideoStartBitrate,
		Constraints: constraintsDTO{
			OfferToReceiveAudio:  mc.OfferToReceiveAudio,
			OfferToReceiveVideo:  mc.OfferToReceiveVideo,
			DTLSSRTPKeyAgreement: mc.DTLSSRTPKeyAgreement,
		},
		Video: videoDTO{Width: vc.Width, Height: vc.Height, FPS: vc.FPS},
	})
}
