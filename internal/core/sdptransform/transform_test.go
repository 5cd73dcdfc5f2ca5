package sdptransform

import (
	"strings"
	"testing"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

const testSDP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0 1\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 103 9\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=fmtp:111 minptime=10;useinbandfec=1\r\n" +
	"a=rtpmap:103 ISAC/16000\r\n" +
	"a=rtpmap:9 G722/8000\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 98 102\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:1\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:98 VP9/90000\r\n" +
	"a=rtpmap:102 H264/90000\r\n" +
	"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f\r\n"

const videoOnlySDP = "v=0\r\n" +
	"o=- 1 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:97 rtx/90000\r\n" +
	"a=fmtp:97 apt=96\r\n"

func sdpLines(payload string) []string {
	return strings.Split(strings.TrimRight(payload, "\r\n"), "\r\n")
}

func lineWithPrefix(t *testing.T, payload, prefix string) string {
	t.Helper()
	for _, line := range sdpLines(payload) {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	t.Fatalf("no line with prefix %q in:\n%s", prefix, payload)
	return ""
}

func TestPreferCodec_MovesPayloadTypeFirst(t *testing.T) {
	tests := []struct {
		name  string
		codec string
		kind  MediaKind
		want  string
	}{
		{"isac", "ISAC", MediaAudio, "m=audio 9 UDP/TLS/RTP/SAVPF 103 111 9"},
		{"g722 lower case", "g722", MediaAudio, "m=audio 9 UDP/TLS/RTP/SAVPF 9 111 103"},
		{"h264", "H264", MediaVideo, "m=video 9 UDP/TLS/RTP/SAVPF 102 96 98"},
		{"vp9", "VP9", MediaVideo, "m=video 9 UDP/TLS/RTP/SAVPF 98 96 102"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreferCodec(testSDP, tt.codec, tt.kind)
			line := lineWithPrefix(t, got, "m="+string(tt.kind)+" ")
			if line != tt.want {
				t.Errorf("m-line = %q, want %q", line, tt.want)
			}
			before, after := sdpLines(testSDP), sdpLines(got)
			if len(before) != len(after) {
				t.Fatalf("line count changed: %d -> %d", len(before), len(after))
			}
			changed := 0
			for i := range before {
				if before[i] != after[i] {
					changed++
				}
			}
			if changed != 1 {
				t.Errorf("changed %d lines, want exactly 1", changed)
			}
		})
	}
}

func TestPreferCodec_Idempotent(t *testing.T) {
	cases := []struct {
		codec string
		kind  MediaKind
	}{
		{"ISAC", MediaAudio},
		{"opus", MediaAudio},
		{"H264", MediaVideo},
		{"VP8", MediaVideo},
		{"VP8", MediaAudio},
		{"nonexistent-codec", MediaVideo},
	}
	for _, payload := range []string{testSDP, videoOnlySDP, "", "garbage"} {
		for _, c := range cases {
			once := PreferCodec(payload, c.codec, c.kind)
			twice := PreferCodec(once, c.codec, c.kind)
			if once != twice {
				t.Errorf("PreferCodec(%s, %s) not idempotent:\nonce:  %q\ntwice: %q", c.codec, c.kind, once, twice)
			}
		}
	}
}

func TestPreferCodec_NoopCases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		codec   string
		kind    MediaKind
	}{
		{"unknown codec", testSDP, "nonexistent-codec", MediaAudio},
		{"already first", testSDP, "opus", MediaAudio},
		{"codec in another section", testSDP, "VP8", MediaAudio},
		{"no media section", videoOnlySDP, "opus", MediaAudio},
		{"short media line", "m=audio 9 RTP/AVP\r\na=rtpmap:0 PCMU/8000\r\n", "PCMU", MediaAudio},
		{"lf only unchanged", strings.ReplaceAll(testSDP, "\r\n", "\n"), "nonexistent-codec", MediaAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreferCodec(tt.payload, tt.codec, tt.kind); got != tt.payload {
				t.Errorf("payload changed:\n%q", got)
			}
		})
	}
}

func TestPreferCodec_NormalizesLineEndingsWhenRewriting(t *testing.T) {
	lf := strings.ReplaceAll(testSDP, "\r\n", "\n")
	got := PreferCodec(lf, "ISAC", MediaAudio)
	want := PreferCodec(testSDP, "ISAC", MediaAudio)
	if got != want {
		t.Errorf("LF input rewrote to %q, want %q", got, want)
	}
}

func TestSetStartBitrate_InsertsFmtpAfterRtpmap(t *testing.T) {
	got := SetStartBitrate("VP8", true, videoOnlySDP, 300)

	before, after := sdpLines(videoOnlySDP), sdpLines(got)
	if len(after) != len(before)+1 {
		t.Fatalf("line count = %d, want %d", len(after), len(before)+1)
	}
	rtpmap := -1
	for i, line := range after {
		if line == "a=rtpmap:96 VP8/90000" {
			rtpmap = i
		}
	}
	if rtpmap == -1 {
		t.Fatal("rtpmap line missing from output")
	}
	if after[rtpmap+1] != "a=fmtp:96 x-google-start-bitrate=300" {
		t.Errorf("line after rtpmap = %q", after[rtpmap+1])
	}
	withoutInserted := append(append([]string{}, after[:rtpmap+1]...), after[rtpmap+2:]...)
	for i := range before {
		if before[i] != withoutInserted[i] {
			t.Errorf("line %d = %q, want %q", i, withoutInserted[i], before[i])
		}
	}
}

func TestSetStartBitrate_UpdatesExistingFmtp(t *testing.T) {
	got := SetStartBitrate("OPUS", false, testSDP, 32)
	line := lineWithPrefix(t, got, "a=fmtp:111 ")
	if want := "a=fmtp:111 minptime=10;useinbandfec=1; maxaveragebitrate=32000"; line != want {
		t.Errorf("fmtp = %q, want %q", line, want)
	}
	if len(sdpLines(got)) != len(sdpLines(testSDP)) {
		t.Error("updating an existing fmtp line must not add lines")
	}

	again := SetStartBitrate("OPUS", false, got, 32)
	if again != got {
		t.Errorf("second application changed payload:\n%q", again)
	}

	raised := SetStartBitrate("OPUS", false, got, 64)
	line = lineWithPrefix(t, raised, "a=fmtp:111 ")
	if want := "a=fmtp:111 minptime=10;useinbandfec=1; maxaveragebitrate=64000"; line != want {
		t.Errorf("fmtp after overwrite = %q, want %q", line, want)
	}
}

func TestSetStartBitrate_FmtpWithoutParameters(t *testing.T) {
	tests := []struct {
		name string
		fmtp string
	}{
		{"bare", "a=fmtp:96"},
		{"trailing space", "a=fmtp:96 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := strings.Replace(videoOnlySDP, "a=rtpmap:96 VP8/90000\r\n",
				"a=rtpmap:96 VP8/90000\r\n"+tt.fmtp+"\r\n", 1)
			got := SetStartBitrate("VP8", true, payload, 300)

			var fmtp []string
			for _, line := range sdpLines(got) {
				if line == "a=fmtp:96" || strings.HasPrefix(line, "a=fmtp:96 ") {
					fmtp = append(fmtp, line)
				}
			}
			if len(fmtp) != 1 {
				t.Fatalf("fmtp lines for 96 = %q, want exactly one", fmtp)
			}
			if want := "a=fmtp:96 x-google-start-bitrate=300"; fmtp[0] != want {
				t.Errorf("fmtp = %q, want %q", fmtp[0], want)
			}
			if again := SetStartBitrate("VP8", true, got, 300); again != got {
				t.Errorf("second application changed payload:\n%q", again)
			}
		})
	}
}

func TestSetStartBitrate_IgnoresFmtpOfLongerPayloadType(t *testing.T) {
	payload := strings.Replace(videoOnlySDP, "a=fmtp:97 apt=96", "a=fmtp:960 apt=96", 1)
	got := SetStartBitrate("VP8", true, payload, 300)
	if line := lineWithPrefix(t, got, "a=fmtp:960"); line != "a=fmtp:960 apt=96" {
		t.Errorf("fmtp of payload type 960 = %q", line)
	}
	lineWithPrefix(t, got, "a=fmtp:96 x-google-start-bitrate=300")
}

func TestSetStartBitrate_Idempotent(t *testing.T) {
	cases := []struct {
		codec   string
		isVideo bool
		kbps    int
	}{
		{"VP8", true, 300},
		{"H264", true, 1000},
		{"opus", false, 32},
		{"missing", true, 100},
	}
	for _, payload := range []string{testSDP, videoOnlySDP} {
		for _, c := range cases {
			once := SetStartBitrate(c.codec, c.isVideo, payload, c.kbps)
			twice := SetStartBitrate(c.codec, c.isVideo, once, c.kbps)
			if once != twice {
				t.Errorf("SetStartBitrate(%s) not idempotent:\nonce:  %q\ntwice: %q", c.codec, once, twice)
			}
		}
	}
}

func TestSetStartBitrate_UnknownCodecIsNoop(t *testing.T) {
	if got := SetStartBitrate("AV1", true, testSDP, 500); got != testSDP {
		t.Errorf("payload changed:\n%q", got)
	}
}

func TestPipeline_LocalOnlyPrefersCodecs(t *testing.T) {
	params := domain.DefaultConnectionParameters()
	params.AudioCodec = domain.AudioCodecISAC
	params.VideoCodec = domain.VideoCodecH264
	params.VideoStartBitrate = 500
	params.AudioStartBitrate = 32

	desc := domain.SessionDescription{Type: domain.SDPOffer, SDP: testSDP}
	local := NewPipeline(params).Local(desc)

	if local.Type != domain.SDPOffer {
		t.Errorf("type = %s, want offer", local.Type)
	}
	if line := lineWithPrefix(t, local.SDP, "m=audio "); line != "m=audio 9 UDP/TLS/RTP/SAVPF 103 111 9" {
		t.Errorf("audio m-line = %q", line)
	}
	if line := lineWithPrefix(t, local.SDP, "m=video "); line != "m=video 9 UDP/TLS/RTP/SAVPF 102 96 98" {
		t.Errorf("video m-line = %q", line)
	}
	if strings.Contains(local.SDP, videoStartBitrateParam) || strings.Contains(local.SDP, audioBitrateParam) {
		t.Error("local pipeline must not inject bitrates")
	}
	if desc.SDP != testSDP {
		t.Error("input description was modified")
	}
}

func TestPipeline_RemoteInjectsBitrates(t *testing.T) {
	params := domain.DefaultConnectionParameters()
	params.VideoStartBitrate = 500
	params.AudioStartBitrate = 32

	remote := NewPipeline(params).Remote(domain.SessionDescription{Type: domain.SDPAnswer, SDP: testSDP})

	for _, want := range []string{
		"a=fmtp:96 x-google-start-bitrate=500",
		"a=fmtp:98 x-google-start-bitrate=500",
		"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f; x-google-start-bitrate=500",
		"a=fmtp:111 minptime=10;useinbandfec=1; maxaveragebitrate=32000",
	} {
		if !strings.Contains(remote.SDP, want+"\r\n") {
			t.Errorf("remote SDP missing %q", want)
		}
	}
}

func TestPipeline_VideoDisabledSkipsVideo(t *testing.T) {
	params := domain.DefaultConnectionParameters()
	params.VideoCallEnabled = false
	params.VideoCodec = domain.VideoCodecH264
	params.VideoStartBitrate = 500

	remote := NewPipeline(params).Remote(domain.SessionDescription{Type: domain.SDPOffer, SDP: testSDP})
	if remote.SDP != testSDP {
		t.Errorf("video disabled pipeline changed payload:\n%q", remote.SDP)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(testSDP); err != nil {
		t.Errorf("Validate(testSDP) = %v", err)
	}
	if err := Validate("not an sdp"); err == nil {
		t.Error("Validate(garbage) = nil, want error")
	}
	noMedia := "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
	if err := Validate(noMedia); err == nil {
		t.Error("Validate(no media) = nil, want error")
	}
}
