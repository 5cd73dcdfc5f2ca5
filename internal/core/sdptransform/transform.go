// Package sdptransform rewrites SDP payloads to express codec and bitrate
// preferences.
//
// Every function here is pure and fails soft: when the payload lacks the
// media section or codec being asked for, the input comes back byte-identical
// and the reason is logged. When something does change, the output is
// CRLF-terminated and every line other than the rewritten or inserted one is
// kept in order.
package sdptransform

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

const (
	videoStartBitrateParam = "x-google-start-bitrate"
	audioBitrateParam      = "maxaveragebitrate"
)

// PreferCodec moves codec's payload type to the front of the format list of
// the first m=<kind> section. The rtpmap lookup is scoped to that section and
// encoding names compare case-insensitively.
func PreferCodec(payload, codec string, kind MediaKind) string {
	lines := splitLines(payload)
	mLineIndex := -1
	payloadType := ""
	mediaPrefix := "m=" + string(kind) + " "

	for i, line := range lines {
		if mLineIndex == -1 {
			if strings.HasPrefix(line, mediaPrefix) {
				mLineIndex = i
			}
			continue
		}
		if strings.HasPrefix(line, "m=") {
			break
		}
		if pt, name, ok := parseRtpmap(line); ok && strings.EqualFold(name, codec) {
			payloadType = pt
			break
		}
	}

	l := log.With().Str("codec", codec).Str("kind", string(kind)).Logger()
	if mLineIndex == -1 {
		l.Debug().Msg("No media section, cannot prefer codec")
		return payload
	}
	if payloadType == "" {
		l.Debug().Msg("No rtpmap for codec")
		return payload
	}

	parts := strings.Split(lines[mLineIndex], " ")
	if len(parts) <= 3 {
		l.Warn().Str("line", lines[mLineIndex]).Msg("Wrong SDP media description format")
		return payload
	}
	if parts[3] == payloadType {
		return payload
	}
	found := false
	reordered := make([]string, 0, len(parts))
	reordered = append(reordered, parts[:3]...)
	reordered = append(reordered, payloadType)
	for _, format := range parts[3:] {
		if format == payloadType {
			found = true
			continue
		}
		reordered = append(reordered, format)
	}
	if !found {
		l.Warn().Str("payload_type", payloadType).Msg("Payload type missing from media format list")
		return payload
	}

	lines[mLineIndex] = strings.Join(reordered, " ")
	l.Debug().Str("line", lines[mLineIndex]).Msg("Changed media description")
	return joinLines(lines)
}

// SetStartBitrate sets the starting bitrate for codec. Video codecs get
// x-google-start-bitrate in kbps, audio codecs get maxaveragebitrate in bps.
// An existing a=fmtp line for the codec is updated in place, otherwise a new
// one is inserted right after the codec's a=rtpmap line.
func SetStartBitrate(codec string, isVideo bool, payload string, bitrateKbps int) string {
	lines := splitLines(payload)
	rtpmapIndex := -1
	payloadType := ""
	for i, line := range lines {
		if pt, name, ok := parseRtpmap(line); ok && strings.EqualFold(name, codec) {
			rtpmapIndex = i
			payloadType = pt
			break
		}
	}

	l := log.With().Str("codec", codec).Logger()
	if rtpmapIndex == -1 {
		l.Debug().Msg("No rtpmap for codec")
		return payload
	}

	param, value := audioBitrateParam, strconv.Itoa(bitrateKbps*1000)
	if isVideo {
		param, value = videoStartBitrateParam, strconv.Itoa(bitrateKbps)
	}

	fmtpPrefix := "a=fmtp:" + payloadType
	for i, line := range lines {
		rest, ok := strings.CutPrefix(line, fmtpPrefix)
		if !ok || (rest != "" && rest[0] != ' ') {
			continue
		}
		updated := setFmtpParam(fmtpPrefix, strings.TrimPrefix(rest, " "), param, value)
		if updated == line {
			return payload
		}
		lines[i] = updated
		l.Debug().Str("line", updated).Msg("Updated fmtp line")
		return joinLines(lines)
	}

	inserted := fmtpPrefix + " " + param + "=" + value
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:rtpmapIndex+1]...)
	out = append(out, inserted)
	out = append(out, lines[rtpmapIndex+1:]...)
	l.Debug().Str("line", inserted).Msg("Added fmtp line")
	return joinLines(out)
}

// setFmtpParam overwrites key in the ';'-separated parameter list body, or
// appends it. An empty body becomes just key=value.
func setFmtpParam(head, body, key, value string) string {
	if strings.TrimSpace(body) == "" {
		return head + " " + key + "=" + value
	}
	params := strings.Split(body, ";")
	for i, p := range params {
		trimmed := strings.TrimLeft(p, " ")
		k, _, ok := strings.Cut(trimmed, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), key) {
			continue
		}
		lead := p[:len(p)-len(trimmed)]
		params[i] = lead + key + "=" + value
		return head + " " + strings.Join(params, ";")
	}
	return head + " " + body + "; " + key + "=" + value
}

// parseRtpmap reads a=rtpmap:<payload type> <encoding name>/<clock rate>[/<params>].
func parseRtpmap(line string) (payloadType, encoding string, ok bool) {
	rest, found := strings.CutPrefix(line, "a=rtpmap:")
	if !found {
		return "", "", false
	}
	pt, enc, found := strings.Cut(rest, " ")
	if !found || !isDigits(pt) {
		return "", "", false
	}
	name, _, found := strings.Cut(strings.TrimSpace(enc), "/")
	if !found || name == "" {
		return "", "", false
	}
	return pt, name, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func splitLines(payload string) []string {
	lines := strings.Split(payload, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return b.String()
}
