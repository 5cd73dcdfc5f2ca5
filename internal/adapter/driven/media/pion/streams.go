package pion

import (
	"slices"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
)

// remoteStreams groups remote tracks by the stream id they were announced
// under. Callers hold the connection mutex.
type remoteStreams map[string]*domain.MediaStream

// add records a track and returns a copy of its stream.
func (r remoteStreams) add(streamID, trackID string, isVideo bool) domain.MediaStream {
	s, ok := r[streamID]
	if !ok {
		s = &domain.MediaStream{ID: streamID}
		r[streamID] = s
	}
	if isVideo {
		s.VideoTracks = append(s.VideoTracks, trackID)
	} else {
		s.AudioTracks = append(s.AudioTracks, trackID)
	}
	return domain.MediaStream{
		ID:          s.ID,
		AudioTracks: slices.Clone(s.AudioTracks),
		VideoTracks: slices.Clone(s.VideoTracks),
	}
}

// remove drops a track. gone reports whether it was the stream's last one,
// in which case stream holds just that track.
func (r remoteStreams) remove(streamID, trackID string) (stream domain.MediaStream, gone bool) {
	s, ok := r[streamID]
	if !ok {
		return domain.MediaStream{}, false
	}
	stream = domain.MediaStream{ID: streamID}
	if i := slices.Index(s.AudioTracks, trackID); i >= 0 {
		s.AudioTracks = slices.Delete(s.AudioTracks, i, i+1)
		stream.AudioTracks = []string{trackID}
	} else if i := slices.Index(s.VideoTracks, trackID); i >= 0 {
		s.VideoTracks = slices.Delete(s.VideoTracks, i, i+1)
		stream.VideoTracks = []string{trackID}
	}
	if len(s.AudioTracks) > 0 || len(s.VideoTracks) > 0 {
		return domain.MediaStream{}, false
	}
	delete(r, streamID)
	return stream, true
}
