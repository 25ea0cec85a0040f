package call

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Track kinds
const (
	KindAudio = "audio"
	KindVideo = "video"
)

type (
	// Track is a single audio or video track.
	Track interface {
		ID() string
		Kind() string
		Enabled() bool
		SetEnabled(enabled bool)
		Stop()
		Stopped() bool
	}

	// Stream groups the tracks captured from (or received from) one participant.
	Stream interface {
		ID() string
		Tracks() []Track
	}

	Constraints struct {
		Audio bool
		Video bool
	}

	// MediaDevices gives access to the local capture devices.
	MediaDevices interface {
		UserMedia(ctx context.Context, c Constraints) (Stream, error)
	}
)

// TracksOf returns the tracks of s having the given kind.
func TracksOf(s Stream, kind string) []Track {
	var tracks []Track
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// LocalTrack is an in-process Track.
type LocalTrack struct {
	id   string
	kind string

	mu      sync.RWMutex
	enabled bool
	stopped bool
}

var _ Track = (*LocalTrack)(nil)

func NewLocalTrack(kind string) *LocalTrack {
	return &LocalTrack{id: uuid.New().String(), kind: kind, enabled: true}
}

func (t *LocalTrack) ID() string   { return t.id }
func (t *LocalTrack) Kind() string { return t.kind }

func (t *LocalTrack) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *LocalTrack) Stopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

type localStream struct {
	id     string
	tracks []Track
}

func (s *localStream) ID() string      { return s.id }
func (s *localStream) Tracks() []Track { return s.tracks }

// NewLocalStream groups tracks into a Stream.
func NewLocalStream(tracks ...Track) Stream {
	return &localStream{id: uuid.New().String(), tracks: tracks}
}

// SyntheticDevices produce streams of LocalTracks, without any capture hardware.
type SyntheticDevices struct {
	Err error // returned by UserMedia when set
}

func (d SyntheticDevices) UserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tracks []Track
	if c.Audio {
		tracks = append(tracks, NewLocalTrack(KindAudio))
	}
	if c.Video {
		tracks = append(tracks, NewLocalTrack(KindVideo))
	}
	return NewLocalStream(tracks...), nil
}
