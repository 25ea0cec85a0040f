package peerjs

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/tutorly/core/call"
)

// describe renders the session description announcing the tracks of s.
func describe(s call.Stream) string {
	b := new(strings.Builder)
	fmt.Fprint(b, "v=0\r\n")
	fmt.Fprintf(b, "o=- %d 2 IN IP4 127.0.0.1\r\n", time.Now().UnixNano())
	fmt.Fprint(b, "s=-\r\n")
	fmt.Fprint(b, "t=0 0\r\n")
	if s == nil {
		return b.String()
	}
	fmt.Fprintf(b, "a=msid-semantic: WMS %s\r\n", s.ID())
	for _, t := range s.Tracks() {
		switch t.Kind() {
		case call.KindAudio:
			fmt.Fprint(b, "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
		case call.KindVideo:
			fmt.Fprint(b, "m=video 9 UDP/TLS/RTP/SAVPF 96\r\n")
		default:
			continue
		}
		fmt.Fprintf(b, "a=msid:%s %s\r\n", s.ID(), t.ID())
		if t.Enabled() {
			fmt.Fprint(b, "a=sendrecv\r\n")
		} else {
			fmt.Fprint(b, "a=inactive\r\n")
		}
	}
	return b.String()
}

// parseStream builds the remote stream announced by a session description.
func parseStream(sdp string) call.Stream {
	var tracks []call.Track
	var current *call.LocalTrack
	for _, line := range strings.Split(sdp, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "m=audio"):
			current = call.NewLocalTrack(call.KindAudio)
			tracks = append(tracks, current)
		case strings.HasPrefix(line, "m=video"):
			current = call.NewLocalTrack(call.KindVideo)
			tracks = append(tracks, current)
		case strings.HasPrefix(line, "m="):
			current = nil
		case line == "a=inactive" && current != nil:
			current.SetEnabled(false)
		}
	}
	return call.NewLocalStream(tracks...)
}
