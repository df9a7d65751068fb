// Package media is the headless audio capability: an Ogg/Opus file (or
// silence) stands in for the microphone and every remote stream is played
// out as a live Ogg stream instead of a speaker.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkeye/VoiceMesh/internal/client"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
)

type Capability struct {
	// Source is an Ogg/Opus file looped as the local capture; empty sends silence.
	Source string
	// PlayoutDir receives <remote>.ogg per remote stream, truncated on each
	// new track; empty discards.
	PlayoutDir string
	// StreamID labels the local track, usually the participant id.
	StreamID string
}

var _ client.MediaCapability = (*Capability)(nil)

func (c *Capability) AcquireLocalAudio(ctx context.Context) (client.LocalAudio, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", c.StreamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrCapability, err)
	}

	var src frameSource = silence{}
	if c.Source != "" {
		f, err := openOgg(c.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", client.ErrCapability, err)
		}
		src = f
	}
	l := newLocalAudio(track, src)
	go l.pump()
	log.Info().Str("module", "media").Str("source", c.sourceName()).Msg("local audio acquired")
	return l, nil
}

func (c *Capability) sourceName() string {
	if c.Source == "" {
		return "silence"
	}
	return c.Source
}

func (c *Capability) OpenSink(remote domain.ParticipantID, codec webrtc.RTPCodecParameters) (client.RemoteSink, error) {
	if c.PlayoutDir == "" {
		return discard{}, nil
	}
	if codec.MimeType != webrtc.MimeTypeOpus {
		return nil, fmt.Errorf("unsupported codec %s", codec.MimeType)
	}
	if err := os.MkdirAll(c.PlayoutDir, 0o755); err != nil {
		return nil, err
	}
	channels := codec.Channels
	if channels == 0 {
		channels = 2
	}
	path := filepath.Join(c.PlayoutDir, safeName(string(remote))+".ogg")
	w, err := oggwriter.New(path, codec.ClockRate, channels)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "media").Str("remote", string(remote)).Str("file", path).Msg("playing out remote audio")
	return w, nil
}

func safeName(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}

type discard struct{}

func (discard) WriteRTP(*rtp.Packet) error { return nil }
func (discard) Close() error              { return nil }
