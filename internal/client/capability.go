package client

import (
	"context"
	"errors"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

//go:generate mockgen -source=capability.go -destination=mock_capability_test.go -package=client

// ErrCapability marks a local media failure: device unavailable or
// permission denied. A join that hits it is aborted.
var ErrCapability = errors.New("media capability unavailable")

// LocalAudio is the single local capture shared by every peer session.
type LocalAudio interface {
	Track() webrtc.TrackLocal
	// Level is the normalized amplitude of the latest captured frames.
	Level() float64
	SetMuted(muted bool)
	Close() error
}

// RemoteSink renders one remote participant's audio.
type RemoteSink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

type MediaCapability interface {
	AcquireLocalAudio(ctx context.Context) (LocalAudio, error)
	OpenSink(remote domain.ParticipantID, codec webrtc.RTPCodecParameters) (RemoteSink, error)
}
