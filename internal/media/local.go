package media

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/VoiceMesh/internal/client"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
)

const frameDuration = 20 * time.Millisecond

// silenceFrame is a 20ms Opus frame of digital silence.
var silenceFrame = []byte{0xf8, 0xff, 0xfe}

var opusTags = []byte("OpusTags")

type frameSource interface {
	// Next returns the next encoded frame and its duration.
	Next() ([]byte, time.Duration, error)
	Close() error
}

type silence struct{}

func (silence) Next() ([]byte, time.Duration, error) { return silenceFrame, frameDuration, nil }
func (silence) Close() error                         { return nil }

// oggSource loops an Ogg/Opus file forever.
type oggSource struct {
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func openOgg(path string) (*oggSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &oggSource{file: f}
	if err := s.rewind(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *oggSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, _, err := oggreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = r
	s.lastGranule = 0
	return nil
}

func (s *oggSource) Next() ([]byte, time.Duration, error) {
	rewound := false
	for {
		page, header, err := s.reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if rewound {
				return nil, 0, io.ErrUnexpectedEOF
			}
			if err := s.rewind(); err != nil {
				return nil, 0, err
			}
			rewound = true
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if bytes.HasPrefix(page, opusTags) {
			continue
		}
		d := frameDuration
		if header.GranulePosition > s.lastGranule {
			d = time.Duration(header.GranulePosition-s.lastGranule) * time.Second / 48000
		}
		s.lastGranule = header.GranulePosition
		return page, d, nil
	}
}

func (s *oggSource) Close() error { return s.file.Close() }

type localAudio struct {
	track *webrtc.TrackLocalStaticSample
	src   frameSource

	level atomic.Uint64
	muted atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

var _ client.LocalAudio = (*localAudio)(nil)

func newLocalAudio(track *webrtc.TrackLocalStaticSample, src frameSource) *localAudio {
	return &localAudio{track: track, src: src, done: make(chan struct{})}
}

func (l *localAudio) Track() webrtc.TrackLocal { return l.track }

func (l *localAudio) Level() float64 { return math.Float64frombits(l.level.Load()) }

func (l *localAudio) SetMuted(muted bool) { l.muted.Store(muted) }

func (l *localAudio) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.src.Close()
	})
	return err
}

// pump paces frames onto the track in real time. Muted, it keeps the
// stream alive with silence.
func (l *localAudio) pump() {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-timer.C:
		}
		data, d, err := l.src.Next()
		if err != nil {
			log.Error().Err(err).Str("module", "media").Msg("local source failed")
			l.level.Store(0)
			_ = l.Close()
			return
		}
		if l.muted.Load() {
			data, d = silenceFrame, frameDuration
		}
		l.level.Store(math.Float64bits(client.PayloadLevel(len(data))))
		if err := l.track.WriteSample(pionmedia.Sample{Data: data, Duration: d}); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			log.Debug().Err(err).Str("module", "media").Msg("write sample")
		}
		timer.Reset(d)
	}
}
