package client

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/rtp"
)

// LevelSource reports a normalized amplitude in [0, 1].
type LevelSource func() float64

// SpeakingMonitor samples every tracked stream on a ticker and flags those
// above a fixed threshold.
type SpeakingMonitor struct {
	threshold float64
	interval  time.Duration
	onChange  func(id domain.ParticipantID, speaking bool)

	mu       sync.Mutex
	sources  map[domain.ParticipantID]*levelEntry
	speaking map[domain.ParticipantID]bool
}

type levelEntry struct {
	src LevelSource
}

func NewSpeakingMonitor(interval time.Duration, threshold float64, onChange func(domain.ParticipantID, bool)) *SpeakingMonitor {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &SpeakingMonitor{
		threshold: threshold,
		interval:  interval,
		onChange:  onChange,
		sources:   make(map[domain.ParticipantID]*levelEntry),
		speaking:  make(map[domain.ParticipantID]bool),
	}
}

// Track starts sampling src for id, replacing any previous source. The
// returned func stops sampling unless src has since been replaced.
func (m *SpeakingMonitor) Track(id domain.ParticipantID, src LevelSource) (untrack func()) {
	e := &levelEntry{src: src}
	m.mu.Lock()
	m.sources[id] = e
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		if m.sources[id] != e {
			m.mu.Unlock()
			return
		}
		delete(m.sources, id)
		was := m.speaking[id]
		delete(m.speaking, id)
		m.mu.Unlock()
		if was && m.onChange != nil {
			m.onChange(id, false)
		}
	}
}

func (m *SpeakingMonitor) IsSpeaking(id domain.ParticipantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking[id]
}

// Sample takes one reading of every source.
func (m *SpeakingMonitor) Sample() {
	type change struct {
		id       domain.ParticipantID
		speaking bool
	}
	var changes []change
	m.mu.Lock()
	for id, e := range m.sources {
		now := e.src() >= m.threshold
		if now != m.speaking[id] {
			m.speaking[id] = now
			changes = append(changes, change{id, now})
		}
	}
	m.mu.Unlock()
	if m.onChange == nil {
		return
	}
	for _, c := range changes {
		m.onChange(c.id, c.speaking)
	}
}

func (m *SpeakingMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sample()
		}
	}
}

// PayloadLevel estimates amplitude from an Opus frame size: DTX and comfort
// noise frames are a few bytes, voiced 20ms frames are tens to hundreds.
func PayloadLevel(n int) float64 {
	const floor, span = 8, 120
	if n <= floor {
		return 0
	}
	return math.Min(1, float64(n-floor)/span)
}

// AudioLevelAmplitude converts an RFC 6464 level (-dBov, 0 loudest, 127
// silent) to a linear amplitude.
func AudioLevelAmplitude(level uint8) float64 {
	if level >= 127 {
		return 0
	}
	return math.Pow(10, -float64(level)/20)
}

// RemoteLevel tracks the amplitude of a received stream from its RTP
// packets. Without packets for a while it reads as silent.
type RemoteLevel struct {
	extID uint8
	hold  time.Duration
	now   func() time.Time

	mu    sync.Mutex
	level float64
	at    time.Time
}

// NewRemoteLevel reads the audio level header extension extID when it is
// non-zero and present, and falls back to payload size otherwise.
func NewRemoteLevel(extID uint8) *RemoteLevel {
	return &RemoteLevel{extID: extID, hold: 200 * time.Millisecond, now: time.Now}
}

func (r *RemoteLevel) Observe(pkt *rtp.Packet) {
	level := PayloadLevel(len(pkt.Payload))
	if r.extID != 0 {
		if raw := pkt.GetExtension(r.extID); len(raw) > 0 {
			var ext rtp.AudioLevelExtension
			if err := ext.Unmarshal(raw); err == nil {
				level = AudioLevelAmplitude(ext.Level)
			}
		}
	}
	r.mu.Lock()
	r.level = level
	r.at = r.now()
	r.mu.Unlock()
}

func (r *RemoteLevel) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.at.IsZero() || r.now().Sub(r.at) > r.hold {
		return 0
	}
	return r.level
}
