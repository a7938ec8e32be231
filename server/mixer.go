package main

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type mixPhase int

const (
	phaseHold mixPhase = iota
	phaseTransition
)

// mixSlot caches the last mixable frame per source: the raw frame for
// hold-phase passthrough and its RGBA pixels for blending. A source
// whose frames fail to decode or whose dimensions do not match the mix
// never updates its slot, so the slot always holds the last good frame.
type mixSlot struct {
	frame *Frame
	rgba  *image.RGBA
}

// Mixer produces the composite stream: it rotates through the registry
// sources on its own clock, crossfading between neighbours. Its cadence
// is driven purely by the output ticker; source availability only
// affects pixel content, never timing.
type Mixer struct {
	reg *Registry
	cfg Config

	mu      sync.RWMutex
	frame   *Frame
	changed chan struct{}

	active     int
	phase      mixPhase
	phaseStart time.Time

	slots           []mixSlot
	dims            image.Point
	placeholder     *Frame
	placeholderDims image.Point
}

// NewMixer creates the mixer in the Hold phase focused on the first
// configured source.
func NewMixer(reg *Registry, cfg Config) *Mixer {
	return &Mixer{
		reg:     reg,
		cfg:     cfg,
		changed: make(chan struct{}),
		slots:   make([]mixSlot, reg.Len()),
	}
}

// Run emits frames at the configured output rate until the context is
// cancelled.
func (m *Mixer) Run(ctx context.Context) {
	m.phaseStart = time.Now()
	ticker := time.NewTicker(m.cfg.OutputTick())
	defer ticker.Stop()

	log.Info().Int("fps", m.cfg.OutputFPS).
		Dur("rotation", m.cfg.RotationInterval).
		Dur("crossfade", m.cfg.Crossfade).
		Msg("mixer started")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Snapshot returns the latest mixed frame and a channel closed when
// the next one is published. Same contract as Source.Snapshot, so the
// proxy writer serves both.
func (m *Mixer) Snapshot() (*Frame, <-chan struct{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame, m.changed
}

// ActiveIndex returns the registry position currently in focus. Phase
// state is owned by the mixer goroutine; call this only from code that
// drives Tick itself.
func (m *Mixer) ActiveIndex() int { return m.active }

// Tick produces exactly one output frame for the given instant.
func (m *Mixer) Tick(now time.Time) {
	m.refreshSlots()

	if m.phase == phaseHold && now.Sub(m.phaseStart) >= m.cfg.HoldDuration() && m.reg.Len() > 1 {
		m.phase = phaseTransition
		m.phaseStart = now
		log.Debug().Int("from", m.active).Int("to", m.nextIndex()).Msg("transition started")
	}

	var out *Frame
	if m.phase == phaseTransition {
		out = m.transitionFrame(now)
	} else {
		out = m.holdFrame()
	}
	m.publish(out)
}

func (m *Mixer) nextIndex() int {
	return (m.active + 1) % m.reg.Len()
}

// holdFrame passes the focused source's frame through untouched, so a
// steady-state mixed stream carries the exact upstream bytes.
func (m *Mixer) holdFrame() *Frame {
	if f := m.slots[m.active].frame; f != nil {
		return f
	}
	return m.placeholderLocked()
}

// transitionFrame blends the outgoing and incoming sources at the
// linear weight for this instant. When either side has never produced
// a usable frame the available side is held instead; when neither has,
// the placeholder keeps the clock honest.
func (m *Mixer) transitionFrame(now time.Time) *Frame {
	w := float64(now.Sub(m.phaseStart)) / float64(m.cfg.Crossfade)
	if w < 0 {
		w = 0
	}
	next := m.nextIndex()
	outgoing, incoming := m.slots[m.active], m.slots[next]

	if w >= 1 {
		m.active = next
		m.phase = phaseHold
		m.phaseStart = now
		log.Info().Int("active", m.active).Msg("transition complete")
		return m.holdFrame()
	}

	switch {
	case outgoing.rgba != nil && incoming.rgba != nil:
		blended, err := encodeJPEG(blendRGBA(outgoing.rgba, incoming.rgba, w))
		if err != nil {
			log.Error().Err(err).Msg("blend encode failed")
			return m.holdFrame()
		}
		return blended
	case outgoing.frame != nil:
		return outgoing.frame
	case incoming.frame != nil:
		return incoming.frame
	default:
		return m.placeholderLocked()
	}
}

// refreshSlots pulls the latest frame of every source into its slot,
// establishing the mix dimensions from the first decodable frame and
// excluding sources that do not match them.
func (m *Mixer) refreshSlots() {
	for i, s := range m.reg.Sources() {
		f, _ := s.Snapshot()
		if f == nil || f == m.slots[i].frame {
			continue
		}
		img, err := f.Image()
		if err != nil {
			// the connection only publishes frames with intact
			// markers, but a corrupt scan can still fail here
			log.Debug().Int("source", s.ID).Err(err).Msg("frame not decodable, keeping last")
			continue
		}
		dims := image.Pt(img.Bounds().Dx(), img.Bounds().Dy())
		if m.dims == (image.Point{}) {
			m.dims = dims
			log.Info().Int("width", dims.X).Int("height", dims.Y).Msg("mix dimensions established")
		} else if dims != m.dims {
			m.rejectDims(s, dims)
			continue
		}
		m.slots[i] = mixSlot{frame: f, rgba: toRGBA(img)}
	}
}

// rejectDims reports a frame-size mismatch once per source. Mismatched
// dimensions are a configuration error; the source keeps serving its
// own proxy endpoint but no longer contributes to the mix.
func (m *Mixer) rejectDims(s *Source, dims image.Point) {
	s.dimsMu.Lock()
	seen := s.dimsRejected
	s.dimsRejected = true
	s.dimsMu.Unlock()
	if !seen {
		log.Error().Int("source", s.ID).
			Str("got", dims.String()).Str("want", m.dims.String()).
			Msg("frame dimensions do not match mix, excluding source from mixing")
	}
}

func (m *Mixer) placeholderLocked() *Frame {
	if m.placeholder == nil || m.placeholderDims != m.dims {
		m.placeholder = placeholderFrame(m.dims)
		m.placeholderDims = m.dims
	}
	return m.placeholder
}

func (m *Mixer) publish(f *Frame) {
	m.mu.Lock()
	m.frame = f
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
	mixerFrames.Inc()
}
