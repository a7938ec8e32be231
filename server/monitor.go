package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor keeps every configured source connected and flags sources
// whose connection is open but has stopped delivering frames. It is
// the only component that starts or tears down source connections.
type Monitor struct {
	reg    *Registry
	cfg    Config
	client *http.Client
	hub    *StatusHub

	lastStatuses []SourceStatus
}

// NewMonitor wires the health monitor to the registry and, optionally,
// a status hub that gets a push on every status change.
func NewMonitor(reg *Registry, cfg Config, hub *StatusHub) *Monitor {
	return &Monitor{
		reg:    reg,
		cfg:    cfg,
		client: newUpstreamClient(),
		hub:    hub,
	}
}

// Run ticks until the context is cancelled. The first evaluation
// happens immediately so sources start connecting at startup rather
// than one tick later. The monitor itself never fails terminally.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			for _, s := range m.reg.Sources() {
				s.CancelConnection()
			}
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	for _, s := range m.reg.Sources() {
		m.checkSource(ctx, s)
	}
	m.publishStatuses()
}

// checkSource evaluates one source. A panic while evaluating one
// source must not take down the monitor loop, so it is contained here;
// the other sources are still serviced on the same tick.
func (m *Monitor) checkSource(ctx context.Context, s *Source) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("source", s.ID).Interface("panic", r).
				Msg("health check panicked")
		}
	}()

	running, since := s.ConnectionRunning()
	if !running {
		if s.StartConnection(ctx, m.client) {
			log.Debug().Int("source", s.ID).Msg("starting source connection")
		}
		return
	}

	// A connection that is open but silent is as dead as a refused
	// one. Before the first frame the connection start time is the
	// reference point.
	last := s.LastUpdated()
	if last.Before(since) {
		last = since
	}
	if time.Since(last) > m.cfg.Staleness {
		log.Warn().Int("source", s.ID).Time("last_frame", last).
			Msg("source stalled, restarting connection")
		s.SetOffline("stale: no frames received")
		s.CancelConnection()
	}
}

// publishStatuses updates the online gauge and pushes a snapshot to
// the status hub when anything changed since the previous tick.
func (m *Monitor) publishStatuses() {
	statuses := m.reg.Statuses()
	for i, st := range statuses {
		v := 0.0
		if st.Online {
			v = 1.0
		}
		sourceOnline.WithLabelValues(fmtID(m.reg.Sources()[i].ID)).Set(v)
	}

	if m.hub != nil && !statusesEqual(m.lastStatuses, statuses) {
		m.hub.Broadcast(statuses)
	}
	m.lastStatuses = statuses
}

func statusesEqual(a, b []SourceStatus) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
