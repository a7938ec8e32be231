package main

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartsConnections(t *testing.T) {
	frame := testJPEG(t, 16, 16, color.RGBA{R: 255, A: 255})
	upstream := loopingUpstream(frame, 20*time.Millisecond)
	defer upstream.Close()

	reg := NewRegistry([]string{upstream.URL})
	m := NewMonitor(reg, testConfig(upstream.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		return reg.Sources()[0].Online()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMonitorFlagsStaleSource(t *testing.T) {
	upstream := silentUpstream()
	defer upstream.Close()

	reg := NewRegistry([]string{upstream.URL})
	m := NewMonitor(reg, testConfig(upstream.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// connected but silent: must go offline within one monitor tick
	// plus the staleness window
	require.Eventually(t, func() bool {
		online, lastErr := reg.Sources()[0].Health()
		return !online && lastErr == "stale: no frames received"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMonitorIsolatesSources(t *testing.T) {
	frame := testJPEG(t, 16, 16, color.RGBA{G: 255, A: 255})
	healthy := loopingUpstream(frame, 20*time.Millisecond)
	defer healthy.Close()
	silent := silentUpstream()
	defer silent.Close()

	reg := NewRegistry([]string{healthy.URL, silent.URL, healthy.URL})
	m := NewMonitor(reg, testConfig(healthy.URL, silent.URL, healthy.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// source 2 fails without affecting 1 and 3
	require.Eventually(t, func() bool {
		statuses := reg.Statuses()
		return statuses[0].Online && statuses[2].Online &&
			!statuses[1].Online && statuses[1].Error == "stale: no frames received"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMonitorPushesStatusChanges(t *testing.T) {
	upstream := silentUpstream()
	defer upstream.Close()

	reg := NewRegistry([]string{upstream.URL})
	hub := NewStatusHub()
	m := NewMonitor(reg, testConfig(upstream.URL), hub)

	m.tick(context.Background())
	hub.mu.Lock()
	first, count := hub.last, hub.broadcasts
	hub.mu.Unlock()
	require.NotNil(t, first, "initial snapshot pushed")
	require.Equal(t, 1, count)

	// unchanged statuses do not produce a new push
	m.tick(context.Background())
	hub.mu.Lock()
	count = hub.broadcasts
	hub.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestStatusesEqual(t *testing.T) {
	a := []SourceStatus{{ID: 1, Online: true}}
	b := []SourceStatus{{ID: 1, Online: true}}
	c := []SourceStatus{{ID: 1, Online: false, Error: "timeout"}}

	assert.True(t, statusesEqual(a, b))
	assert.False(t, statusesEqual(a, c))
	assert.False(t, statusesEqual(a, nil))
}
