package main

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

// Frame is one camera image: the raw JPEG bytes as received from
// upstream plus the part content type. Frames are immutable after
// publication; a new frame replaces the old one wholesale.
type Frame struct {
	Data        []byte
	ContentType string

	decodeOnce sync.Once
	img        image.Image
	decodeErr  error
}

// Image decodes the frame pixels. The result is cached so the mixer
// decodes each unique frame at most once even when it re-emits the
// same frame across several output ticks.
func (f *Frame) Image() (image.Image, error) {
	f.decodeOnce.Do(func() {
		f.img, f.decodeErr = jpeg.Decode(bytes.NewReader(f.Data))
	})
	return f.img, f.decodeErr
}

// Source is one configured upstream camera. Its frame and health
// fields have exactly one writer at a time (the connection goroutine,
// or the health monitor for staleness) and many concurrent readers.
type Source struct {
	ID  int
	URL string

	mu          sync.RWMutex
	frame       *Frame
	online      bool
	lastError   string
	lastUpdated time.Time
	changed     chan struct{} // closed and replaced on every publish

	// connection lifecycle, owned by the health monitor
	connMu      sync.Mutex
	connRunning bool
	connStarted time.Time
	connCancel  func()

	// set once by the mixer when the source's frame size does not
	// match the mix; the source is excluded from mixing afterwards
	dimsMu       sync.Mutex
	dimsRejected bool
}

// NewSource creates a registry entry for a configured camera URL.
func NewSource(id int, url string) *Source {
	return &Source{
		ID:      id,
		URL:     url,
		changed: make(chan struct{}),
	}
}

// SourceStatus is one entry of the /check_streams payload and the
// websocket status feed, in registry order.
type SourceStatus struct {
	ID     int    `json:"id"`
	Online bool   `json:"status"`
	Error  string `json:"error,omitempty"`
}
