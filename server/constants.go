package main

import "time"

// Server configuration defaults
const (
	// DefaultListenAddr is the address the HTTP server binds to
	DefaultListenAddr = ":8091"

	// DefaultRotationInterval is the full cycle time per source in the mixed stream
	DefaultRotationInterval = 60 * time.Second

	// DefaultCrossfade is the duration of the blend between two sources
	DefaultCrossfade = 3 * time.Second

	// DefaultOutputFPS is the mixed stream output frame rate
	DefaultOutputFPS = 20

	// DefaultStaleness is the maximum time without frames before a source is marked offline
	DefaultStaleness = 10 * time.Second

	// DefaultHealthInterval is how often the health monitor evaluates sources
	DefaultHealthInterval = 5 * time.Second

	// ConnectTimeout is the dial + response header timeout for upstream cameras
	ConnectTimeout = 5 * time.Second

	// MaxFrameBytes caps a single multipart part read from an upstream camera
	MaxFrameBytes = 8 << 20

	// KeepaliveInterval is the minimum cadence at which proxy clients get a part
	// even when the source frame has not changed
	KeepaliveInterval = 2 * time.Second

	// MixedJPEGQuality is the encode quality for blended transition frames
	MixedJPEGQuality = 85

	// StreamBoundary is the multipart boundary marker for all outbound streams
	StreamBoundary = "frame"

	// StatusPingInterval is how often to send ping messages to status feed clients
	StatusPingInterval = 54 * time.Second

	// StatusWriteDeadline is the deadline for writing status feed messages
	StatusWriteDeadline = 10 * time.Second

	// StatusReadDeadline is the deadline for reading status feed messages
	StatusReadDeadline = 60 * time.Second

	// StatusReadLimit is the maximum message size for incoming status feed messages
	StatusReadLimit = 512
)
