package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// errDecode marks a frame that could not be parsed out of the
// multipart body. It maps to the "decode error" status cause.
var errDecode = errors.New("decode error")

// newUpstreamClient builds the shared HTTP client for camera
// connections. No overall timeout: the response body is an unbounded
// stream, so only dialing and response headers are bounded here.
// Stalled-but-open connections are handled by the health monitor.
func newUpstreamClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: ConnectTimeout}).DialContext,
			ResponseHeaderTimeout: ConnectTimeout,
		},
	}
}

// StartConnection launches the source's connection goroutine if none
// is running. Returns false when a connection is already active. All
// failures end up as registry state, never as panics or return values
// crossing goroutines.
func (s *Source) StartConnection(parent context.Context, client *http.Client) bool {
	s.connMu.Lock()
	if s.connRunning {
		s.connMu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	s.connRunning = true
	s.connStarted = time.Now()
	s.connCancel = cancel
	s.connMu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.connMu.Lock()
			s.connRunning = false
			s.connCancel = nil
			s.connMu.Unlock()
		}()

		err := s.stream(ctx, client)
		if err != nil && ctx.Err() == nil {
			cause := classifyCause(err)
			s.SetOffline(cause)
			log.Warn().Int("source", s.ID).Str("cause", cause).Err(err).
				Msg("source connection ended")
		}
	}()
	return true
}

// CancelConnection tears down the active connection, if any. The
// health monitor uses this for stale sources and shutdown.
func (s *Source) CancelConnection() {
	s.connMu.Lock()
	cancel := s.connCancel
	s.connMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ConnectionRunning reports whether a connection goroutine is active,
// and if so since when.
func (s *Source) ConnectionRunning() (bool, time.Time) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connRunning, s.connStarted
}

// stream connects to the upstream camera and pumps frames into the
// registry entry until the context is cancelled or the connection
// fails. It never retries internally; the health monitor owns
// reconnection.
func (s *Source) stream(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "mjpeg-stream-server/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect: upstream returned HTTP %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("%w: bad content type: %v", errDecode, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return fmt.Errorf("%w: not a multipart stream: %s", errDecode, mediaType)
	}

	log.Info().Int("source", s.ID).Str("url", s.URL).Msg("source connected")

	mr := multipart.NewReader(resp.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read part: %w", err)
		}

		data, err := io.ReadAll(io.LimitReader(part, MaxFrameBytes))
		part.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if !validJPEG(data) {
			return fmt.Errorf("%w: incomplete jpeg (%d bytes)", errDecode, len(data))
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		s.Publish(&Frame{Data: data, ContentType: contentType})
		framesReceived.WithLabelValues(fmtID(s.ID)).Inc()
	}
}

// validJPEG checks the SOI marker and scans backwards for EOI so a
// truncated part is never published. Some cameras pad frames with
// trailing zero bytes, hence the backward scan.
func validJPEG(data []byte) bool {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	for i := len(data) - 2; i >= 2; i-- {
		if data[i] == 0xFF && data[i+1] == 0xD9 {
			return true
		}
		if data[i+1] != 0x00 {
			return false
		}
	}
	return false
}

// classifyCause maps a connection error to the short status cause
// reported via /check_streams.
func classifyCause(err error) string {
	if errors.Is(err, errDecode) {
		return "decode error"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "connection failed"
}
