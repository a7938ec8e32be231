package main

import (
	"fmt"
	"net/http"
	"time"
)

// frameFeed is anything that can hand out its latest frame plus a
// signal for the next one. Sources and the mixer both satisfy it, so
// /stream/:id and /mixed_stream share one writer.
type frameFeed interface {
	Snapshot() (*Frame, <-chan struct{})
}

// streamFrames writes an unbounded multipart/x-mixed-replace response
// from the feed until the client disconnects. Each client runs its own
// copy of this loop with an independent cursor; a slow client only
// skips frames for itself. Error text never goes in-band, the stream
// simply goes quiet while a source is down.
func streamFrames(w http.ResponseWriter, r *http.Request, feed frameFeed, endpoint string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+StreamBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "close")
	// flush headers right away so clients of a quiet source see the
	// stream open rather than a pending request
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamClients.WithLabelValues(endpoint).Inc()
	defer streamClients.WithLabelValues(endpoint).Dec()

	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	var last *Frame
	for {
		frame, next := feed.Snapshot()
		if frame != nil && frame != last {
			if err := writePart(w, frame); err != nil {
				return
			}
			flusher.Flush()
			last = frame
		}

		select {
		case <-ctx.Done():
			return
		case <-next:
		case <-keepalive.C:
			// re-send the current frame so idle connections stay warm
			if last != nil {
				if err := writePart(w, last); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writePart(w http.ResponseWriter, f *Frame) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		StreamBoundary, f.ContentType, len(f.Data)); err != nil {
		return err
	}
	if _, err := w.Write(f.Data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
