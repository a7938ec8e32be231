package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJPEG encodes a solid-color frame. Solid colors survive JPEG
// compression nearly exactly, which keeps pixel assertions simple.
func testJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// meanRed decodes a frame and averages its red channel.
func meanRed(t *testing.T, data []byte) float64 {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	rgba := toRGBA(img)
	var sum, n uint64
	for i := 0; i < len(rgba.Pix); i += 4 {
		sum += uint64(rgba.Pix[i])
		n++
	}
	return float64(sum) / float64(n)
}

// mjpegUpstream fakes a camera: it serves the given frames at the
// given interval and then terminates the multipart body cleanly. A
// part is only complete once the next boundary arrives, hence the
// closing delimiter.
func mjpegUpstream(frames [][]byte, interval time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=upstream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
			fmt.Fprintf(w, "--upstream\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
			flusher.Flush()
		}
		fmt.Fprint(w, "--upstream--\r\n")
	}))
}

// loopingUpstream fakes a camera that serves the same frame forever.
func loopingUpstream(frame []byte, interval time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=upstream")
		flusher := w.(http.Flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
			fmt.Fprintf(w, "--upstream\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
			flusher.Flush()
		}
	}))
}

// silentUpstream fakes a camera that accepts the connection, sends the
// multipart header and then never delivers a frame.
func silentUpstream() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=upstream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
}

// waitFrame blocks until the feed publishes a frame different from
// prev, or fails the test after the timeout.
func waitFrame(t *testing.T, feed frameFeed, prev *Frame, timeout time.Duration) *Frame {
	t.Helper()
	deadline := time.After(timeout)
	for {
		frame, changed := feed.Snapshot()
		if frame != nil && frame != prev {
			return frame
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("no frame published within %s", timeout)
		}
	}
}

func testConfig(urls ...string) Config {
	cfg := DefaultConfig()
	cfg.Sources = urls
	cfg.Staleness = 200 * time.Millisecond
	cfg.HealthInterval = 50 * time.Millisecond
	return cfg
}
