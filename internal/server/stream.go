package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/binsight/internal/capture"
)

// streamInterval paces the MJPEG stream at roughly 15 FPS.
const streamInterval = 66 * time.Millisecond

// StreamHandler serves an MJPEG preview from the latest-frame mailbox. It
// never touches the camera directly, so any number of clients can watch
// without disturbing the pipeline.
type StreamHandler struct {
	latest *capture.LatestFrame
}

// NewStreamHandler creates a StreamHandler reading from the given mailbox.
func NewStreamHandler(latest *capture.LatestFrame) *StreamHandler {
	return &StreamHandler{latest: latest}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame := h.latest.Latest()
		if frame == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		buf, err := gocv.IMEncode(".jpg", *frame)
		frame.Close()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(streamInterval)
	}
}
