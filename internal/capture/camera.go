// Package capture reads frames from the station camera using GoCV (OpenCV)
// and publishes the most recent frame for downstream consumers.
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings for the drop station.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Sentinel errors for camera reads.
var (
	ErrCameraNotOpen = errors.New("camera is not open")
	ErrReadFailed    = errors.New("failed to read frame from camera")
	ErrEmptyFrame    = errors.New("captured frame is empty")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// webcam captures video from a local camera device using GoCV.
type webcam struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

// NewCamera creates a Camera for the given device ID. Resolution is fixed at
// 640x480; the detection defaults assume this frame size.
func NewCamera(deviceID int) Camera {
	return &webcam{
		deviceID: deviceID,
		fps:      DefaultFPS,
	}
}

// Open opens the camera device. Opening an already-open camera is a no-op.
func (c *webcam) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases the device.
func (c *webcam) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *webcam) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, ErrReadFailed
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

// SetFPS sets the capture frame rate. Values <= 0 are ignored.
func (c *webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frame rate setting.
func (c *webcam) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen reports whether the camera is currently open.
func (c *webcam) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
