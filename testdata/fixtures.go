// Package testdata builds synthetic camera frames for tests: a waste drop
// scene is just a dark background with a bright object in the drop zone, so
// no recorded footage is needed.
package testdata

import (
	"image"

	"gocv.io/x/gocv"
)

// Standard test frame size, matching the station camera resolution.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// EmptyScene returns a dark BGR frame with nothing in the drop zone.
// The caller owns the Mat.
func EmptyScene() *gocv.Mat {
	frame := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(20, 20, 20, 0))
	return &frame
}

// SceneWithObject returns a dark frame with a bright block covering r,
// standing in for a dropped item. The caller owns the Mat.
func SceneWithObject(r image.Rectangle) *gocv.Mat {
	frame := EmptyScene()
	region := frame.Region(r)
	region.SetTo(gocv.NewScalar(230, 230, 230, 0))
	region.Close()
	return frame
}

// CenteredObject returns a scene with a w x h object centered in the frame,
// inside the default drop zone ROI.
func CenteredObject(w, h int) *gocv.Mat {
	x := (FrameWidth - w) / 2
	y := (FrameHeight - h) / 2
	return SceneWithObject(image.Rect(x, y, x+w, y+h))
}

// CloseFrames releases a set of frames.
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
