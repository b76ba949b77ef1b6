package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestLatestFrame_EmptyReturnsNil(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	l := NewLatestFrame()
	defer l.Close()

	if got := l.Latest(); got != nil {
		got.Close()
		t.Error("Latest() on empty mailbox should return nil")
	}
}

func TestLatestFrame_PublishReplacesOld(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	l := NewLatestFrame()
	defer l.Close()

	first := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer first.Close()
	l.Publish(&first)

	second := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer second.Close()
	second.SetTo(gocv.NewScalar(200, 200, 200, 0))
	l.Publish(&second)

	got := l.Latest()
	if got == nil {
		t.Fatal("Latest() returned nil after publish")
	}
	defer got.Close()

	if mean := got.Mean().Val1; mean < 190 {
		t.Errorf("Latest() mean = %v, want the newer bright frame", mean)
	}
}

func TestLatestFrame_LatestReturnsCopy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	l := NewLatestFrame()
	defer l.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	l.Publish(&frame)

	got := l.Latest()
	if got == nil {
		t.Fatal("Latest() returned nil after publish")
	}

	// Closing the copy must not disturb the stored frame.
	got.Close()

	again := l.Latest()
	if again == nil {
		t.Fatal("Latest() returned nil on second read")
	}
	again.Close()
}

func TestLatestFrame_IgnoresNilAndEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	l := NewLatestFrame()
	defer l.Close()

	l.Publish(nil)

	empty := gocv.NewMat()
	defer empty.Close()
	l.Publish(&empty)

	if got := l.Latest(); got != nil {
		got.Close()
		t.Error("nil and empty frames should not be stored")
	}
}

func TestLatestFrame_CloseMakesNoOp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	l := NewLatestFrame()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	l.Publish(&frame)
	l.Close()

	l.Publish(&frame)
	if got := l.Latest(); got != nil {
		got.Close()
		t.Error("Latest() after Close() should return nil")
	}

	// Double close must not panic.
	l.Close()
}
