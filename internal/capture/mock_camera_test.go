package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/binsight/testdata"
)

func TestMockCamera_ReplaysDropScene(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	empty := testdata.EmptyScene()
	item := testdata.CenteredObject(120, 120)
	defer testdata.CloseFrames([]*gocv.Mat{empty, item})

	cam := NewMockCamera([]*gocv.Mat{empty, item}, false)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	first, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	emptyMean := first.Mean().Val1
	first.Close()

	second, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	itemMean := second.Mean().Val1
	second.Close()

	if itemMean <= emptyMean {
		t.Errorf("item scene mean = %v, want brighter than empty zone %v", itemMean, emptyMean)
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrPlaybackExhausted) {
		t.Errorf("error after last frame = %v, want ErrPlaybackExhausted", err)
	}
}

func TestMockCamera_LoopClonesFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	scene := testdata.EmptyScene()
	defer scene.Close()

	cam := NewMockCamera([]*gocv.Mat{scene}, true)
	cam.Open()
	defer cam.Close()

	// Deface the returned clone; the scripted scene must stay intact.
	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	frame.SetTo(gocv.NewScalar(255, 255, 255, 0))
	frame.Close()

	for i := 0; i < 4; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		if mean := f.Mean().Val1; mean > 50 {
			t.Fatalf("frame mean = %v, scripted scene was modified through a clone", mean)
		}
		f.Close()
	}
}

func TestMockCamera_SceneSwapRestartsPlayback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	empty := testdata.EmptyScene()
	item := testdata.CenteredObject(120, 120)
	defer testdata.CloseFrames([]*gocv.Mat{empty, item})

	cam := NewMockCamera([]*gocv.Mat{empty}, true)
	cam.Open()
	defer cam.Close()

	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	// An item drops into the zone.
	cam.SetFrames([]*gocv.Mat{item})
	f, err = cam.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Mean().Val1 < 25 {
		t.Errorf("frame mean = %v, want the swapped-in item scene", f.Mean().Val1)
	}
}

func TestMockCamera_OpenStateAndFPS(t *testing.T) {
	cam := NewMockCamera(nil, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	if got := cam.FPS(); got != DefaultFPS {
		t.Errorf("FPS() = %d, want station default %d", got, DefaultFPS)
	}
	cam.SetFPS(5)
	if got := cam.FPS(); got != 5 {
		t.Errorf("FPS() = %d, want 5", got)
	}
	cam.SetFPS(0)
	if got := cam.FPS(); got != 5 {
		t.Errorf("FPS() = %d after SetFPS(0), want previous value kept", got)
	}

	cam.Open()
	if !cam.IsOpen() {
		t.Error("IsOpen() should report true after Open()")
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrPlaybackExhausted) {
		t.Errorf("ReadFrame() with no frames error = %v, want ErrPlaybackExhausted", err)
	}

	cam.Close()
	if cam.IsOpen() {
		t.Error("IsOpen() should report false after Close()")
	}
}
