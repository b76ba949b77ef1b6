package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// foregroundLevel is the binarization threshold applied to the subtractor
// output. MOG2/KNN mark confident foreground at 255 and shadows around 127;
// thresholding at 200 discards shadow pixels.
const foregroundLevel = 200

// backgroundModel wraps a gocv background subtractor together with the
// morphological cleanup kernel. It is owned exclusively by one detector
// instance and is not safe for concurrent use.
type backgroundModel struct {
	model  string
	mog2   gocv.BackgroundSubtractorMOG2
	knn    gocv.BackgroundSubtractorKNN
	kernel gocv.Mat
}

func newBackgroundModel(cfg Config) *backgroundModel {
	b := &backgroundModel{model: normalizeModel(cfg.Model)}
	if b.model == ModelKNN {
		b.knn = gocv.NewBackgroundSubtractorKNNWithParams(cfg.History, cfg.Dist2Threshold, cfg.DetectShadows)
	} else {
		b.mog2 = gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, cfg.DetectShadows)
	}
	b.kernel = ellipticalKernel(cfg.MorphKernelSize)
	return b
}

func ellipticalKernel(size int) gocv.Mat {
	if size < 1 {
		size = 1
	}
	return gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
}

// foregroundMask applies the frame to the background model and returns the
// cleaned binary mask: subtract, threshold, morphological open then close.
// The caller owns the returned Mat.
func (b *backgroundModel) foregroundMask(frame gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	if b.model == ModelKNN {
		b.knn.Apply(frame, &fg)
	} else {
		b.mog2.Apply(frame, &fg)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(fg, &binary, foregroundLevel, 255, gocv.ThresholdBinary)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(binary, &opened, gocv.MorphOpen, b.kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, b.kernel)
	return closed
}

// setKernelSize replaces the morphology kernel without touching the model.
func (b *backgroundModel) setKernelSize(size int) {
	b.kernel.Close()
	b.kernel = ellipticalKernel(size)
}

func (b *backgroundModel) Close() {
	if b.model == ModelKNN {
		b.knn.Close()
	} else {
		b.mog2.Close()
	}
	b.kernel.Close()
}
