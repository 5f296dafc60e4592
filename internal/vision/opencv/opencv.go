// Package opencv provides the OpenCV-backed frame source and YOLO detector.
// It requires gocv and a native OpenCV installation; everything else in the
// module builds without them.
package opencv

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"github.com/banshee-data/signal.report/internal/vision"
)

// VideoSource decodes a video file frame by frame, resizing every frame to a
// fixed size for the detector.
type VideoSource struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	resized gocv.Mat
	size    image.Point
	info    vision.StreamInfo
}

// OpenVideo opens path and prepares frames resized to resizeTo.
func OpenVideo(path string, resizeTo image.Point) (*VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", vision.ErrVideoOpen, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %s", vision.ErrVideoOpen, path)
	}
	if resizeTo.X <= 0 || resizeTo.Y <= 0 {
		capture.Close()
		return nil, fmt.Errorf("invalid resize target %v", resizeTo)
	}

	return &VideoSource{
		capture: capture,
		frame:   gocv.NewMat(),
		resized: gocv.NewMat(),
		size:    resizeTo,
		info: vision.StreamInfo{
			Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
			FPS:        capture.Get(gocv.VideoCaptureFPS),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		},
	}, nil
}

// Info implements vision.FrameSource.
func (v *VideoSource) Info() vision.StreamInfo {
	return v.info
}

// Next implements vision.FrameSource. It returns io.EOF when the stream ends.
func (v *VideoSource) Next() (image.Image, error) {
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		return nil, io.EOF
	}
	gocv.Resize(v.frame, &v.resized, v.size, 0, 0, gocv.InterpolationLinear)
	img, err := v.resized.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the capture handle and frame buffers.
func (v *VideoSource) Close() error {
	v.frame.Close()
	v.resized.Close()
	return v.capture.Close()
}

// YOLODetector runs a YOLOv8 ONNX export through OpenCV's DNN module.
type YOLODetector struct {
	net          gocv.Net
	inputSize    int
	threshold    float64
	nmsThreshold float64
	labels       []string
}

// DefaultNMSThreshold is the IoU above which overlapping boxes are merged.
const DefaultNMSThreshold = 0.45

// NewYOLODetector loads an ONNX model. inputSize is the square model input
// edge, 640 for the stock exports.
func NewYOLODetector(modelPath string, inputSize int, threshold float64) (*YOLODetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}
	if inputSize <= 0 {
		inputSize = 640
	}
	return &YOLODetector{
		net:          net,
		inputSize:    inputSize,
		threshold:    threshold,
		nmsThreshold: DefaultNMSThreshold,
		labels:       vision.COCOLabels,
	}, nil
}

// Detect implements vision.Detector. Box coordinates are in frame pixels.
func (d *YOLODetector) Detect(ctx context.Context, frameIndex int, img image.Image) ([]vision.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", vision.ErrDetection, frameIndex, err)
	}
	defer mat.Close()

	size := image.Pt(d.inputSize, d.inputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: read output: %v", vision.ErrDetection, frameIndex, err)
	}
	dets, err := vision.DecodeYOLOv8(data, len(d.labels), d.threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", vision.ErrDetection, frameIndex, err)
	}

	bounds := img.Bounds()
	vision.ScaleBoxes(dets,
		float64(bounds.Dx())/float64(d.inputSize),
		float64(bounds.Dy())/float64(d.inputSize))
	return d.suppress(dets), nil
}

// suppress drops overlapping boxes of the same class. Boxes of different
// classes are kept even when they overlap, so a car and a truck on the same
// spot are both reported.
func (d *YOLODetector) suppress(dets []vision.Detection) []vision.Detection {
	if len(dets) == 0 {
		return nil
	}
	return vision.NonMaxSuppression(dets, d.nmsThreshold)
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	return d.net.Close()
}
