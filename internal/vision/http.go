package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPDetector sends each frame to an inference service and decodes its
// predictions. The service accepts a JPEG body on POST /predict and answers
// with {"detections": [{"class_id", "label", "confidence", "box"}]}.
type HTTPDetector struct {
	serviceURL string
	httpClient *http.Client
	quality    int
}

// NewHTTPDetector creates a detector for the service at serviceURL.
func NewHTTPDetector(serviceURL string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		serviceURL: serviceURL,
		httpClient: &http.Client{Timeout: timeout},
		quality:    90,
	}
}

type predictResponse struct {
	Detections []struct {
		ClassID    *int       `json:"class_id"`
		Label      string     `json:"label"`
		Confidence float64    `json:"confidence"`
		Box        [4]float64 `json:"box"`
	} `json:"detections"`
}

// Detect implements Detector. Transport and decoding failures wrap
// ErrDetection.
func (d *HTTPDetector) Detect(ctx context.Context, frameIndex int, img image.Image) ([]Detection, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("%w: encode frame %d: %v", ErrDetection, frameIndex, err)
	}

	url := fmt.Sprintf("%s/predict", d.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrDetection, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("X-Frame-Index", strconv.Itoa(frameIndex))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: service returned status %d: %s", ErrDetection, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrDetection, err)
	}

	out := make([]Detection, 0, len(pr.Detections))
	for _, p := range pr.Detections {
		det := Detection{
			ClassID:    -1,
			Label:      p.Label,
			Confidence: p.Confidence,
			Box:        Box{X1: p.Box[0], Y1: p.Box[1], X2: p.Box[2], Y2: p.Box[3]},
		}
		if p.ClassID != nil {
			det.ClassID = *p.ClassID
		}
		out = append(out, det)
	}
	return out, nil
}

// Health checks that the inference service is reachable.
func (d *HTTPDetector) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", d.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("detector health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health check returned status %d", resp.StatusCode)
	}
	return nil
}
