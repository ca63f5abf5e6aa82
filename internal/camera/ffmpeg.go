package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // frame validation
	"os/exec"
	"strconv"
	"time"

	"github.com/casalprim/interfono/internal/infrastructure/config"
	"github.com/casalprim/interfono/internal/infrastructure/logging"
)

// Capturer grabs frames with ffmpeg. It satisfies the camera component's
// FrameCapturer interface.
type Capturer struct {
	inputFormat string // e.g. "v4l2"
	inputDevice string // e.g. "/dev/video0"
	width       int
	logger      *logging.Logger
}

// New returns a capturer for the configured input device.
func New(cfg config.CameraConfig, logger *logging.Logger) *Capturer {
	return &Capturer{
		inputFormat: cfg.InputFormat,
		inputDevice: cfg.InputDevice,
		width:       cfg.Width,
		logger:      logger,
	}
}

// args builds the ffmpeg invocation for a single frame. Height -2 keeps
// the aspect ratio.
func (c *Capturer) args() []string {
	return []string{
		"-hide_banner",
		"-f", c.inputFormat,
		"-i", c.inputDevice,
		"-vf", "scale=" + strconv.Itoa(c.width) + ":-2",
		"-frames:v", "1",
		"-f", "mjpeg",
		"pipe:1",
	}
}

// Capture runs ffmpeg to grab one frame and returns it with its capture
// time. The frame is decoded once to reject truncated or garbage output
// before it reaches the broker.
func (c *Capturer) Capture(ctx context.Context) ([]byte, time.Time, error) {
	captured := time.Now()

	frame, err := exec.CommandContext(ctx, "ffmpeg", c.args()...).Output()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("camera: ffmpeg: %w", err)
	}

	if _, _, err := image.Decode(bytes.NewReader(frame)); err != nil {
		return nil, time.Time{}, fmt.Errorf("camera: invalid frame: %w", err)
	}

	c.logger.Debug("frame captured",
		"bytes", len(frame),
		"elapsed", time.Since(captured),
	)
	return frame, captured, nil
}
