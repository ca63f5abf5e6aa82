package component

import (
	"context"
	"encoding/json"
	"time"
)

// FrameCapturer produces a single encoded frame from the camera hardware.
// Satisfied by the ffmpeg-backed capturer in internal/camera.
type FrameCapturer interface {
	Capture(ctx context.Context) ([]byte, time.Time, error)
}

// Camera publishes snapshot frames on demand. It owns no pin: frames go
// out on the data topic, capture timestamps on the attributes topic.
type Camera struct {
	base
	capturer FrameCapturer
	timeout  time.Duration
}

// NewCamera returns a camera component backed by capturer. timeout bounds
// each capture attempt.
func NewCamera(name, deviceRoot string, capturer FrameCapturer, timeout time.Duration, pub Publisher, log Logger, qos byte) (*Camera, error) {
	bs, err := newBase(name, deviceRoot, "camera", pub, log, qos)
	if err != nil {
		return nil, err
	}
	return &Camera{
		base:     bs,
		capturer: capturer,
		timeout:  timeout,
	}, nil
}

// Trigger captures one frame and publishes it with its timestamp. Capture
// failures are logged and absorbed: a dead camera never takes the rest of
// the bridge down with it.
func (c *Camera) Trigger(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	frame, captured, err := c.capturer.Capture(ctx)
	if err != nil {
		c.log.Warn("frame capture failed",
			"component", c.objectID,
			"error", err,
		)
		return
	}

	if err := c.pub.Publish(DataTopic(c.root, c.objectID), frame, c.qos, false); err != nil {
		c.log.Warn("frame publish failed", "component", c.objectID, "error", err)
		return
	}

	attrs, err := json.Marshal(map[string]string{
		"timestamp": captured.Format(time.RFC3339),
	})
	if err != nil {
		c.log.Warn("attributes encode failed", "component", c.objectID, "error", err)
		return
	}
	if err := c.pub.Publish(AttributesTopic(c.root, c.objectID), attrs, c.qos, false); err != nil {
		c.log.Warn("attributes publish failed", "component", c.objectID, "error", err)
	}
}

// CommandTopics is empty: snapshots are triggered by button presses, not
// broker commands.
func (c *Camera) CommandTopics() []string {
	return nil
}

// HandleCommand logs and absorbs any payload; the camera accepts no
// commands.
func (c *Camera) HandleCommand(payload []byte) error {
	c.log.Warn("command sent to camera component",
		"component", c.objectID,
		"payload", string(payload),
	)
	return nil
}

// Discovery returns the camera's discovery fragment. Cameras publish
// frames, not states, so the fragment carries data and attributes topics
// instead of a state topic.
func (c *Camera) Discovery(deviceUniqueID string) Fragment {
	frag := c.fragment(deviceUniqueID)
	frag.StateTopic = ""
	frag.DataTopic = DataTopic(c.root, c.objectID)
	frag.AttributesTopic = AttributesTopic(c.root, c.objectID)
	return frag
}

// Close is a no-op; the camera holds no hardware resources of its own.
func (c *Camera) Close() error {
	return nil
}
