// Package camera captures single frames from the doorbell camera by
// running ffmpeg against the configured input device. Frames are MJPEG
// encoded and published as-is on the camera component's data topic.
package camera
