// Package process supervises a long-running subprocess: start, output
// capture, restart with backoff on unexpected exit, and graceful stop
// via SIGTERM to the process group with a SIGKILL fallback.
//
// The bridge uses it to keep the go2rtc video relay alive while the
// video presence line is active.
package process
