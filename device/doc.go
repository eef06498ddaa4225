// Package device implements the telemetry aggregation core on top of the
// core actor runtime.
//
// A Manager maps group ids to Group actors, a Group maps device ids to
// Device actors, and every bulk read is served by a short-lived Query actor
// that fans a ReadReading out to a snapshot of the group's devices and
// merges the answers, device terminations and its own timeout into exactly
// one RespondAllReadings.
package device
