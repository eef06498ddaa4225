package device

import "fmt"

// Reading is an optional temperature-like value. The zero Reading is
// "not available".
type Reading struct {
	Value float64
	Valid bool
}

// Some returns a present reading.
func Some(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// String returns the value, or "n/a" when absent.
func (r Reading) String() string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%g", r.Value)
}

// Status is the terminal outcome of one device in a bulk read.
type Status int

const (
	// StatusValue means the device answered with a value.
	StatusValue Status = iota + 1
	// StatusNotAvailable means the device answered but has no value yet.
	StatusNotAvailable
	// StatusDeviceGone means the device stopped before answering.
	StatusDeviceGone
	// StatusTimedOut means the device neither answered nor stopped in time.
	StatusTimedOut
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusValue:
		return "value"
	case StatusNotAvailable:
		return "not-available"
	case StatusDeviceGone:
		return "device-gone"
	case StatusTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is one entry of a merged bulk-read report. Value is only
// meaningful for StatusValue.
type Result struct {
	Status Status
	Value  float64
}

// Value returns a StatusValue result.
func Value(v float64) Result {
	return Result{Status: StatusValue, Value: v}
}

// NotAvailable returns a StatusNotAvailable result.
func NotAvailable() Result {
	return Result{Status: StatusNotAvailable}
}

// DeviceGone returns a StatusDeviceGone result.
func DeviceGone() Result {
	return Result{Status: StatusDeviceGone}
}

// TimedOut returns a StatusTimedOut result.
func TimedOut() Result {
	return Result{Status: StatusTimedOut}
}

// resultOf maps a device answer to its outcome.
func resultOf(r Reading) Result {
	if r.Valid {
		return Value(r.Value)
	}
	return NotAvailable()
}

func (r Result) String() string {
	if r.Status == StatusValue {
		return fmt.Sprintf("%g", r.Value)
	}
	return r.Status.String()
}
