package device

import (
	"time"

	"github.com/najoast/sngo-iot/core"
)

// RequestTrackGroup asks the Manager for a group, creating it if needed.
type RequestTrackGroup struct {
	GroupID string
}

// GroupRegistered answers RequestTrackGroup.
type GroupRegistered struct {
	GroupID string
	Group   core.ActorID
}

// RequestTrackDevice asks for a device, creating its group and the device
// itself if needed. The device answers with DeviceRegistered.
type RequestTrackDevice struct {
	GroupID  string
	DeviceID string
}

// DeviceRegistered answers RequestTrackDevice.
type DeviceRegistered struct {
	GroupID  string
	DeviceID string
	Device   core.ActorID
}

// RecordReading stores a value on a device.
type RecordReading struct {
	RequestID uint64
	Value     float64
}

// ReadingRecorded answers RecordReading.
type ReadingRecorded struct {
	RequestID uint64
}

// ReadReading asks a device for its last value.
type ReadReading struct {
	RequestID uint64
}

// RespondReading answers ReadReading and RequestReading.
type RespondReading struct {
	RequestID uint64
	Reading   Reading
}

// RequestReading reads one device by group and device id. Unknown groups
// and devices answer with an absent reading.
type RequestReading struct {
	RequestID uint64
	GroupID   string
	DeviceID  string
}

// RequestAllReadings reads every device of a group. A positive Timeout
// overrides the group's query timeout for this request.
type RequestAllReadings struct {
	RequestID uint64
	GroupID   string
	Timeout   time.Duration
}

// RespondAllReadings is the merged report of a bulk read, keyed by device id.
type RespondAllReadings struct {
	RequestID uint64
	Readings  map[string]Result
}

// RequestDeviceList asks a group for its device ids.
type RequestDeviceList struct {
	RequestID uint64
	GroupID   string
}

// ReplyDeviceList answers RequestDeviceList with sorted ids.
type ReplyDeviceList struct {
	RequestID uint64
	DeviceIDs []string
}

// RequestGroupList asks the Manager for its group ids.
type RequestGroupList struct {
	RequestID uint64
}

// ReplyGroupList answers RequestGroupList with sorted ids.
type ReplyGroupList struct {
	RequestID uint64
	GroupIDs  []string
}

// SetQueryTimeout changes the timeout used by subsequent bulk reads. Sent
// to the Manager it is passed on to every group.
type SetQueryTimeout struct {
	Timeout time.Duration
}

// passivate stops a child when its parent stops.
type passivate struct{}

// queryTimedOut is the Query's own deadline.
type queryTimedOut struct{}
