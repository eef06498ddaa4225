package device

import (
	"fmt"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/logger"
)

// Device holds the last reading of one device.
type Device struct {
	groupID  string
	deviceID string
	last     Reading

	log     *logger.Logger
	metrics *Metrics
}

// NewDevice creates the handler for the device deviceID of group groupID.
func NewDevice(groupID, deviceID string, opts Options) *Device {
	opts = opts.withDefaults()
	return &Device{
		groupID:  groupID,
		deviceID: deviceID,
		log:      opts.Logger.With("group", groupID, "device", deviceID),
		metrics:  opts.Metrics,
	}
}

func (d *Device) PreStart(ctx core.Context) error {
	d.metrics.deviceStarted(ctx)
	d.log.Info("device actor started", "actor", ctx.Self())
	return nil
}

func (d *Device) PostStop(ctx core.Context) {
	d.metrics.deviceStopped(ctx)
	d.log.Info("device actor stopped", "actor", ctx.Self())
}

func (d *Device) HandleMessage(ctx core.Context, msg *core.Message) error {
	switch body := msg.Body.(type) {
	case RequestTrackDevice:
		if body.GroupID != d.groupID || body.DeviceID != d.deviceID {
			d.log.Warn("ignoring track request for another device",
				"requested_group", body.GroupID,
				"requested_device", body.DeviceID)
			return nil
		}
		return ctx.Reply(DeviceRegistered{
			GroupID:  d.groupID,
			DeviceID: d.deviceID,
			Device:   ctx.Self(),
		})

	case RecordReading:
		d.last = Some(body.Value)
		d.metrics.readingRecorded(ctx)
		d.log.Debug("recorded reading", "request_id", body.RequestID, "value", body.Value)
		return ctx.Reply(ReadingRecorded{RequestID: body.RequestID})

	case ReadReading:
		return ctx.Reply(RespondReading{RequestID: body.RequestID, Reading: d.last})

	case passivate:
		ctx.Stop()
		return nil

	default:
		return fmt.Errorf("device %s/%s: %T: %w", d.groupID, d.deviceID, msg.Body, core.ErrUnhandledMessage)
	}
}
