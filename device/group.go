package device

import (
	"fmt"
	"sort"
	"time"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/logger"
)

// Group owns the devices of one group id. It creates devices on demand,
// forgets them when they stop and spawns a Query for every bulk read.
type Group struct {
	groupID      string
	devices      map[string]core.ActorID
	deviceIDs    map[core.ActorID]string
	queryTimeout time.Duration

	opts    Options
	log     *logger.Logger
	metrics *Metrics
}

// NewGroup creates the handler for group groupID.
func NewGroup(groupID string, opts Options) *Group {
	opts = opts.withDefaults()
	return &Group{
		groupID:      groupID,
		devices:      make(map[string]core.ActorID),
		deviceIDs:    make(map[core.ActorID]string),
		queryTimeout: opts.QueryTimeout,
		opts:         opts,
		log:          opts.Logger.With("group", groupID),
		metrics:      opts.Metrics,
	}
}

func (g *Group) PreStart(ctx core.Context) error {
	g.metrics.groupStarted(ctx)
	g.log.Info("device group started", "actor", ctx.Self())
	return nil
}

func (g *Group) PostStop(ctx core.Context) {
	for deviceID, actor := range g.devices {
		if err := ctx.Tell(actor, passivate{}); err != nil {
			g.log.Debug("device already gone", "device", deviceID, "error", err)
		}
	}
	g.metrics.groupStopped(ctx)
	g.log.Info("device group stopped", "actor", ctx.Self())
}

func (g *Group) HandleMessage(ctx core.Context, msg *core.Message) error {
	switch body := msg.Body.(type) {
	case RequestTrackDevice:
		if body.GroupID != g.groupID {
			g.log.Warn("ignoring track request for another group", "requested_group", body.GroupID)
			return nil
		}
		actor, err := g.ensureDevice(ctx, body.DeviceID)
		if err != nil {
			return err
		}
		return ctx.Forward(actor, body)

	case RequestReading:
		actor, ok := g.devices[body.DeviceID]
		if !ok || body.GroupID != g.groupID {
			return ctx.Reply(RespondReading{RequestID: body.RequestID})
		}
		return ctx.Forward(actor, ReadReading{RequestID: body.RequestID})

	case RequestDeviceList:
		if body.GroupID != g.groupID {
			g.log.Warn("ignoring device list request for another group", "requested_group", body.GroupID)
			return nil
		}
		return ctx.Reply(ReplyDeviceList{RequestID: body.RequestID, DeviceIDs: g.deviceList()})

	case RequestAllReadings:
		return g.readAll(ctx, body)

	case SetQueryTimeout:
		if body.Timeout <= 0 {
			return fmt.Errorf("group %s: %v: %w", g.groupID, body.Timeout, ErrInvalidTimeout)
		}
		g.queryTimeout = body.Timeout
		g.log.Debug("query timeout changed", "timeout", body.Timeout)
		return nil

	case core.Terminated:
		deviceID, ok := g.deviceIDs[body.Actor]
		if !ok {
			return nil
		}
		delete(g.deviceIDs, body.Actor)
		delete(g.devices, deviceID)
		if body.Reason != nil {
			g.log.Warn("device actor failed", "device", deviceID, "error", body.Reason)
		} else {
			g.log.Info("device actor has been terminated", "device", deviceID)
		}
		return nil

	case passivate:
		ctx.Stop()
		return nil

	default:
		return fmt.Errorf("group %s: %T: %w", g.groupID, msg.Body, core.ErrUnhandledMessage)
	}
}

func (g *Group) ensureDevice(ctx core.Context, deviceID string) (core.ActorID, error) {
	if actor, ok := g.devices[deviceID]; ok {
		return actor, nil
	}

	actor, err := ctx.Spawn(NewDevice(g.groupID, deviceID, g.opts), core.ActorOptions{
		MailboxSize: g.opts.DeviceMailboxSize,
		Name:        "device-" + g.groupID + "-" + deviceID,
	})
	if err != nil {
		return core.NoActor, fmt.Errorf("spawn device %s/%s: %w", g.groupID, deviceID, err)
	}
	if err := ctx.Watch(actor); err != nil {
		// An unwatched device would never be forgotten.
		if stopErr := ctx.Tell(actor, passivate{}); stopErr != nil {
			g.log.Warn("failed to stop unwatched device", "device", deviceID, "error", stopErr)
		}
		return core.NoActor, fmt.Errorf("watch device %s/%s: %w", g.groupID, deviceID, err)
	}

	g.devices[deviceID] = actor
	g.deviceIDs[actor] = deviceID
	g.log.Info("creating device actor", "device", deviceID, "actor", actor)
	return actor, nil
}

func (g *Group) readAll(ctx core.Context, req RequestAllReadings) error {
	if req.GroupID != g.groupID {
		g.log.Warn("ignoring bulk read for another group", "requested_group", req.GroupID)
		return nil
	}

	if len(g.devices) == 0 {
		return ctx.Reply(RespondAllReadings{RequestID: req.RequestID, Readings: map[string]Result{}})
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.queryTimeout
	}

	query := NewQuery(g.devices, req.RequestID, ctx.ReplyTo(), timeout, g.opts)
	_, err := ctx.Spawn(query, core.ActorOptions{
		MailboxSize: g.opts.QueryMailboxSize,
		Name:        "query-" + query.ID().String(),
	})
	if err != nil {
		return fmt.Errorf("spawn query for group %s: %w", g.groupID, err)
	}
	return nil
}

func (g *Group) deviceList() []string {
	ids := make([]string, 0, len(g.devices))
	for deviceID := range g.devices {
		ids = append(ids, deviceID)
	}
	sort.Strings(ids)
	return ids
}
