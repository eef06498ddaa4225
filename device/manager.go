package device

import (
	"fmt"
	"sort"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/logger"
)

// ManagerName is the service name a Manager is usually registered under.
const ManagerName = "iot.device-manager"

// Manager is the top of the hierarchy: it maps group ids to Group actors,
// creating groups on demand and routing requests to them.
type Manager struct {
	groups   map[string]core.ActorID
	groupIDs map[core.ActorID]string

	opts Options
	log  *logger.Logger
}

// NewManager creates the handler for the device manager.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		groups:   make(map[string]core.ActorID),
		groupIDs: make(map[core.ActorID]string),
		opts:     opts,
		log:      opts.Logger.With("component", "device-manager"),
	}
}

func (m *Manager) PreStart(ctx core.Context) error {
	m.log.Info("device manager started", "actor", ctx.Self())
	return nil
}

func (m *Manager) PostStop(ctx core.Context) {
	for groupID, actor := range m.groups {
		if err := ctx.Tell(actor, passivate{}); err != nil {
			m.log.Debug("group already gone", "group", groupID, "error", err)
		}
	}
	m.log.Info("device manager stopped", "actor", ctx.Self())
}

func (m *Manager) HandleMessage(ctx core.Context, msg *core.Message) error {
	switch body := msg.Body.(type) {
	case RequestTrackGroup:
		actor, err := m.ensureGroup(ctx, body.GroupID)
		if err != nil {
			return err
		}
		return ctx.Reply(GroupRegistered{GroupID: body.GroupID, Group: actor})

	case RequestTrackDevice:
		actor, err := m.ensureGroup(ctx, body.GroupID)
		if err != nil {
			return err
		}
		return ctx.Forward(actor, body)

	case RequestReading:
		if actor, ok := m.groups[body.GroupID]; ok {
			return ctx.Forward(actor, body)
		}
		return ctx.Reply(RespondReading{RequestID: body.RequestID})

	case RequestAllReadings:
		if actor, ok := m.groups[body.GroupID]; ok {
			return ctx.Forward(actor, body)
		}
		return ctx.Reply(RespondAllReadings{RequestID: body.RequestID, Readings: map[string]Result{}})

	case RequestDeviceList:
		if actor, ok := m.groups[body.GroupID]; ok {
			return ctx.Forward(actor, body)
		}
		return ctx.Reply(ReplyDeviceList{RequestID: body.RequestID, DeviceIDs: []string{}})

	case RequestGroupList:
		return ctx.Reply(ReplyGroupList{RequestID: body.RequestID, GroupIDs: m.groupList()})

	case SetQueryTimeout:
		if body.Timeout <= 0 {
			return fmt.Errorf("device manager: %v: %w", body.Timeout, ErrInvalidTimeout)
		}
		m.opts.QueryTimeout = body.Timeout
		for groupID, actor := range m.groups {
			if err := ctx.Tell(actor, body); err != nil {
				m.log.Warn("failed to update group query timeout", "group", groupID, "error", err)
			}
		}
		m.log.Info("query timeout changed", "timeout", body.Timeout, "groups", len(m.groups))
		return ctx.Reply(body)

	case core.Terminated:
		groupID, ok := m.groupIDs[body.Actor]
		if !ok {
			return nil
		}
		delete(m.groupIDs, body.Actor)
		delete(m.groups, groupID)
		if body.Reason != nil {
			m.log.Warn("device group failed", "group", groupID, "error", body.Reason)
		} else {
			m.log.Info("device group has been terminated", "group", groupID)
		}
		return nil

	default:
		return fmt.Errorf("device manager: %T: %w", msg.Body, core.ErrUnhandledMessage)
	}
}

func (m *Manager) ensureGroup(ctx core.Context, groupID string) (core.ActorID, error) {
	if actor, ok := m.groups[groupID]; ok {
		return actor, nil
	}

	actor, err := ctx.Spawn(NewGroup(groupID, m.opts), core.ActorOptions{
		MailboxSize: m.opts.GroupMailboxSize,
		Name:        "group-" + groupID,
	})
	if err != nil {
		return core.NoActor, fmt.Errorf("spawn group %s: %w", groupID, err)
	}
	if err := ctx.Watch(actor); err != nil {
		if stopErr := ctx.Tell(actor, passivate{}); stopErr != nil {
			m.log.Warn("failed to stop unwatched group", "group", groupID, "error", stopErr)
		}
		return core.NoActor, fmt.Errorf("watch group %s: %w", groupID, err)
	}

	m.groups[groupID] = actor
	m.groupIDs[actor] = groupID
	m.log.Info("creating device group actor", "group", groupID, "actor", actor)
	return actor, nil
}

func (m *Manager) groupList() []string {
	ids := make([]string, 0, len(m.groups))
	for groupID := range m.groups {
		ids = append(ids, groupID)
	}
	sort.Strings(ids)
	return ids
}
