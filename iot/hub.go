// Package iot is the public request surface of the device telemetry core.
package iot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/device"
	"github.com/najoast/sngo-iot/logger"
)

// Hub talks to a device Manager running in an actor system. Every method
// takes and returns plain values; the actors behind it are never exposed.
type Hub struct {
	system  core.ActorSystem
	manager core.ActorID
	log     *logger.Logger
	tracer  trace.Tracer // nil if tracing disabled

	requestID atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithTracer makes the Hub open a span around every reading it records or
// reads.
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Hub) {
		h.tracer = tracer
	}
}

// New starts a device Manager in system, registered as device.ManagerName,
// and returns a Hub for it.
func New(system core.ActorSystem, opts device.Options, hubOpts ...Option) (*Hub, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	handle, err := system.NewService(device.ManagerName, device.NewManager(opts), core.ActorOptions{})
	if err != nil {
		return nil, fmt.Errorf("start device manager: %w", err)
	}

	h := &Hub{
		system:  system,
		manager: handle.ActorID,
		log:     opts.Logger.With("component", "hub"),
	}
	for _, opt := range hubOpts {
		opt(h)
	}
	return h, nil
}

// EnsureGroup creates the group if it does not exist yet.
func (h *Hub) EnsureGroup(ctx context.Context, groupID string) error {
	if groupID == "" {
		return fmt.Errorf("group: %w", ErrEmptyID)
	}
	_, err := call[device.GroupRegistered](ctx, h, device.RequestTrackGroup{GroupID: groupID})
	return err
}

// EnsureDevice creates the device, and its group, if they do not exist yet.
func (h *Hub) EnsureDevice(ctx context.Context, groupID, deviceID string) error {
	_, err := h.ensureDevice(ctx, groupID, deviceID)
	return err
}

func (h *Hub) ensureDevice(ctx context.Context, groupID, deviceID string) (core.ActorID, error) {
	if groupID == "" {
		return core.NoActor, fmt.Errorf("group: %w", ErrEmptyID)
	}
	if deviceID == "" {
		return core.NoActor, fmt.Errorf("device: %w", ErrEmptyID)
	}

	registered, err := call[device.DeviceRegistered](ctx, h, device.RequestTrackDevice{
		GroupID:  groupID,
		DeviceID: deviceID,
	})
	if err != nil {
		return core.NoActor, err
	}
	return registered.Device, nil
}

// Record stores value as the latest reading of the device, creating the
// device first if needed.
func (h *Hub) Record(ctx context.Context, groupID, deviceID string, value float64) (err error) {
	ctx, end := h.startSpan(ctx, "iot.Record", groupID, attribute.String("iot.device", deviceID))
	defer func() { end(err) }()

	actor, err := h.ensureDevice(ctx, groupID, deviceID)
	if err != nil {
		return err
	}

	reply, err := h.system.Call(ctx, actor, device.RecordReading{RequestID: h.nextID(), Value: value})
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", groupID, deviceID, err)
	}
	if _, ok := reply.(device.ReadingRecorded); !ok {
		return fmt.Errorf("record %s/%s: %T: %w", groupID, deviceID, reply, ErrUnexpectedReply)
	}
	return nil
}

// ReadOne returns the latest reading of one device. Unknown groups and
// devices read as absent.
func (h *Hub) ReadOne(ctx context.Context, groupID, deviceID string) (_ device.Reading, err error) {
	ctx, end := h.startSpan(ctx, "iot.ReadOne", groupID, attribute.String("iot.device", deviceID))
	defer func() { end(err) }()

	resp, err := call[device.RespondReading](ctx, h, device.RequestReading{
		RequestID: h.nextID(),
		GroupID:   groupID,
		DeviceID:  deviceID,
	})
	if err != nil {
		return device.Reading{}, err
	}
	return resp.Reading, nil
}

// ReadAll reads every device of a group with the configured query timeout.
// An unknown or empty group yields an empty map.
func (h *Hub) ReadAll(ctx context.Context, groupID string) (map[string]device.Result, error) {
	return h.ReadAllWithin(ctx, groupID, 0)
}

// ReadAllWithin is ReadAll with a per-request query timeout. Devices that
// have not answered when it elapses are reported as timed out.
func (h *Hub) ReadAllWithin(ctx context.Context, groupID string, timeout time.Duration) (_ map[string]device.Result, err error) {
	ctx, end := h.startSpan(ctx, "iot.ReadAll", groupID, attribute.Int64("iot.timeout_ms", timeout.Milliseconds()))
	defer func() { end(err) }()

	if err := h.checkTimeout(timeout); err != nil {
		return nil, err
	}

	resp, err := call[device.RespondAllReadings](ctx, h, device.RequestAllReadings{
		RequestID: h.nextID(),
		GroupID:   groupID,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, err
	}
	if h.tracer != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("iot.devices", len(resp.Readings)))
	}
	return resp.Readings, nil
}

// Groups returns the sorted group ids.
func (h *Hub) Groups(ctx context.Context) ([]string, error) {
	resp, err := call[device.ReplyGroupList](ctx, h, device.RequestGroupList{RequestID: h.nextID()})
	if err != nil {
		return nil, err
	}
	return resp.GroupIDs, nil
}

// Devices returns the sorted device ids of a group.
func (h *Hub) Devices(ctx context.Context, groupID string) ([]string, error) {
	resp, err := call[device.ReplyDeviceList](ctx, h, device.RequestDeviceList{
		RequestID: h.nextID(),
		GroupID:   groupID,
	})
	if err != nil {
		return nil, err
	}
	return resp.DeviceIDs, nil
}

// SetQueryTimeout changes the default bulk read timeout of every group.
func (h *Hub) SetQueryTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%v: %w", timeout, device.ErrInvalidTimeout)
	}
	if err := h.checkTimeout(timeout); err != nil {
		return err
	}
	_, err := call[device.SetQueryTimeout](ctx, h, device.SetQueryTimeout{Timeout: timeout})
	if err == nil {
		h.log.Info("query timeout updated", "timeout", timeout)
	}
	return err
}

// Close stops the device manager and, through it, every group and device.
func (h *Hub) Close() error {
	return h.system.Stop(h.manager)
}

// startSpan opens a span for one hub request. The returned func ends it,
// recording err when non-nil.
func (h *Hub) startSpan(ctx context.Context, name, groupID string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if h.tracer == nil {
		return ctx, func(error) {}
	}
	attrs = append(attrs, attribute.String("iot.group", groupID))
	ctx, span := h.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// checkTimeout rejects query timeouts that reach the call timeout, since
// the call would fail before the query reports its timed-out devices.
func (h *Hub) checkTimeout(timeout time.Duration) error {
	if limit := h.system.CallTimeout(); timeout >= limit {
		return fmt.Errorf("%v (call timeout %v): %w", timeout, limit, ErrTimeoutTooLong)
	}
	return nil
}

func (h *Hub) nextID() uint64 {
	return h.requestID.Add(1)
}

func call[T any](ctx context.Context, h *Hub, body any) (T, error) {
	var zero T

	reply, err := h.system.Call(ctx, h.manager, body)
	if err != nil {
		return zero, fmt.Errorf("%T: %w", body, err)
	}

	typed, ok := reply.(T)
	if !ok {
		return zero, fmt.Errorf("%T answered with %T: %w", body, reply, ErrUnexpectedReply)
	}
	return typed, nil
}
