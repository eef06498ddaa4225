package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/core/coretest"
)

const timeout = coretest.DefaultTimeout

func newSystem(t *testing.T) core.ActorSystem {
	t.Helper()
	system := core.NewActorSystem(core.WithCallTimeout(5 * time.Second))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = system.Shutdown(ctx)
	})
	return system
}

func spawn(t *testing.T, system core.ActorSystem, handler core.MessageHandler) core.ActorID {
	t.Helper()
	a, err := system.NewActor(handler, core.ActorOptions{})
	require.NoError(t, err)
	return a.ID()
}

func TestDeviceReplyWithEmptyReadingIfNoValueIsKnown(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	device := spawn(t, system, NewDevice("group", "device", DefaultOptions()))

	probe.Send(device, ReadReading{RequestID: 42})

	response := coretest.Expect[RespondReading](probe, timeout)
	assert.Equal(t, uint64(42), response.RequestID)
	assert.False(t, response.Reading.Valid)
}

func TestDeviceReplyWithLatestReading(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	device := spawn(t, system, NewDevice("group", "device", DefaultOptions()))

	probe.Send(device, RecordReading{RequestID: 1, Value: 24.0})
	assert.Equal(t, uint64(1), coretest.Expect[ReadingRecorded](probe, timeout).RequestID)

	probe.Send(device, ReadReading{RequestID: 2})
	response := coretest.Expect[RespondReading](probe, timeout)
	assert.Equal(t, uint64(2), response.RequestID)
	assert.Equal(t, Some(24.0), response.Reading)

	probe.Send(device, RecordReading{RequestID: 3, Value: 55.0})
	assert.Equal(t, uint64(3), coretest.Expect[ReadingRecorded](probe, timeout).RequestID)

	probe.Send(device, ReadReading{RequestID: 4})
	response = coretest.Expect[RespondReading](probe, timeout)
	assert.Equal(t, uint64(4), response.RequestID)
	assert.Equal(t, Some(55.0), response.Reading)
}

func TestDeviceReplyToRegistrationRequests(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	device := spawn(t, system, NewDevice("group", "device", DefaultOptions()))

	probe.Send(device, RequestTrackDevice{GroupID: "group", DeviceID: "device"})

	registered := coretest.Expect[DeviceRegistered](probe, timeout)
	assert.Equal(t, device, registered.Device)
	assert.Equal(t, device, probe.LastSender())
}

func TestDeviceIgnoreWrongRegistrationRequests(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	device := spawn(t, system, NewDevice("group", "device", DefaultOptions()))

	probe.Send(device, RequestTrackDevice{GroupID: "wrongGroup", DeviceID: "device"})
	probe.ExpectNoMsg(100 * time.Millisecond)

	probe.Send(device, RequestTrackDevice{GroupID: "group", DeviceID: "wrongDevice"})
	probe.ExpectNoMsg(100 * time.Millisecond)
}

func TestDeviceCall(t *testing.T) {
	system := newSystem(t)
	device := spawn(t, system, NewDevice("group", "device", DefaultOptions()))

	reply, err := system.Call(context.Background(), device, RecordReading{RequestID: 7, Value: 1.5})
	require.NoError(t, err)
	assert.Equal(t, ReadingRecorded{RequestID: 7}, reply)

	reply, err = system.Call(context.Background(), device, ReadReading{RequestID: 8})
	require.NoError(t, err)
	assert.Equal(t, RespondReading{RequestID: 8, Reading: Some(1.5)}, reply)

	_, err = system.Call(context.Background(), device, "unknown")
	assert.ErrorIs(t, err, core.ErrUnhandledMessage)
}
