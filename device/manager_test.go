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

func groupList(t *testing.T, system core.ActorSystem, manager core.ActorID) []string {
	t.Helper()
	reply, err := system.Call(context.Background(), manager, RequestGroupList{})
	require.NoError(t, err)
	return reply.(ReplyGroupList).GroupIDs
}

func TestManagerRegisterDevicesInDistinctGroups(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	device1 := trackDevice(t, probe, manager, "group1", "device")
	device2 := trackDevice(t, probe, manager, "group2", "device")
	assert.NotEqual(t, device1, device2)

	assert.Equal(t, []string{"group1", "group2"}, groupList(t, system, manager))
}

func TestManagerReturnSameDeviceForSameID(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	device1 := trackDevice(t, probe, manager, "group", "device")
	device2 := trackDevice(t, probe, manager, "group", "device")
	assert.Equal(t, device1, device2)
}

func TestManagerTrackGroupIsIdempotent(t *testing.T) {
	system := newSystem(t)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	first, err := system.Call(context.Background(), manager, RequestTrackGroup{GroupID: "g"})
	require.NoError(t, err)
	second, err := system.Call(context.Background(), manager, RequestTrackGroup{GroupID: "g"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "g", first.(GroupRegistered).GroupID)
	assert.Equal(t, []string{"g"}, groupList(t, system, manager))
}

func TestManagerUnknownGroup(t *testing.T) {
	system := newSystem(t)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	reply, err := system.Call(context.Background(), manager, RequestAllReadings{RequestID: 1, GroupID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, RespondAllReadings{RequestID: 1, Readings: map[string]Result{}}, reply)

	reply, err = system.Call(context.Background(), manager, RequestReading{RequestID: 2, GroupID: "nope", DeviceID: "d"})
	require.NoError(t, err)
	assert.Equal(t, RespondReading{RequestID: 2}, reply)

	reply, err = system.Call(context.Background(), manager, RequestDeviceList{RequestID: 3, GroupID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, reply.(ReplyDeviceList).DeviceIDs)

	// Reads never create groups.
	assert.Empty(t, groupList(t, system, manager))
}

func TestManagerRoutesReads(t *testing.T) {
	system := newSystem(t)
	probe := coretest.New(t, system)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	device1 := trackDevice(t, probe, manager, "g", "device1")
	trackDevice(t, probe, manager, "g", "device2")

	probe.Send(device1, RecordReading{RequestID: 1, Value: 1.0})
	coretest.Expect[ReadingRecorded](probe, timeout)

	reply, err := system.Call(context.Background(), manager, RequestReading{RequestID: 2, GroupID: "g", DeviceID: "device1"})
	require.NoError(t, err)
	assert.Equal(t, RespondReading{RequestID: 2, Reading: Some(1.0)}, reply)

	reply, err = system.Call(context.Background(), manager, RequestAllReadings{RequestID: 3, GroupID: "g"})
	require.NoError(t, err)
	assert.Equal(t, RespondAllReadings{RequestID: 3, Readings: map[string]Result{
		"device1": Value(1.0),
		"device2": NotAvailable(),
	}}, reply)

	reply, err = system.Call(context.Background(), manager, RequestDeviceList{RequestID: 4, GroupID: "g"})
	require.NoError(t, err)
	assert.Equal(t, ReplyDeviceList{RequestID: 4, DeviceIDs: []string{"device1", "device2"}}, reply)
}

func TestManagerForgetsStoppedGroup(t *testing.T) {
	system := newSystem(t)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	reply, err := system.Call(context.Background(), manager, RequestTrackGroup{GroupID: "g"})
	require.NoError(t, err)
	require.NoError(t, system.Stop(reply.(GroupRegistered).Group))

	assert.Eventually(t, func() bool {
		return len(groupList(t, system, manager)) == 0
	}, timeout, 10*time.Millisecond)
}

func TestManagerSetQueryTimeout(t *testing.T) {
	system := newSystem(t)
	manager := spawn(t, system, NewManager(DefaultOptions()))

	_, err := system.Call(context.Background(), manager, RequestTrackGroup{GroupID: "g"})
	require.NoError(t, err)

	reply, err := system.Call(context.Background(), manager, SetQueryTimeout{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, SetQueryTimeout{Timeout: time.Second}, reply)

	_, err = system.Call(context.Background(), manager, SetQueryTimeout{Timeout: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}
