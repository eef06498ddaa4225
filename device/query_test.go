package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/core/coretest"
)

type queryFixture struct {
	system    core.ActorSystem
	requester *coretest.Probe
	device1   *coretest.Probe
	device2   *coretest.Probe
	query     core.ActorID
}

// startQuery runs a Query over two probe devices and checks that both got
// their read request.
func startQuery(t *testing.T, queryTimeout time.Duration) *queryFixture {
	t.Helper()

	system := newSystem(t)
	f := &queryFixture{
		system:    system,
		requester: coretest.New(t, system),
		device1:   coretest.New(t, system),
		device2:   coretest.New(t, system),
	}

	q := NewQuery(map[string]core.ActorID{
		"device1": f.device1.ID(),
		"device2": f.device2.ID(),
	}, 1, core.Address{Actor: f.requester.ID()}, queryTimeout, DefaultOptions())
	f.query = spawn(t, system, q)

	for _, device := range []*coretest.Probe{f.device1, f.device2} {
		assert.Equal(t, ReadReading{RequestID: 1}, coretest.Expect[ReadReading](device, timeout))
		assert.Equal(t, f.query, device.LastSender())
	}
	return f
}

func (f *queryFixture) expectResult(t *testing.T, want map[string]Result) {
	t.Helper()
	got := coretest.Expect[RespondAllReadings](f.requester, timeout)
	assert.Equal(t, uint64(1), got.RequestID)
	assert.Equal(t, want, got.Readings)
}

func TestQueryReturnReadingsForWorkingDevices(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": Value(2.0),
	})
}

func TestQueryReturnNotAvailableForDevicesWithNoReadings(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	f.device1.Send(f.query, RespondReading{RequestID: 1})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})

	f.expectResult(t, map[string]Result{
		"device1": NotAvailable(),
		"device2": Value(2.0),
	})
}

func TestQueryReturnDeviceGoneIfDeviceStopsBeforeAnswering(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})
	require.NoError(t, f.system.Stop(f.device2.ID()))

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": DeviceGone(),
	})
}

func TestQueryKeepsReadingIfDeviceStopsAfterAnswering(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})
	require.NoError(t, f.system.Stop(f.device2.ID()))
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": Value(2.0),
	})
}

func TestQueryReturnTimedOutIfDeviceDoesNotAnswerInTime(t *testing.T) {
	f := startQuery(t, 300*time.Millisecond)

	start := time.Now()
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": TimedOut(),
	})
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestQueryTimesOutEveryPendingDevice(t *testing.T) {
	f := startQuery(t, 100*time.Millisecond)

	f.expectResult(t, map[string]Result{
		"device1": TimedOut(),
		"device2": TimedOut(),
	})
}

func TestQueryCompletesBeforeTimeout(t *testing.T) {
	f := startQuery(t, time.Hour)

	start := time.Now()
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})
	f.device2.Send(f.query, RespondReading{RequestID: 1})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": NotAvailable(),
	})
	assert.Less(t, time.Since(start), timeout)
}

func TestQueryFirstOutcomeWins(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	// A second answer from device1 must not overwrite the first one.
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(9.0)})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": Value(2.0),
	})
}

func TestQueryKeepsDeviceGoneIfReadingArrivesAfterTermination(t *testing.T) {
	f := startQuery(t, 3*time.Second)

	f.device2.Send(f.query, core.Terminated{Actor: f.device2.ID()})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})
	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})

	f.expectResult(t, map[string]Result{
		"device1": Value(1.0),
		"device2": DeviceGone(),
	})
}

func TestQueryIgnoresReadingsForOtherRequests(t *testing.T) {
	f := startQuery(t, 300*time.Millisecond)

	f.device1.Send(f.query, RespondReading{RequestID: 99, Reading: Some(5.0)})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})

	f.expectResult(t, map[string]Result{
		"device1": TimedOut(),
		"device2": Value(2.0),
	})
}

func TestQueryStopsAfterReplying(t *testing.T) {
	f := startQuery(t, 3*time.Second)
	f.requester.Watch(f.query)

	f.device1.Send(f.query, RespondReading{RequestID: 1, Reading: Some(1.0)})
	f.device2.Send(f.query, RespondReading{RequestID: 1, Reading: Some(2.0)})

	coretest.Expect[RespondAllReadings](f.requester, timeout)
	term := coretest.Expect[core.Terminated](f.requester, timeout)
	assert.Equal(t, f.query, term.Actor)
	assert.NoError(t, term.Reason)

	// The cancelled timer never produces a second report.
	f.requester.ExpectNoMsg(100 * time.Millisecond)
}

func TestQueryWithoutDevicesRepliesImmediately(t *testing.T) {
	system := newSystem(t)
	requester := coretest.New(t, system)

	spawn(t, system, NewQuery(nil, 5, core.Address{Actor: requester.ID()}, time.Hour, DefaultOptions()))

	got := coretest.Expect[RespondAllReadings](requester, timeout)
	assert.Equal(t, uint64(5), got.RequestID)
	assert.Empty(t, got.Readings)
}

func TestQueryStateString(t *testing.T) {
	assert.Equal(t, "collecting", queryCollecting.String())
	assert.Equal(t, "done", queryDone.String())
}
