package device

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/logger"
)

type queryState int

const (
	queryCollecting queryState = iota
	queryDone
)

func (s queryState) String() string {
	switch s {
	case queryCollecting:
		return "collecting"
	case queryDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type queryBehavior func(q *Query, ctx core.Context, msg *core.Message) error

var queryBehaviors = [...]queryBehavior{
	queryCollecting: (*Query).collecting,
	queryDone:       (*Query).done,
}

// Query serves one bulk read. It asks every device of a snapshot for its
// reading, watches each of them, and answers replyTo exactly once with a
// RespondAllReadings, either when every device has an outcome or when the
// timeout fires, whichever comes first.
type Query struct {
	id        uuid.UUID
	requestID uint64
	replyTo   core.Address
	timeout   time.Duration
	devices   map[string]core.ActorID

	state   queryState
	pending map[core.ActorID]string
	results map[string]Result
	timer   core.Cancellable
	started time.Time

	log     *logger.Logger
	metrics *Metrics
}

// NewQuery creates the handler for one bulk read over devices.
func NewQuery(devices map[string]core.ActorID, requestID uint64, replyTo core.Address, timeout time.Duration, opts Options) *Query {
	opts = opts.withDefaults()
	if timeout <= 0 {
		timeout = opts.QueryTimeout
	}

	id := uuid.New()
	snapshot := make(map[string]core.ActorID, len(devices))
	for deviceID, actor := range devices {
		snapshot[deviceID] = actor
	}

	return &Query{
		id:        id,
		requestID: requestID,
		replyTo:   replyTo,
		timeout:   timeout,
		devices:   snapshot,
		pending:   make(map[core.ActorID]string, len(snapshot)),
		results:   make(map[string]Result, len(snapshot)),
		log:       opts.Logger.With("query", id.String(), "request_id", requestID),
		metrics:   opts.Metrics,
	}
}

// ID returns the correlation id used in the query's logs.
func (q *Query) ID() uuid.UUID {
	return q.id
}

func (q *Query) PreStart(ctx core.Context) error {
	q.started = time.Now()
	q.metrics.queryStarted(ctx)

	for deviceID, actor := range q.devices {
		q.pending[actor] = deviceID
	}
	if len(q.pending) == 0 {
		q.finish(ctx)
		return nil
	}

	// A device that is already gone shows up as a Terminated from Watch.
	for actor, deviceID := range q.pending {
		if err := ctx.Watch(actor); err != nil {
			q.log.Warn("failed to watch device", "device", deviceID, "error", err)
		}
		if err := ctx.Tell(actor, ReadReading{RequestID: q.requestID}); err != nil {
			q.log.Debug("read request not delivered", "device", deviceID, "error", err)
		}
	}
	q.timer = ctx.ScheduleOnce(q.timeout, queryTimedOut{})

	q.log.Debug("query started", "devices", len(q.pending), "timeout", q.timeout)
	return nil
}

func (q *Query) PostStop(ctx core.Context) {
	if q.timer != nil {
		q.timer.Cancel()
	}
}

func (q *Query) HandleMessage(ctx core.Context, msg *core.Message) error {
	return queryBehaviors[q.state](q, ctx, msg)
}

func (q *Query) collecting(ctx core.Context, msg *core.Message) error {
	switch body := msg.Body.(type) {
	case RespondReading:
		if body.RequestID != q.requestID {
			q.log.Debug("ignoring reading for another request", "got", body.RequestID)
			return nil
		}
		q.settle(ctx, msg.Source, resultOf(body.Reading))

	case core.Terminated:
		q.settle(ctx, body.Actor, DeviceGone())

	case queryTimedOut:
		for actor, deviceID := range q.pending {
			ctx.Unwatch(actor)
			q.results[deviceID] = TimedOut()
			delete(q.pending, actor)
		}
		q.finish(ctx)

	default:
		return fmt.Errorf("query %s: %T: %w", q.id, msg.Body, core.ErrUnhandledMessage)
	}
	return nil
}

// done drops whatever is still queued behind the final report.
func (q *Query) done(ctx core.Context, msg *core.Message) error {
	q.log.Debug("ignoring message after completion", "message", fmt.Sprintf("%T", msg.Body))
	return nil
}

// settle records the first outcome of a pending device. Outcomes for
// devices that already have one are dropped.
func (q *Query) settle(ctx core.Context, actor core.ActorID, result Result) {
	deviceID, ok := q.pending[actor]
	if !ok {
		return
	}

	ctx.Unwatch(actor)
	delete(q.pending, actor)
	q.results[deviceID] = result

	if len(q.pending) == 0 {
		q.finish(ctx)
	}
}

func (q *Query) finish(ctx core.Context) {
	q.state = queryDone
	if q.timer != nil {
		q.timer.Cancel()
	}

	elapsed := time.Since(q.started)
	q.metrics.queryFinished(ctx, q.results, float64(elapsed.Microseconds())/1000)
	q.log.Debug("query finished", "results", len(q.results), "elapsed", elapsed)

	if err := ctx.Respond(q.replyTo, RespondAllReadings{RequestID: q.requestID, Readings: q.results}); err != nil {
		q.log.Warn("failed to deliver query result", "reply_to", q.replyTo, "error", err)
	}

	ctx.Stop()
}
