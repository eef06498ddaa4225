package core

import "time"

type scheduledDelivery struct {
	timer *time.Timer
}

func (d *scheduledDelivery) Cancel() bool {
	return d.timer.Stop()
}

type stoppedTimer struct{}

func (stoppedTimer) Cancel() bool { return false }

// scheduleOnce posts body to target after d. A delivery that finds the target
// gone is dropped.
func (s *system) scheduleOnce(target ActorID, d time.Duration, body any) Cancellable {
	t := time.AfterFunc(d, func() {
		if err := s.deliver(&Message{Source: NoActor, Target: target, Body: body}); err != nil {
			s.log.Debug("dropped scheduled message",
				"target", target,
				"message", typeName(body),
				"error", err)
		}
	})
	return &scheduledDelivery{timer: t}
}
