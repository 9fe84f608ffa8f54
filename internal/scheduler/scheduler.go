package scheduler

import (
	"context"
	"time"

	"github.com/Mezgrman/flipdot/internal/display"
	"github.com/Mezgrman/flipdot/protocol"
)

// DefaultTickInterval is the period of the control loop.
const DefaultTickInterval = 250 * time.Millisecond

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Hooks are optional callbacks invoked after hardware interactions. They
// run on the scheduler goroutine and must return quickly. Any field may be
// nil.
type Hooks struct {
	// ConfigApplied fires after each config setter call, successful or not.
	ConfigApplied func(displayID, key string, value bool, err error)

	// FrameCommitted fires after each frame commit with the time spent
	// rendering. err is the commit error, if any.
	FrameCommitted func(displayID string, renderTime time.Duration, err error)

	// TickCompleted fires at the end of every tick.
	TickCompleted func(took time.Duration)
}

// Scheduler is the periodic driver for all displays in a registry.
//
// It owns the scheduling state of every display (sequence position, switch
// times, dynamic submessage tracking) and consumes the pending-config and
// message-dirty flags the dispatcher sets. All per-display state access
// happens under the display lock; hardware calls happen outside it.
// Hardware calls for different displays are naturally serialized because
// one goroutine runs the loop.
type Scheduler struct {
	registry *display.Registry
	interval time.Duration
	logger   Logger
	hooks    Hooks

	// now is the time source, replaceable in tests.
	now func() time.Time

	// lastMinute is the wall-clock minute observed on the previous tick,
	// shared by all displays so minute-based refreshes stay in lockstep.
	// Negative until the first tick.
	lastMinute int
}

// New creates a scheduler for the given registry. A non-positive interval
// selects DefaultTickInterval; logger may be nil.
func New(registry *display.Registry, interval time.Duration, logger Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		registry:   registry,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
		lastMinute: -1,
	}
}

// SetHooks installs the event callbacks. Must be called before Run.
func (s *Scheduler) SetHooks(h Hooks) {
	s.hooks = h
}

// Run executes the control loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "displays", len(s.registry.IDs()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(s.now())
		}
	}
}

// tick processes every display once. It always completes for all displays;
// a failure in one display never reaches the others.
func (s *Scheduler) tick(now time.Time) {
	start := time.Now()
	if s.lastMinute < 0 {
		s.lastMinute = now.Minute()
	}
	for _, d := range s.registry.All() {
		s.step(d, now)
	}
	s.lastMinute = now.Minute()
	if s.hooks.TickCompleted != nil {
		s.hooks.TickCompleted(time.Since(start))
	}
}

// step runs one tick's processing for one display.
func (s *Scheduler) step(d *display.Display, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("display processing panicked", "display", d.ID, "panic", r)
		}
	}()

	s.applyPendingConfig(d)

	plan := s.plan(d, now)
	if plan == nil {
		return
	}
	s.render(d, plan, now)
}

// configChange is one pending option taken off a display's schedule.
type configChange struct {
	key   string
	value bool
}

// applyPendingConfig pushes queued option changes to the hardware. The
// pending set is cleared regardless of individual setter failures: a failed
// key is dropped, not retried, until the user re-submits the change.
func (s *Scheduler) applyPendingConfig(d *display.Display) {
	var changes []configChange
	d.Update(func(st *display.State) {
		for _, key := range st.Schedule.PendingKeys {
			if value, err := st.Config.Get(key); err == nil {
				changes = append(changes, configChange{key: key, value: value})
			}
		}
		st.Schedule.PendingKeys = nil
	})

	if len(changes) == 0 || d.Controller == nil {
		return
	}
	for _, ch := range changes {
		err := applySetter(d.Controller, ch.key, ch.value)
		if err != nil {
			s.logger.Error("setting config option failed",
				"display", d.ID, "key", ch.key, "value", ch.value, "error", err)
		} else {
			s.logger.Debug("config option applied", "display", d.ID, "key", ch.key, "value", ch.value)
		}
		if s.hooks.ConfigApplied != nil {
			s.hooks.ConfigApplied(d.ID, ch.key, ch.value, err)
		}
	}
}

// applySetter maps a recognised option name onto its hardware setter. The
// mapping is closed; dispatch has already rejected unknown names.
func applySetter(c display.Controller, key string, value bool) error {
	switch key {
	case display.KeyBacklight:
		return c.SetBacklight(value)
	case display.KeyInverting:
		return c.SetInverting(value)
	case display.KeyActive:
		return c.SetActive(value)
	}
	return nil
}

// renderPlan captures, under the display lock, what the render phase has to
// draw once the lock is released.
type renderPlan struct {
	// active is the single message whose submessages get drawn.
	active *protocol.Message

	// assigned is the identity of the display's message at planning time,
	// used to detect a concurrent content swap before stamping refresh
	// times.
	assigned *protocol.Message
}

// plan advances the display's scheduling state for this tick and decides
// whether a re-render is required. Returns nil when the hardware should be
// left alone.
func (s *Scheduler) plan(d *display.Display, now time.Time) *renderPlan {
	var plan *renderPlan
	d.Update(func(st *display.State) {
		msg := st.Message
		sched := &st.Schedule
		if msg == nil {
			sched.MessageDirty = false
			return
		}
		dirty := sched.MessageDirty

		// Content-change reset.
		if dirty {
			sched.SequencePos = 0
			if msg.Type == protocol.MessageSequence {
				sched.LastSwitch = now
			} else {
				sched.LastSwitch = time.Time{}
			}
		}

		// Resolve the active sub-message and rotate if it has expired.
		active := msg
		rotated := false
		if msg.Type == protocol.MessageSequence {
			duration := secondsToDuration(msg.MemberDuration(sched.SequencePos))
			if now.Sub(sched.LastSwitch) >= duration {
				sched.SequencePos = (sched.SequencePos + 1) % len(msg.Messages)
				sched.LastSwitch = now
				rotated = true
			}
			active = &msg.Messages[sched.SequencePos]
		}

		// (Re)register dynamic submessages whenever the active content
		// just changed.
		if dirty || rotated {
			sched.Dynamic = make(map[int]display.DynamicEntry)
			for i := range active.Submessages {
				sub := &active.Submessages[i]
				if sub.Type == protocol.SubmessageGraphics && !sub.RefreshInterval.IsZero() {
					sched.Dynamic[i] = display.DynamicEntry{
						Interval:    sub.RefreshInterval,
						LastRefresh: now,
					}
				}
			}
		}

		// One due dynamic submessage is enough to refresh the whole
		// content.
		due := false
		for _, entry := range sched.Dynamic {
			if entry.Interval.Minute {
				if now.Minute() != s.lastMinute {
					due = true
					break
				}
			} else if now.Sub(entry.LastRefresh) >= secondsToDuration(entry.Interval.Seconds) {
				due = true
				break
			}
		}

		sched.MessageDirty = false
		if dirty || due || rotated {
			plan = &renderPlan{active: active, assigned: msg}
		}
	})
	return plan
}

// render draws the active content, caches the frame for queries and commits
// it to the panel. Individual submessage failures are logged and skipped;
// the remaining submessages are still drawn.
func (s *Scheduler) render(d *display.Display, plan *renderPlan, now time.Time) {
	if d.Renderer == nil || d.Controller == nil {
		return
	}
	start := time.Now()

	d.Renderer.Clear()
	drawn := make([]int, 0, len(plan.active.Submessages))
	for i := range plan.active.Submessages {
		sub := &plan.active.Submessages[i]
		switch sub.Type {
		case protocol.SubmessageBitmap:
			if err := d.Renderer.Blit(sub.Bitmap, 0, 0); err != nil {
				s.logger.Error("drawing bitmap failed", "display", d.ID, "submessage", i, "error", err)
			}
		case protocol.SubmessageGraphics:
			if err := d.Renderer.Draw(sub.Func, sub.Params); err != nil {
				s.logger.Error("graphics call failed",
					"display", d.ID, "submessage", i, "func", sub.Func, "error", err)
			}
			drawn = append(drawn, i)
		}
	}

	frame := d.Renderer.Snapshot()
	commitErr := d.Controller.Commit(frame)
	if commitErr != nil {
		s.logger.Error("committing frame failed", "display", d.ID, "error", commitErr)
	}

	d.Update(func(st *display.State) {
		st.Bitmap = frame
		// Skip the refresh stamps if the dispatcher swapped the content
		// while we were rendering; the next tick starts over anyway.
		if st.Message != plan.assigned {
			return
		}
		for _, i := range drawn {
			if entry, ok := st.Schedule.Dynamic[i]; ok {
				entry.LastRefresh = now
				st.Schedule.Dynamic[i] = entry
			}
		}
	})

	if s.hooks.FrameCommitted != nil {
		s.hooks.FrameCommitted(d.ID, time.Since(start), commitErr)
	}
}

// secondsToDuration converts a protocol duration in (possibly fractional)
// seconds.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
