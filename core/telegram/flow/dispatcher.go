package flow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bookingbot/core/logger"
	"bookingbot/core/metrics"
	"bookingbot/core/telegram/envelope"
)

// Default user-facing replies, overridable through Options.
const (
	DefaultUnknownText = "Unknown service"
	DefaultFaultText   = "Something went wrong :("
)

// Factory builds a fresh session for one user.
type Factory func() Runner

// Command binds a command word (without slash) to a flow factory.
type Command struct {
	Name        string
	Description string
	New         Factory
}

// Decide picks a fallback flow for an envelope that names no registered
// command and has no active session to consume it. It receives the
// (possibly nil) active runner and returns the flow to start.
type Decide func(env envelope.Envelope, active Runner) (string, bool)

// Options configures a Dispatcher.
type Options struct {
	Transport   Transport
	Decide      Decide
	UnknownText string
	FaultText   string
}

// Dispatcher owns the command registry and the user id to active
// session map. Routing for one user is serialized by a per-user lock;
// different users run in parallel.
type Dispatcher struct {
	transport   Transport
	decide      Decide
	unknownText string
	faultText   string

	mu       sync.Mutex
	commands map[string]Command
	active   map[int64]Runner
	locks    map[int64]*sync.Mutex
}

// NewDispatcher builds an empty dispatcher. Register commands before
// routing.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.UnknownText == "" {
		opts.UnknownText = DefaultUnknownText
	}
	if opts.FaultText == "" {
		opts.FaultText = DefaultFaultText
	}
	return &Dispatcher{
		transport:   opts.Transport,
		decide:      opts.Decide,
		unknownText: opts.UnknownText,
		faultText:   opts.FaultText,
		commands:    make(map[string]Command),
		active:      make(map[int64]Runner),
		locks:       make(map[int64]*sync.Mutex),
	}
}

// Register adds a command to the registry. Later registrations replace
// earlier ones with the same name.
func (d *Dispatcher) Register(cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[cmd.Name] = cmd
}

// Commands returns the registered commands sorted by name.
func (d *Dispatcher) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, 0, len(d.commands))
	for _, cmd := range d.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Active returns the user's live session, if any.
func (d *Dispatcher) Active(userID int64) (Runner, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.active[userID]
	return r, ok
}

// ActiveCount returns the number of live sessions.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Route drives one envelope end to end: resolve the session (a
// recognized command always supersedes any in-flight flow), run the
// step, retire the session on terminal or fault. An envelope that
// resolves to nothing yields the unknown reply and leaves no session
// registered.
func (d *Dispatcher) Route(ctx context.Context, env envelope.Envelope) error {
	lock := d.userLock(env.UserID)
	lock.Lock()
	defer lock.Unlock()

	runner, ok := d.resolve(ctx, env)
	if !ok {
		if _, err := d.transport.Send(ctx, env.ChatID, d.unknownText, nil); err != nil {
			return TransportFault(err)
		}
		return nil
	}

	start := time.Now()
	terminal, err := runner.Handle(ctx, env)
	metrics.ObserveRoute(runner.Flow(), float64(time.Since(start).Milliseconds()))

	if err != nil {
		d.retire(env.UserID, runner)
		metrics.IncFlowFinished(runner.Flow(), "faulted")
		logger.Error(ctx, "flow", "route.fault",
			slog.String("flow", runner.Flow()),
			slog.String("step", runner.Step()),
			slog.String("err_code", ErrCode(err)),
			slog.String("err", err.Error()),
		)
		if _, sendErr := d.transport.Send(ctx, env.ChatID, d.faultText, nil); sendErr != nil {
			logger.Error(ctx, "flow", "route.fault.reply.fail",
				slog.String("err", sendErr.Error()),
			)
		}
		return err
	}

	if terminal {
		d.retire(env.UserID, runner)
		metrics.IncFlowFinished(runner.Flow(), "completed")
	}
	return nil
}

// ReapIdle removes sessions idle longer than maxIdle and runs their
// cleanup. Returns the number of sessions removed.
func (d *Dispatcher) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	d.mu.Lock()
	stale := make(map[int64]Runner)
	for id, r := range d.active {
		if r.Touched().Before(cutoff) {
			stale[id] = r
		}
	}
	d.mu.Unlock()

	reaped := 0
	for id, r := range stale {
		lock := d.userLock(id)
		lock.Lock()
		d.mu.Lock()
		// Re-check under the user lock: the session may have been
		// touched or replaced since the scan.
		removed := d.active[id] == r && r.Touched().Before(cutoff)
		if removed {
			delete(d.active, id)
		}
		d.mu.Unlock()
		if removed {
			r.Cleanup(ctx)
			metrics.IncFlowFinished(r.Flow(), "reaped")
			logger.Info(ctx, "flow", "session.reaped",
				slog.Int64("user_id", id),
				slog.String("flow", r.Flow()),
				slog.String("step", r.Step()),
			)
			reaped++
		}
		lock.Unlock()
	}
	return reaped
}

// resolve picks (and registers) the session that should consume the
// envelope, or reports that none applies.
func (d *Dispatcher) resolve(ctx context.Context, env envelope.Envelope) (Runner, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.active[env.UserID]

	if name := env.Command(); name != "" {
		if cmd, ok := d.commands[name]; ok {
			// Command always wins: in-flight state is discarded without
			// cleanup, matching terminal-path-only cleanup guarantees.
			if current != nil {
				metrics.IncFlowFinished(current.Flow(), "superseded")
			}
			return d.start(ctx, env, cmd)
		}
	}

	if current != nil {
		return current, true
	}

	if d.decide != nil {
		if name, ok := d.decide(env, nil); ok {
			if cmd, found := d.commands[name]; found {
				return d.start(ctx, env, cmd)
			}
		}
	}

	delete(d.active, env.UserID)
	return nil, false
}

// start constructs a fresh session and registers it. Caller holds d.mu.
func (d *Dispatcher) start(ctx context.Context, env envelope.Envelope, cmd Command) (Runner, bool) {
	runner := cmd.New()
	d.active[env.UserID] = runner
	metrics.IncFlowStarted(runner.Flow())
	logger.Debug(ctx, "flow", "session.started",
		slog.Int64("user_id", env.UserID),
		slog.String("flow", runner.Flow()),
	)
	return runner, true
}

func (d *Dispatcher) retire(userID int64, runner Runner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[userID] == runner {
		delete(d.active, userID)
	}
}

func (d *Dispatcher) userLock(userID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[userID] = lock
	}
	return lock
}
