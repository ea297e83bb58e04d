// Package dispatch runs the renderer once per planned invocation, strictly
// one after another. A failed invocation never stops the loop and is never
// returned as an error; it only shows up in the Report.
package dispatch

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/render-loop/internal/plan"
)

// Observer is notified around each invocation. Callbacks run on the loop's
// goroutine, so a slow observer delays the next invocation.
type Observer interface {
	Started(runID string, inv plan.Invocation)
	Finished(runID string, outcome Outcome)
}

// Outcome records what happened to one invocation.
type Outcome struct {
	Invocation plan.Invocation
	ExitCode   int
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the renderer exited with status 0.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Report lists outcomes in the order the invocations ran.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Succeeded counts successful invocations.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that did not succeed.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Loop is the sequential dispatch loop.
type Loop struct {
	runner    Runner
	logger    *zap.Logger
	observers []Observer
	runID     string
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for per-invocation records.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers an observer. Observers are called in registration order.
func WithObserver(obs Observer) Option {
	return func(l *Loop) {
		if obs != nil {
			l.observers = append(l.observers, obs)
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(l *Loop) {
		if id != "" {
			l.runID = id
		}
	}
}

// New builds a Loop around runner.
func New(runner Runner, opts ...Option) *Loop {
	l := &Loop{
		runner: runner,
		logger: zap.NewNop(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID identifies this loop in logs and run history.
func (l *Loop) RunID() string { return l.runID }

// Run executes every invocation in order, waiting for each to finish before
// starting the next.
func (l *Loop) Run(invocations []plan.Invocation) Report {
	report := Report{RunID: l.runID, Outcomes: make([]Outcome, 0, len(invocations))}
	for _, inv := range invocations {
		report.Outcomes = append(report.Outcomes, l.runOne(inv))
	}
	l.logger.Info("render loop finished",
		zap.String("run_id", l.runID),
		zap.Int("invocations", len(report.Outcomes)),
		zap.Int("succeeded", report.Succeeded()),
	)
	return report
}

func (l *Loop) runOne(inv plan.Invocation) Outcome {
	fields := []zap.Field{
		zap.String("run_id", l.runID),
		zap.Int("value", inv.Value),
		zap.String("output", inv.Output),
		zap.String("command", inv.CommandLine()),
	}
	l.logger.Debug("render started", fields...)
	for _, obs := range l.observers {
		obs.Started(l.runID, inv)
	}

	start := time.Now()
	err := l.runner.Run(inv)
	outcome := Outcome{
		Invocation: inv,
		ExitCode:   ExitCode(err),
		Err:        err,
		Duration:   time.Since(start),
	}

	fields = append(fields,
		zap.Int("exit_code", outcome.ExitCode),
		zap.Duration("duration", outcome.Duration),
	)
	if err != nil {
		l.logger.Warn("render failed", append(fields, zap.Error(err))...)
	} else {
		l.logger.Info("render finished", fields...)
	}
	for _, obs := range l.observers {
		obs.Finished(l.runID, outcome)
	}
	return outcome
}
