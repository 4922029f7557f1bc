package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetrySpec re-runs a step until it succeeds or Attempts is exhausted.
// Readiness polls (waiting for the datastore to accept connections) are
// modelled this way instead of an ad hoc sleep loop.
type RetrySpec struct {
	Attempts int
	Interval time.Duration
}

// Step is one entry of an ordered pipeline. MustSucceed steps abort the
// remaining must-succeed steps on failure; best-effort steps (teardown,
// in-container cleanup) always run and only log their failures. This makes
// the continue-on-error contract of the backup/restore pipelines explicit
// per step rather than an implicit property of unchecked exit codes.
type Step struct {
	Name        string
	Cmd         Command
	MustSucceed bool
	Retry       *RetrySpec
}

// Pipeline runs steps sequentially through a Runner.
type Pipeline struct {
	runner Runner
	log    zerolog.Logger
	sleep  func(time.Duration)
}

func NewPipeline(r Runner, log zerolog.Logger) *Pipeline {
	return &Pipeline{runner: r, log: log, sleep: time.Sleep}
}

// SetSleep replaces the retry sleeper, letting tests run polls without delay.
func (p *Pipeline) SetSleep(fn func(time.Duration)) {
	p.sleep = fn
}

// Run executes the steps in order. It returns the joined errors of failed
// must-succeed steps; best-effort failures are diagnostics only.
func (p *Pipeline) Run(ctx context.Context, steps []Step) error {
	var errs []error
	failed := false
	for _, step := range steps {
		if failed && step.MustSucceed {
			p.log.Warn().Str("step", step.Name).Msg("skipped after earlier failure")
			continue
		}
		out, err := p.runStep(ctx, step)
		if err == nil {
			p.log.Debug().Str("step", step.Name).Msg("ok")
			continue
		}
		p.log.Error().Str("step", step.Name).Str("output", out).Err(err).Msg("step failed")
		if step.MustSucceed {
			failed = true
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) runStep(ctx context.Context, step Step) (string, error) {
	attempts := 1
	interval := time.Duration(0)
	if step.Retry != nil {
		attempts = step.Retry.Attempts
		interval = step.Retry.Interval
	}
	// A step always executes at least once, whatever its retry spec says.
	if attempts < 1 {
		attempts = 1
	}
	var out string
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			p.sleep(interval)
		}
		out, err = p.runner.Run(ctx, step.Cmd)
		if err == nil {
			return out, nil
		}
	}
	return out, err
}
