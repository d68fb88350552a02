package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatbridge/lib/chatdom"
	"chatbridge/lib/scrapers/chat"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/bridge")

// EngineOptions are tuning knobs for the pagination loop. The defaults
// reproduce the observed production behavior and are intentionally
// distinct from the bridge's fixed-interval transport reconnect.
type EngineOptions struct {
	// fixed wait after activating the affordance, lets async rendering
	// finish before the pane is inspected again
	SettleDelay time.Duration
	// exponential backoff applied only after an iteration that made no
	// progress and added no records
	BackoffBase     time.Duration
	BackoffGrowth   float64
	BackoffCap      time.Duration
	NoProgressLimit int
	// injectable wait, tests swap it for a recorder
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		SettleDelay:     1200 * time.Millisecond,
		BackoffBase:     1500 * time.Millisecond,
		BackoffGrowth:   1.5,
		BackoffCap:      15000 * time.Millisecond,
		NoProgressLimit: 6,
		Sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Engine drives the virtualized message list backward through history
// until a boundary, the step limit, or an external stop.
type Engine struct {
	page chatdom.Page
	opts EngineOptions
}

func NewEngine(page chatdom.Page, opts EngineOptions) *Engine {
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Engine{page: page, opts: opts}
}

func (e *Engine) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.BackoffBase
	b.Multiplier = e.opts.BackoffGrowth
	b.MaxInterval = e.opts.BackoffCap
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run executes the session to completion. The absence of the message
// pane at start is fatal for the session; everything that goes wrong
// per iteration only reduces that iteration's yield.
func (e *Engine) Run(ctx context.Context, session *Session) error {
	ctx, span := tracer.Start(ctx, "engine:Run")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", session.ID))

	if _, err := e.page.Metrics(ctx); err != nil {
		err = fmt.Errorf("scrape precondition: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session precondition failed")
		session.fail(err)
		return err
	}

	session.setState(StateRunning)
	policy := e.newBackoff()
	var loopErr error

	for {
		if session.stopWanted() {
			session.setState(StateStopping)
			break
		}
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}

		before, metricsKnown := e.measure(ctx)

		// activate the affordance and push the list to the
		// history-ward edge; the affordance may be absent, which is
		// fine
		if _, err := e.page.LoadEarlier(ctx); err != nil {
			slog.WarnContext(ctx, "load-earlier activation failed", "err", err)
		}
		if err := e.page.ResetScroll(ctx); err != nil {
			slog.WarnContext(ctx, "scroll reset failed", "err", err)
		}

		if err := e.opts.Sleep(ctx, e.opts.SettleDelay); err != nil {
			loopErr = err
			break
		}

		// the affordance can reappear after the reset
		if _, err := e.page.LoadEarlier(ctx); err != nil {
			slog.WarnContext(ctx, "load-earlier reactivation failed", "err", err)
		}

		progress := false
		if after, ok := e.measure(ctx); ok && metricsKnown {
			progress = after.ScrollHeight > before.ScrollHeight ||
				after.ItemCount > before.ItemCount
		}

		added := e.extractMerge(ctx, session)

		if !progress && added == 0 {
			stuck := session.recordNoProgress()
			if stuck >= e.opts.NoProgressLimit {
				slog.InfoContext(ctx, "history boundary reached",
					"session_id", session.ID,
					"no_progress", stuck,
				)
				break
			}
			if err := e.opts.Sleep(ctx, policy.NextBackOff()); err != nil {
				loopErr = err
				break
			}
		} else {
			session.resetNoProgress()
			policy.Reset()
		}

		steps := session.recordStep()
		if steps >= session.Options().MaxSteps {
			slog.InfoContext(ctx, "pagination step limit reached",
				"session_id", session.ID,
				"steps", steps,
			)
			break
		}
	}

	// content may have changed between the last iteration and
	// termination, sweep once more before sorting
	e.extractMerge(ctx, session)
	session.finish(loopErr)

	if loopErr != nil {
		span.RecordError(loopErr)
		span.SetStatus(codes.Error, "session terminated early")
		return loopErr
	}
	return nil
}

func (e *Engine) measure(ctx context.Context) (chatdom.ListMetrics, bool) {
	metrics, err := e.page.Metrics(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to measure message pane", "err", err)
		return chatdom.ListMetrics{}, false
	}
	return metrics, true
}

// extractMerge expands truncated bodies, snapshots the pane and merges
// every visible record into the session. Soft failures yield zero.
func (e *Engine) extractMerge(ctx context.Context, session *Session) int {
	if err := e.page.ExpandTruncated(ctx); err != nil {
		slog.WarnContext(ctx, "failed to expand truncated messages", "err", err)
	}
	doc, err := e.page.Snapshot(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to snapshot message pane", "err", err)
		return 0
	}
	return session.merge(chat.ExtractVisible(ctx, doc))
}
