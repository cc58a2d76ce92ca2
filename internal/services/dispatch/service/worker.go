// Package service contains work queue workflows
package service

import (
	"context"
	"fmt"
	"time"

	perr "animabook/internal/platform/errors"
	"animabook/internal/services/dispatch/domain"
)

// Run drains the queue until the context ends.
// Items run sequentially within one worker; horizontal scale comes from
// running more worker processes against the same queue
func (s *Svc) Run(ctx context.Context) error {
	t := time.NewTicker(s.config.PollEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			items, err := s.Repo.Lease(ctx, s.config.TakeBatch, s.config.LeaseFor)
			if err != nil {
				return err
			}
			if depth, derr := s.Repo.PendingCount(ctx); derr == nil {
				s.meter.RecordQueueDepth(int(depth))
			}
			if len(items) == 0 {
				continue
			}

			for _, item := range items {
				if err := s.process(ctx, item); err != nil {
					return err
				}
			}
		}
	}
}

// process runs one item through its handler. Handler failures schedule a
// retry; queue bookkeeping failures abort the worker since the store is sick
func (s *Svc) process(ctx context.Context, item domain.Item) error {
	h, ok := s.handlers[item.Kind]
	if !ok {
		s.deps.Log.Warn().Str("kind", item.Kind).Str("id", item.ID.String()).Msg("no handler for work item, dropping")
		s.observe(ctx, item, domain.OutcomeUnhandled, "")
		return s.Repo.Ack(ctx, item.ID)
	}

	if err := h(ctx, item); err != nil {
		s.handleFailure(ctx, item, err)
		return nil
	}
	s.observe(ctx, item, domain.OutcomeOK, "")
	return s.Repo.Ack(ctx, item.ID)
}

func (s *Svc) observe(ctx context.Context, item domain.Item, outcome, detail string) {
	if s.observer != nil {
		s.observer(ctx, item, outcome, detail)
	}
}

func (s *Svc) handleFailure(ctx context.Context, item domain.Item, err error) {
	if perr.IsBudget(err) {
		// saturation, not failure: wait out the window without burning
		// an attempt, so a long-exhausted budget never dead-letters work
		back := s.config.RetryBackoff + s.config.BudgetExtra
		if derr := s.Repo.Defer(ctx, item.ID, back, err.Error()); derr != nil {
			s.deps.Log.Error().Err(derr).Str("kind", item.Kind).Msg("defer work item")
			return
		}
		s.observe(ctx, item, domain.OutcomeRetry, err.Error())
		s.deps.Log.Debug().
			Str("kind", item.Kind).
			Str("entity_type", item.EntityType).
			Int64("entity_id", item.EntityID).
			Dur("backoff", back).
			Msg("work item deferred, budget exhausted")
		return
	}

	if item.Attempts+1 >= s.config.MaxAttempts {
		// terminal: record on the entity when the item names one, then drop
		msg := fmt.Sprintf("gave up after %d attempts: %s", item.Attempts+1, err.Error())
		if s.failures != nil && item.EntityType != "" && item.EntityID != 0 {
			if ferr := s.failures.RecordFailure(ctx, item.EntityType, item.EntityID, msg); ferr != nil {
				s.deps.Log.Error().Err(ferr).Str("kind", item.Kind).Msg("record terminal failure")
			}
		}
		s.deps.Log.Warn().
			Str("kind", item.Kind).
			Str("entity_type", item.EntityType).
			Int64("entity_id", item.EntityID).
			Int("attempts", item.Attempts+1).
			Err(err).
			Msg("work item dead, dropping")
		s.observe(ctx, item, domain.OutcomeDead, msg)
		if aerr := s.Repo.Ack(ctx, item.ID); aerr != nil {
			s.deps.Log.Error().Err(aerr).Msg("drop dead work item")
		}
		return
	}

	back := s.config.RetryBackoff
	if nerr := s.Repo.Nack(ctx, item.ID, back, err.Error()); nerr != nil {
		s.deps.Log.Error().Err(nerr).Str("kind", item.Kind).Msg("nack work item")
		return
	}
	s.observe(ctx, item, domain.OutcomeRetry, err.Error())
	s.deps.Log.Warn().
		Str("kind", item.Kind).
		Str("entity_type", item.EntityType).
		Int64("entity_id", item.EntityID).
		Dur("backoff", back).
		Err(err).
		Msg("work item failed, retry scheduled")
}
