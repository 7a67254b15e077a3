package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/logging"
)

// RefreshTaskID identifies the score refresh job
const RefreshTaskID = "score-refresh"

// ProfileLister lists every profile
type ProfileLister interface {
	List(ctx context.Context) ([]*core.UserProfile, error)
}

// ScoreUpdater recomputes one owner's scores
type ScoreUpdater interface {
	UpdateLifeScores(ctx context.Context, ownerID string) (core.ScoreSet, error)
}

// RefreshScores returns a handler recomputing the scores of every profile.
// Health, wealth and relationship scores decay with time even when nothing
// is logged, so cached scores go stale without it.
// A profile deleted mid-run is skipped; other failures are joined.
func RefreshScores(profiles ProfileLister, scores ScoreUpdater) TaskHandler {
	log := logging.WithField("task", RefreshTaskID)

	return func(ctx context.Context) error {
		list, err := profiles.List(ctx)
		if err != nil {
			return err
		}

		var errs []error
		refreshed := 0
		for _, p := range list {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			if _, err := scores.UpdateLifeScores(ctx, p.ID); err != nil {
				if core.IsNotFound(err) {
					continue
				}
				errs = append(errs, fmt.Errorf("refresh %s: %w", p.ID, err))
				continue
			}
			refreshed++
		}

		log.Info("refreshed scores for %d of %d profiles", refreshed, len(list))
		return errors.Join(errs...)
	}
}
