package worker

import (
	"log/slog"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mbarkia/darna/internal/darna"
)

type workflows struct{}

// ModerateListings judges one batch of pending listings and settles them.
// The schedule brings the next batch around soon enough, so a run never
// loops on the queue.
func (workflows) ModerateListings(ctx workflow.Context) error {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3, // 0 is unlimited retries
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var pending []darna.Doc
	if err := workflow.ExecuteActivity(ctx, acts.FetchPendingListings).Get(ctx, &pending); err != nil {
		slog.Error("failed to fetch pending listings", "error", err)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var js judgements
	if err := workflow.ExecuteActivity(ctx, acts.JudgeListings, pending).Get(ctx, &js); err != nil {
		slog.Error("failed to judge listings", "error", err)
		return err
	}

	return workflow.ExecuteActivity(ctx, acts.ApplyModeration, js).Get(ctx, nil)
}

// ScanSavedSearches matches every saved search against the approved pool
// and records an alert per fresh match.
func (workflows) ScanSavedSearches(ctx workflow.Context) error {
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)
	a := activities{}

	var searches []darna.SavedSearch
	if err := workflow.ExecuteActivity(ctx, acts.ListSavedSearches).Get(ctx, &searches); err != nil {
		slog.Error("failed to list saved searches", "error", err)
		return err
	}

	wg := workflow.NewWaitGroup(ctx)
	wg.Add(len(searches))
	for _, search := range searches {
		workflow.Go(ctx, func(ctx workflow.Context) {
			defer wg.Done()

			var alerts []darna.Alert
			if err := workflow.ExecuteActivity(ctx, a.MatchListings, search).Get(ctx, &alerts); err != nil {
				slog.Error("failed to match listings", "saved_search_id", search.ID, "error", err)
				return
			}
			if len(alerts) == 0 {
				return
			}

			if err := workflow.ExecuteActivity(ctx, a.RecordAlerts, alerts).Get(ctx, nil); err != nil {
				slog.Error("failed to record alerts", "saved_search_id", search.ID, "error", err)
			}
		})
	}

	wg.Wait(ctx)

	return nil
}
