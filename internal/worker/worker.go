package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mbarkia/darna/internal/darna"
)

const TaskQueue = "darna-worker"

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
func NewWorker(ctx context.Context, store darna.Store, cli client.Client, claudeClient *anthropic.Client) (worker.Worker, error) {
	a := activities{
		store:        store,
		claudeClient: claudeClient,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, cli); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %T, %v", err, err)
	}

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client) error {
	// Workflows
	wfs := workflows{}
	w.RegisterWorkflow(wfs.ModerateListings)
	w.RegisterWorkflow(wfs.ScanSavedSearches)

	// Activities
	w.RegisterActivity(&a)

	// Schedules:
	// Moderate pending listings
	handle := cli.ScheduleClient().GetHandle(ctx, "moderate_listings")
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: "moderate_listings",
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: 5 * time.Minute}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        "moderate_listings",
				Workflow:  wfs.ModerateListings,
				TaskQueue: TaskQueue,
			},
			TriggerImmediately: true,
		})
		if err != nil {
			return err
		}
	}
	handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	// Scan saved searches for fresh matches
	handle = cli.ScheduleClient().GetHandle(ctx, "scan_saved_searches")
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: "scan_saved_searches",
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: 15 * time.Minute}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        "scan_saved_searches",
				Workflow:  wfs.ScanSavedSearches,
				TaskQueue: TaskQueue,
			},
		})
		if err != nil {
			return err
		}
	}
	handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})

	return nil
}

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInternal  = "internal"
	errTypeRateLimit = "rateLimit"
)
