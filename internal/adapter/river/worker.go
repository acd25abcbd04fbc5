package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// EventWorker processes intervention workflow events from the River queue.
// It logs the event; notification delivery hooks in here.
type EventWorker struct {
	river.WorkerDefaults[InterventionEventArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[InterventionEventArgs]) error {
	slog.InfoContext(ctx, "processing intervention event",
		"event", job.Args.Event,
		"intervention_id", job.Args.InterventionID,
		"building_id", job.Args.BuildingID,
		"status", job.Args.Status,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// InvitationWorker delivers contact invitations.
type InvitationWorker struct {
	river.WorkerDefaults[InvitationArgs]
}

func (w *InvitationWorker) Work(ctx context.Context, job *river.Job[InvitationArgs]) error {
	slog.InfoContext(ctx, "sending contact invitation",
		"user_id", job.Args.UserID,
		"team_id", job.Args.TeamID,
		"role", job.Args.Role,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
