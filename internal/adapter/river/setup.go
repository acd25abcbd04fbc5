package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Migrate creates or upgrades River's own tables (river_job, river_leader, ...),
// which are separate from the app's goose migrations. It returns the number of
// versions applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return 0, fmt.Errorf("creating river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return 0, fmt.Errorf("running river migrations: %w", err)
	}
	return len(res.Versions), nil
}

// Setup runs Migrate and creates a River client with the event and invitation
// workers registered. The caller must call client.Start() to begin processing
// jobs and client.Stop() for graceful shutdown.
func Setup(ctx context.Context, db *sql.DB) (*Client, error) {
	if _, err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	driver := riversqlite.New(db)

	workers := river.NewWorkers()
	river.AddWorker(workers, &EventWorker{})
	river.AddWorker(workers, &InvitationWorker{})

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueInvitations:   {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
