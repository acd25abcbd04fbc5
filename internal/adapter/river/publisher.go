package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// InterventionEventArgs carries a workflow event and a snapshot of the
// intervention at the time it was published, so the worker never needs to
// query the database.
type InterventionEventArgs struct {
	Event          string `json:"event"`
	InterventionID string `json:"intervention_id"`
	BuildingID     string `json:"building_id"`
	LotID          string `json:"lot_id,omitempty"`
	TeamID         string `json:"team_id"`
	RequestedBy    string `json:"requested_by"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Title          string `json:"title"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (InterventionEventArgs) Kind() string { return "intervention.event" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a workflow event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, iv domain.Intervention) error {
	_, err := p.client.Insert(ctx, InterventionEventArgs{
		Event:          string(event),
		InterventionID: iv.ID,
		BuildingID:     iv.BuildingID,
		LotID:          iv.LotID,
		TeamID:         iv.TeamID,
		RequestedBy:    iv.RequestedBy,
		Status:         string(iv.Status),
		Priority:       string(iv.Priority),
		Title:          iv.Title,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
