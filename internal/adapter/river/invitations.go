package river

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// QueueInvitations is the queue contact invitations are delivered from.
const QueueInvitations = "invitations"

var _ domain.InvitationSender = (*InvitationSender)(nil)

// InvitationArgs is the job payload for one contact invitation.
type InvitationArgs struct {
	UserID    string    `json:"user_id" river:"unique"`
	TeamID    string    `json:"team_id" river:"unique"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	InvitedAt time.Time `json:"invited_at"`
}

func (InvitationArgs) Kind() string { return "contact.invitation" }

// InsertOpts routes invitations to their own queue and drops duplicates for
// the same user and team while one is still pending.
func (InvitationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueInvitations,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// InvitationSender implements domain.InvitationSender by enqueuing River jobs.
type InvitationSender struct {
	client *Client
}

// NewInvitationSender creates a sender backed by the given River client.
func NewInvitationSender(client *Client) *InvitationSender {
	return &InvitationSender{client: client}
}

func (s *InvitationSender) SendInvitation(ctx context.Context, inv domain.Invitation) error {
	_, err := s.client.Insert(ctx, InvitationArgs{
		UserID:    inv.UserID,
		TeamID:    inv.TeamID,
		Email:     inv.Email,
		Name:      inv.Name,
		Role:      string(inv.Role),
		InvitedAt: inv.InvitedAt.UTC(),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing invitation job: %w", err)
	}
	return nil
}
