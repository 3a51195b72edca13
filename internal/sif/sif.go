// Package sif models the content unit of the application: a scheduled
// personal message ("SIF"). Composition, delivery scheduling, and
// attachments live in the mobile client and its delivery collaborators;
// this service only needs the fields the moderation core reads and the
// removal flag it writes.
package sif

import (
	"context"
	"time"
)

// SIF is a scheduled personal message.
type SIF struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	RecipientID string     `json:"recipient_id,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// IsRemoved is set exclusively by the moderation workflow when a report
	// is resolved with a content-removed action. Removal is never undone by
	// this service.
	IsRemoved bool `json:"is_removed"`
}

// ContentID implements moderation.Content.
func (s SIF) ContentID() string { return s.ID }

// ContentAuthorID implements moderation.Content.
func (s SIF) ContentAuthorID() string { return s.AuthorID }

// ContentRemoved implements moderation.Content.
func (s SIF) ContentRemoved() bool { return s.IsRemoved }

// Store defines SIF persistence. Get returns (nil, nil) when absent.
// SetRemoved is idempotent and satisfies moderation.ContentFlagger.
type Store interface {
	Put(ctx context.Context, item SIF) error
	Get(ctx context.Context, id string) (*SIF, error)
	ListByAuthor(ctx context.Context, authorID string) ([]SIF, error)
	SetRemoved(ctx context.Context, id string) error
}
