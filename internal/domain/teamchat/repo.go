// Package teamchat is the staff-only team channel shown next to the ward
// dashboard.
package teamchat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderUID  string    `json:"sender_uid"`
	SenderName string    `json:"sender_name"`
	SenderRole string    `json:"sender_role"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// Repository keeps messages oldest first.
type Repository interface {
	Append(ctx context.Context, m *Message) error
	List(ctx context.Context, limit, offset int) ([]*Message, int, error)
}
