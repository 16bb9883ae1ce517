package teamchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

// Topic is the live channel team messages are pushed on.
const Topic = "team"

const maxTextLen = 2000

var ErrStaffOnly = errors.New("team channel is limited to staff")

type Publisher interface {
	Publish(topic string, v interface{})
}

type Service struct {
	repo     Repository
	recorder audit.Recorder
	events   Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, recorder audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, logger: logger, now: time.Now}
}

func (s *Service) SetPublisher(p Publisher) { s.events = p }

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func isStaff(role string) bool {
	for _, r := range auth.StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Post appends a message from the caller and pushes it to live subscribers.
func (s *Service) Post(ctx context.Context, text string) (*Message, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok || !isStaff(p.Role) {
		return nil, ErrStaffOnly
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if len(text) > maxTextLen {
		return nil, fmt.Errorf("text must be at most %d characters", maxTextLen)
	}

	m := &Message{
		ID:         uuid.New(),
		SenderUID:  p.UID,
		SenderName: p.Name,
		SenderRole: p.Role,
		Text:       text,
		SentAt:     s.now().UTC(),
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append team message: %w", err)
	}

	if _, err := s.recorder.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: "Sent staff message",
		Target: "Team channel",
	}); err != nil {
		s.logger.Warn().Err(err).Msg("audit team message")
	}
	if s.events != nil {
		s.events.Publish(Topic, m)
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Message, int, error) {
	return s.repo.List(ctx, limit, offset)
}
