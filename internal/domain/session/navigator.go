// Package session tracks each signed-in user's active page and selected
// patient, applying the page and visibility rules on every move.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/domain/access"
	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/platform/auth"
)

var ErrNoSession = errors.New("no authenticated session")

// State is what the client renders.
type State struct {
	ActivePage        access.Page   `json:"activePage"`
	SelectedPatientID string        `json:"selectedPatientId,omitempty"`
	Pages             []access.Page `json:"pages"`
}

// TransitionHook runs after every allowed navigation.
type TransitionHook func(ctx context.Context, from, to access.Page) error

// Scope lists the patients the principal on ctx may see.
type Scope interface {
	Visible(ctx context.Context) ([]*patient.Patient, error)
}

type Navigator struct {
	scope    Scope
	recorder audit.Recorder
	logger   zerolog.Logger

	mu     sync.Mutex
	states map[string]*State
	hooks  []TransitionHook
}

func NewNavigator(scope Scope, recorder audit.Recorder, logger zerolog.Logger) *Navigator {
	return &Navigator{
		scope:    scope,
		recorder: recorder,
		logger:   logger,
		states:   make(map[string]*State),
	}
}

// AddHook registers h to run after allowed navigations, in registration order.
func (n *Navigator) AddHook(h TransitionHook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hooks = append(n.hooks, h)
}

// ConsentSweep returns a hook that expires lapsed consents.
func ConsentSweep(sweeper interface {
	SweepExpirations(ctx context.Context) (int, error)
}) TransitionHook {
	return func(ctx context.Context, _, _ access.Page) error {
		_, err := sweeper.SweepExpirations(ctx)
		return err
	}
}

// state returns the caller's state, creating it on first use. n.mu must be held.
func (n *Navigator) state(p auth.Principal) *State {
	s, ok := n.states[p.UID]
	if !ok {
		s = &State{ActivePage: access.DefaultPage(p.Role)}
		n.states[p.UID] = s
	}
	return s
}

func snapshot(s *State, role string) State {
	out := *s
	out.Pages = access.PagesFor(role)
	return out
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok || p.UID == "" {
		return auth.Principal{}, ErrNoSession
	}
	return p, nil
}

func (n *Navigator) Current(ctx context.Context) (State, error) {
	p, err := principal(ctx)
	if err != nil {
		return State{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return snapshot(n.state(p), p.Role), nil
}

// Navigate moves to page if the caller's role may open it, clearing the
// selected patient. A disallowed page leaves the state untouched and
// reports allowed=false.
func (n *Navigator) Navigate(ctx context.Context, page access.Page) (State, bool, error) {
	p, err := principal(ctx)
	if err != nil {
		return State{}, false, err
	}

	n.mu.Lock()
	s := n.state(p)
	if !access.CanAccessPage(p.Role, page) {
		out := snapshot(s, p.Role)
		n.mu.Unlock()
		return out, false, nil
	}
	from := s.ActivePage
	s.ActivePage = page
	s.SelectedPatientID = ""
	out := snapshot(s, p.Role)
	hooks := append([]TransitionHook{}, n.hooks...)
	n.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, from, page); err != nil {
			n.logger.Warn().Err(err).Str("uid", p.UID).Str("page", string(page)).Msg("navigation hook failed")
		}
	}
	return out, true, nil
}

// Select focuses a patient if it is in the caller's visible set. Anything
// else leaves the state untouched and reports allowed=false.
func (n *Navigator) Select(ctx context.Context, patientID string) (State, bool, error) {
	p, err := principal(ctx)
	if err != nil {
		return State{}, false, err
	}
	visible, err := n.scope.Visible(ctx)
	if err != nil {
		return State{}, false, err
	}
	var target *patient.Patient
	for _, rec := range visible {
		if rec.RecordID() == patientID {
			target = rec
			break
		}
	}

	n.mu.Lock()
	s := n.state(p)
	if target == nil {
		out := snapshot(s, p.Role)
		n.mu.Unlock()
		return out, false, nil
	}
	s.SelectedPatientID = patientID
	out := snapshot(s, p.Role)
	n.mu.Unlock()

	if _, err := n.recorder.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: "Viewed patient record",
		Target: fmt.Sprintf("%s (%s)", target.Name, patient.DisplayID(target.Seq)),
	}); err != nil {
		return State{}, false, err
	}
	return out, true, nil
}

// End drops the caller's state and records the logout.
func (n *Navigator) End(ctx context.Context) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.states, p.UID)
	n.mu.Unlock()
	_, err = n.recorder.Record(ctx, audit.Event{
		Actor:  audit.ActorFromContext(ctx),
		Action: "Logged out",
		Target: p.Role,
	})
	return err
}
