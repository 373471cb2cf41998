// Package dialog holds the cause dialog of one surface: at most one selected
// wrapper, a free-text description and a single-slot support ticket request.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/webitel/im-notice-service/internal/domain/model"
)

var (
	ErrNotVisible         = errors.New("dialog: no message selected")
	ErrRequestInProgress  = errors.New("dialog: ticket request already in progress")
	ErrTicketNotSupported = errors.New("dialog: ticket submission not configured")
)

// TicketRequest is what the support service receives for one submission.
type TicketRequest struct {
	UseCaseID   string
	Description string
	Flag        bool
	Attachments []string
	Recipients  []string
}

// TicketError is the structured failure returned by the support service.
type TicketError struct {
	CauseLocalized string
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("ticket rejected: %s", e.CauseLocalized)
}

// TicketService is the external support-ticket collaborator. Submit may
// block; timeout policy belongs to the implementation.
type TicketService interface {
	Submit(ctx context.Context, req TicketRequest) error
}

// Dialog is the Hidden <-> Visible(wrapper) state machine.
type Dialog struct {
	mu sync.Mutex

	visible     bool
	selected    *model.Wrapper
	description string
	inFlight    bool
	ticketErr   string

	// [GENERATION] bumped on every show/dismiss so a late ticket result
	// never applies to a different selection
	gen uint64

	tickets  TicketService
	onChange func()
}

// New creates a hidden dialog. tickets may be nil when ticket submission
// is not available; onChange is invoked after every state transition,
// outside the dialog lock.
func New(tickets TicketService, onChange func()) *Dialog {
	if onChange == nil {
		onChange = func() {}
	}
	return &Dialog{tickets: tickets, onChange: onChange}
}

// Show makes w the visible selection.
func (d *Dialog) Show(w model.Wrapper) {
	d.mu.Lock()
	d.visible = true
	d.selected = &w
	d.ticketErr = ""
	d.gen++
	d.mu.Unlock()

	d.onChange()
}

// Refresh replaces the selected wrapper with a newer version of the same
// use case. It reports whether the dialog displayed that use case.
func (d *Dialog) Refresh(w model.Wrapper) bool {
	d.mu.Lock()
	if !d.visible || d.selected == nil || d.selected.UseCaseID() != w.UseCaseID() {
		d.mu.Unlock()
		return false
	}
	d.selected = &w
	d.mu.Unlock()

	d.onChange()
	return true
}

// Dismiss hides the dialog and resets the ticket error and the description
// together.
func (d *Dialog) Dismiss() {
	d.mu.Lock()
	d.hideLocked()
	d.mu.Unlock()

	d.onChange()
}

func (d *Dialog) hideLocked() {
	d.visible = false
	d.ticketErr = ""
	d.description = ""
	d.gen++
}

// SetDescription stores the user's free-text problem description.
func (d *Dialog) SetDescription(text string) error {
	d.mu.Lock()
	if !d.visible {
		d.mu.Unlock()
		return ErrNotVisible
	}
	d.description = text
	d.mu.Unlock()

	d.onChange()
	return nil
}

// SubmitTicket starts the support-ticket request for the selected message.
// The returned channel yields the outcome exactly once, after the dialog has
// applied it: nil on success (dialog hidden), the service error otherwise
// (dialog stays visible and shows the error).
func (d *Dialog) SubmitTicket(ctx context.Context) (<-chan error, error) {
	if d.tickets == nil {
		return nil, ErrTicketNotSupported
	}

	d.mu.Lock()
	if !d.visible || d.selected == nil {
		d.mu.Unlock()
		return nil, ErrNotVisible
	}
	if d.inFlight {
		d.mu.Unlock()
		return nil, ErrRequestInProgress
	}
	d.inFlight = true
	gen := d.gen
	req := TicketRequest{
		UseCaseID:   d.selected.UseCaseID(),
		Description: d.description,
		Attachments: []string{},
		Recipients:  []string{},
	}
	d.mu.Unlock()

	d.onChange()

	done := make(chan error, 1)
	go func() {
		err := d.tickets.Submit(ctx, req)
		d.complete(gen, err)
		done <- err
		close(done)
	}()
	return done, nil
}

func (d *Dialog) complete(gen uint64, err error) {
	d.mu.Lock()
	d.inFlight = false
	if gen == d.gen {
		if err == nil {
			d.hideLocked()
		} else {
			d.ticketErr = describeTicketError(err)
		}
	}
	d.mu.Unlock()

	d.onChange()
}

func describeTicketError(err error) string {
	var te *TicketError
	if errors.As(err, &te) {
		return te.CauseLocalized
	}
	return err.Error()
}

// State returns a renderer-safe copy of the dialog.
func (d *Dialog) State() model.DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := model.DialogState{
		Visible:           d.visible,
		Description:       d.description,
		RequestInProgress: d.inFlight,
		TicketError:       d.ticketErr,
	}
	if d.visible && d.selected != nil {
		w := d.selected.Clone()
		st.Selected = &w
	}
	return st
}

// SelectedUseCase returns the use case currently shown, if any.
func (d *Dialog) SelectedUseCase() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible || d.selected == nil {
		return "", false
	}
	return d.selected.UseCaseID(), true
}
