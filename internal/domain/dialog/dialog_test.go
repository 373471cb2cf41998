package dialog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// blockingTickets lets a test decide when and how a submission resolves.
type blockingTickets struct {
	requests chan TicketRequest
	results  chan error
}

func newBlockingTickets() *blockingTickets {
	return &blockingTickets{
		requests: make(chan TicketRequest, 1),
		results:  make(chan error, 1),
	}
}

func (b *blockingTickets) Submit(_ context.Context, req TicketRequest) error {
	b.requests <- req
	return <-b.results
}

func wrapper(id string) model.Wrapper {
	return *model.NewWrapper(model.Message{UseCaseID: id, Severity: model.SeverityError}, nil)
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("ticket submission did not resolve")
		return nil
	}
}

func TestDialog_ShowAndDismissResetTogether(t *testing.T) {
	var changes atomic.Int32
	d := New(nil, func() { changes.Add(1) })

	assert.False(t, d.State().Visible)
	assert.ErrorIs(t, d.SetDescription("x"), ErrNotVisible)

	d.Show(wrapper("A"))
	require.NoError(t, d.SetDescription("printer on fire"))

	st := d.State()
	assert.True(t, st.Visible)
	require.NotNil(t, st.Selected)
	assert.Equal(t, "A", st.Selected.Message.UseCaseID)
	assert.Equal(t, "printer on fire", st.Description)

	d.Dismiss()
	st = d.State()
	assert.False(t, st.Visible)
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.Description)
	assert.Empty(t, st.TicketError)
	assert.EqualValues(t, 3, changes.Load())
}

func TestDialog_Refresh(t *testing.T) {
	d := New(nil, nil)
	assert.False(t, d.Refresh(wrapper("A")), "hidden dialog ignores refresh")

	d.Show(wrapper("A"))
	updated := wrapper("A")
	updated.AppendCauses([]model.MessageCause{{Cause: "c1"}})

	assert.False(t, d.Refresh(wrapper("B")))
	assert.True(t, d.Refresh(updated))
	assert.Len(t, d.State().Selected.Causes, 1)
}

func TestDialog_SubmitTicketSuccessHides(t *testing.T) {
	tickets := newBlockingTickets()
	d := New(tickets, nil)
	d.Show(wrapper("A"))
	require.NoError(t, d.SetDescription("details"))

	done, err := d.SubmitTicket(context.Background())
	require.NoError(t, err)

	req := <-tickets.requests
	assert.Equal(t, "A", req.UseCaseID)
	assert.Equal(t, "details", req.Description)
	assert.False(t, req.Flag)
	assert.Empty(t, req.Attachments)
	assert.Empty(t, req.Recipients)

	assert.True(t, d.State().RequestInProgress)
	_, err = d.SubmitTicket(context.Background())
	assert.ErrorIs(t, err, ErrRequestInProgress, "double submission is refused at the boundary")

	tickets.results <- nil
	require.NoError(t, wait(t, done))

	st := d.State()
	assert.False(t, st.Visible)
	assert.False(t, st.RequestInProgress)
	assert.Empty(t, st.Description)
}

func TestDialog_SubmitTicketFailureStaysVisible(t *testing.T) {
	tickets := newBlockingTickets()
	d := New(tickets, nil)
	d.Show(wrapper("A"))

	done, err := d.SubmitTicket(context.Background())
	require.NoError(t, err)
	<-tickets.requests
	tickets.results <- &TicketError{CauseLocalized: "XSF unavailable"}

	var te *TicketError
	require.ErrorAs(t, wait(t, done), &te)

	st := d.State()
	assert.True(t, st.Visible)
	assert.False(t, st.RequestInProgress)
	assert.Equal(t, "XSF unavailable", st.TicketError)

	// retry is a user action and allowed again
	done, err = d.SubmitTicket(context.Background())
	require.NoError(t, err)
	<-tickets.requests
	tickets.results <- errors.New("connection refused")
	require.Error(t, wait(t, done))
	assert.Equal(t, "connection refused", d.State().TicketError)

	d.Dismiss()
	assert.Empty(t, d.State().TicketError)
}

func TestDialog_LateResultAfterDismissIsIgnored(t *testing.T) {
	tickets := newBlockingTickets()
	d := New(tickets, nil)
	d.Show(wrapper("A"))

	done, err := d.SubmitTicket(context.Background())
	require.NoError(t, err)
	<-tickets.requests

	d.Dismiss()
	d.Show(wrapper("B"))

	tickets.results <- &TicketError{CauseLocalized: "late"}
	require.Error(t, wait(t, done))

	st := d.State()
	assert.True(t, st.Visible)
	assert.Equal(t, "B", st.Selected.Message.UseCaseID)
	assert.Empty(t, st.TicketError)
	assert.False(t, st.RequestInProgress)
}

func TestDialog_SubmitTicketGuards(t *testing.T) {
	_, err := New(nil, nil).SubmitTicket(context.Background())
	assert.ErrorIs(t, err, ErrTicketNotSupported)

	_, err = New(newBlockingTickets(), nil).SubmitTicket(context.Background())
	assert.ErrorIs(t, err, ErrNotVisible)
}
