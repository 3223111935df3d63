package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTerminal struct {
	statuses  []Status
	polls     int
	canceled  bool
	createErr error
}

func (f *fakeTerminal) CreateIntent(ctx context.Context, amount int64, metadata map[string]string) (Intent, error) {
	if f.createErr != nil {
		return Intent{}, f.createErr
	}
	return Intent{ID: "pi_1", Amount: amount, Status: StatusPending}, nil
}

func (f *fakeTerminal) IntentStatus(ctx context.Context, id string) (Intent, error) {
	status := StatusPending
	if f.polls < len(f.statuses) {
		status = f.statuses[f.polls]
	} else if len(f.statuses) > 0 {
		status = f.statuses[len(f.statuses)-1]
	}
	f.polls++
	return Intent{ID: id, Amount: 1323, Status: status}, nil
}

func (f *fakeTerminal) CancelIntent(ctx context.Context, id string) error {
	f.canceled = true
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestCollectSucceedsAfterPolling(t *testing.T) {
	term := &fakeTerminal{statuses: []Status{StatusPending, StatusPending, StatusSucceeded}}
	c := &Collector{Terminal: term, PollInterval: time.Second, PollAttempts: 120, Sleep: noSleep}

	intent, err := c.Collect(context.Background(), 1323, map[string]string{"orderRef": "o1"})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, intent.Status)
	require.Equal(t, 3, term.polls)
	require.False(t, term.canceled)
}

func TestCollectDeclined(t *testing.T) {
	term := &fakeTerminal{statuses: []Status{StatusFailed}}
	c := &Collector{Terminal: term, Sleep: noSleep}

	_, err := c.Collect(context.Background(), 500, nil)
	require.ErrorIs(t, err, ErrDeclined)
}

func TestCollectTimesOutAndCancels(t *testing.T) {
	term := &fakeTerminal{} // never leaves pending
	c := &Collector{Terminal: term, PollAttempts: 5, Sleep: noSleep}

	intent, err := c.Collect(context.Background(), 500, nil)
	require.ErrorIs(t, err, ErrTimedOut)
	require.Equal(t, StatusCanceled, intent.Status)
	require.True(t, term.canceled)
	require.Equal(t, 5, term.polls)
}

func TestCollectContextCancelCancelsIntent(t *testing.T) {
	term := &fakeTerminal{}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{Terminal: term, PollAttempts: 10, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	_, err := c.Collect(ctx, 500, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, term.canceled)
}

func TestCollectRejectsInvalidAmount(t *testing.T) {
	c := &Collector{Terminal: &fakeTerminal{}, Sleep: noSleep}
	_, err := c.Collect(context.Background(), 0, nil)
	require.Error(t, err)
}

func TestCollectCreateError(t *testing.T) {
	term := &fakeTerminal{createErr: errors.New("reader offline")}
	c := &Collector{Terminal: term, Sleep: noSleep}
	_, err := c.Collect(context.Background(), 500, nil)
	require.ErrorContains(t, err, "reader offline")
}
