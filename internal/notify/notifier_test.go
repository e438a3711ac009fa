package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvolkov/sol-limit-bot/internal/notify"
)

type recordingSender struct {
	name     string
	err      error
	messages []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, title+": "+message)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFansOutToAllSenders(t *testing.T) {
	tg := &recordingSender{name: "telegram"}
	dc := &recordingSender{name: "discord"}
	n := notify.NewNotifier([]notify.Sender{tg, dc}, nil, discardLogger())

	err := n.Notify(context.Background(), notify.EventOrderFilled, "Filled", "BUY 100 AAA")
	require.NoError(t, err)

	assert.Equal(t, []string{"Filled: BUY 100 AAA"}, tg.messages)
	assert.Equal(t, []string{"Filled: BUY 100 AAA"}, dc.messages)
}

func TestNotifyHonorsEventFilter(t *testing.T) {
	tg := &recordingSender{name: "telegram"}
	n := notify.NewNotifier([]notify.Sender{tg}, []string{notify.EventOrderFilled}, discardLogger())

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, notify.EventOrderCancelled, "Cancelled", "nope"))
	assert.Empty(t, tg.messages)

	require.NoError(t, n.Notify(ctx, notify.EventOrderFilled, "Filled", "yes"))
	assert.Len(t, tg.messages, 1)
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	tg := &recordingSender{name: "telegram"}
	n := notify.NewNotifier([]notify.Sender{tg}, []string{" ", ""}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), notify.EventOrderFailed, "Failed", "boom"))
	assert.Len(t, tg.messages, 1)
}

func TestNotifyOneDeadChannelDoesNotMuteOthers(t *testing.T) {
	dead := &recordingSender{name: "telegram", err: errors.New("401 unauthorized")}
	live := &recordingSender{name: "discord"}
	n := notify.NewNotifier([]notify.Sender{dead, live}, nil, discardLogger())

	err := n.Notify(context.Background(), notify.EventOrderFilled, "Filled", "BUY 100 AAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Len(t, live.messages, 1)
}

func TestNotifyNoSenders(t *testing.T) {
	n := notify.NewNotifier(nil, nil, discardLogger())
	require.NoError(t, n.Notify(context.Background(), notify.EventOrderFilled, "Filled", "ok"))
}
