package scheduler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/scheduler"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendDigest(ctx context.Context, familyID, to string) (string, error) {
	args := m.Called(ctx, familyID, to)
	return args.String(0), args.Error(1)
}

func subscriptions() []config.Subscription {
	return []config.Subscription{
		{FamilyID: "fam-1", Email: "a@example.com"},
		{FamilyID: "fam-2", Email: "b@example.com"},
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := scheduler.New(new(MockSender), config.DigestSettings{Schedule: "every tuesday"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrCronSchedule)
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name     string
		settings config.DigestSettings
		want     bool
	}{
		{"No schedule", config.DigestSettings{Subscriptions: subscriptions()}, false},
		{"No subscriptions", config.DigestSettings{Schedule: config.DefaultDigestSchedule}, false},
		{"Both", config.DigestSettings{Schedule: config.DefaultDigestSchedule, Subscriptions: subscriptions()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := scheduler.New(new(MockSender), tt.settings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Enabled())
		})
	}
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	sender := new(MockSender)
	sender.On("SendDigest", mock.Anything, "fam-1", "a@example.com").Return("", errors.New("store down"))
	sender.On("SendDigest", mock.Anything, "fam-2", "b@example.com").Return(config.MsgDigestNone, nil)

	s, err := scheduler.New(sender, config.DigestSettings{
		Schedule:      config.DefaultDigestSchedule,
		Subscriptions: subscriptions(),
	})
	require.NoError(t, err)

	s.RunOnce(context.Background())
	sender.AssertExpectations(t)
}

func TestRunOnce_StopsWhenCancelled(t *testing.T) {
	sender := new(MockSender)
	s, err := scheduler.New(sender, config.DigestSettings{
		Schedule:      config.DefaultDigestSchedule,
		Subscriptions: subscriptions(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx)

	sender.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartStop(t *testing.T) {
	s, err := scheduler.New(new(MockSender), config.DigestSettings{
		Schedule:      config.DefaultDigestSchedule,
		Subscriptions: subscriptions(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop(context.Background())
}

func TestStart_DisabledIsNoop(t *testing.T) {
	s, err := scheduler.New(new(MockSender), config.DigestSettings{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop(context.Background())
}
