package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/advisory-chat-api/databases/mocks"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/realtime"
)

func newTestScheduler() (*Scheduler, *mocks.PinDatabase, *mocks.MessageDatabase, *mocks.SchedulerLockDatabase) {
	pins, msgs, lock := &mocks.PinDatabase{}, &mocks.MessageDatabase{}, &mocks.SchedulerLockDatabase{}
	s := NewScheduler(pins, msgs, lock, realtime.NewHub(), "@every 10m")
	s.instanceID = "web.1"
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, pins, msgs, lock
}

func TestSweepPins(t *testing.T) {
	s, pins, msgs, lock := newTestScheduler()
	lock.On("TryAcquireLock", mock.Anything, pinSweepLock, "web.1", 10*time.Minute).Return(true, nil)
	lock.On("ReleaseLock", mock.Anything, pinSweepLock, "web.1").Return(nil)
	pins.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.PinnedMessage{
		{ID: "p1", RoomID: "r1", MessageID: "m1"},
		{ID: "p2", RoomID: "r1", MessageID: "m2"},
	}, nil)
	msgs.On("Find", mock.Anything, bson.M{"_id": bson.M{"$in": []string{"m1", "m2"}}, "isDeleted": true}, mock.Anything).
		Return([]models.ChatMessage{{ID: "m2", RoomID: "r1", IsDeleted: true}}, nil)
	pins.On("UpdateMany", mock.Anything,
		bson.M{"messageId": bson.M{"$in": []string{"m2"}}, "invalidatedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"invalidatedAt": time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}},
		mock.Anything,
	).Return(int64(1), nil)

	n, err := s.SweepPins(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	lock.AssertExpectations(t)
	pins.AssertExpectations(t)
}

func TestSweepPinsNothingDeleted(t *testing.T) {
	s, pins, msgs, lock := newTestScheduler()
	lock.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	lock.On("ReleaseLock", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	pins.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.PinnedMessage{{ID: "p1", MessageID: "m1"}}, nil)
	msgs.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	n, err := s.SweepPins(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	pins.AssertNotCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepPinsSkipsWhenLocked(t *testing.T) {
	s, pins, _, lock := newTestScheduler()
	lock.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	n, err := s.SweepPins(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	pins.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
	lock.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepPinsLockError(t *testing.T) {
	s, _, _, lock := newTestScheduler()
	lock.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("mocked-error"))

	_, err := s.SweepPins(context.Background())

	assert.EqualError(t, err, "failed to acquire lock: mocked-error")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s, _, _, _ := newTestScheduler()
	s.schedule = "every now and then"

	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s, _, _, _ := newTestScheduler()

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
