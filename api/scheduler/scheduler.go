package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/databases"
	"github.com/linesmerrill/advisory-chat-api/realtime"
)

const (
	pinSweepLock  = "pin_sweep_job"
	statsSchedule = "@every 1m"
)

// StatsSource reports live connection counts
type StatsSource interface {
	Stats() realtime.Stats
}

// Scheduler handles periodic background jobs for the chat service
type Scheduler struct {
	cron       *cron.Cron
	PinDB      databases.PinDatabase
	MessageDB  databases.MessageDatabase
	LockDB     databases.SchedulerLockDatabase
	Hub        StatsSource
	schedule   string
	instanceID string
	now        func() time.Time
}

// NewScheduler creates a new scheduler instance. schedule is the cron expression for the pin sweep.
func NewScheduler(
	pinDB databases.PinDatabase,
	messageDB databases.MessageDatabase,
	lockDB databases.SchedulerLockDatabase,
	hub StatsSource,
	schedule string,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		PinDB:      pinDB,
		MessageDB:  messageDB,
		LockDB:     lockDB,
		Hub:        hub,
		schedule:   schedule,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepPins); err != nil {
		return fmt.Errorf("failed to register pin sweep job: %w", err)
	}
	if s.Hub != nil {
		if _, err := s.cron.AddFunc(statsSchedule, s.logStats); err != nil {
			return fmt.Errorf("failed to register stats job: %w", err)
		}
	}

	s.cron.Start()
	zap.S().Infow("Chat scheduler started", "pinSweep", s.schedule, "instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Chat scheduler stopped")
}

func (s *Scheduler) sweepPins() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.SweepPins(ctx)
	if err != nil {
		zap.S().Errorw("pin sweep failed", "error", err)
		return
	}
	if n > 0 {
		zap.S().Infow("Pin sweep complete", "invalidated", n, "instance", s.instanceID)
	}
}

// SweepPins stamps invalidatedAt on live pins whose message has been deleted.
// Only one instance sweeps at a time; the others return zero.
func (s *Scheduler) SweepPins(ctx context.Context) (int64, error) {
	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, pinSweepLock, s.instanceID, 10*time.Minute)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		zap.S().Debug("Pin sweep already running on another instance, skipping")
		return 0, nil
	}
	defer s.LockDB.ReleaseLock(ctx, pinSweepLock, s.instanceID)

	live := bson.M{"invalidatedAt": bson.M{"$exists": false}}
	pins, err := s.PinDB.Find(ctx, live)
	if err != nil {
		return 0, fmt.Errorf("failed to find pins: %w", err)
	}
	if len(pins) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(pins))
	for _, p := range pins {
		ids = append(ids, p.MessageID)
	}

	deleted, err := s.MessageDB.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "isDeleted": true})
	if err != nil {
		return 0, fmt.Errorf("failed to find deleted messages: %w", err)
	}
	if len(deleted) == 0 {
		return 0, nil
	}
	gone := make([]string, 0, len(deleted))
	for _, m := range deleted {
		gone = append(gone, m.ID)
	}

	filter := bson.M{"messageId": bson.M{"$in": gone}, "invalidatedAt": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"invalidatedAt": s.now().UTC().Truncate(time.Millisecond)}}
	return s.PinDB.UpdateMany(ctx, filter, update)
}

func (s *Scheduler) logStats() {
	st := s.Hub.Stats()
	zap.S().Infow("realtime stats",
		"connections", st.Connections,
		"users", st.Users,
		"rooms", st.Rooms,
		"instance", s.instanceID,
	)
}
