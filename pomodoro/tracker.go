// Package pomodoro records focus and break sessions and aggregates them
// into statistics.
package pomodoro

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/storage"
)

// RedisPrefix names the per-user session hash, "pomodoro:<user>".
const RedisPrefix = "pomodoro"

// TaskLookup resolves the task a session is linked to.
type TaskLookup interface {
	Get(id string) (domain.Task, error)
}

// Tracker starts, ends and reports sessions of a user.
type Tracker struct {
	repo  storage.Records[domain.PomodoroSession]
	tasks TaskLookup
	log   *log.Logger
	now   func() time.Time
}

// NewTracker returns a Tracker over repo. tasks may be nil, in which case
// task links are not checked.
func NewTracker(repo storage.Records[domain.PomodoroSession], tasks TaskLookup, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Tracker{repo: repo, tasks: tasks, log: logger, now: domain.Now}
}

// Start opens a session beginning now.
func (t *Tracker) Start(ctx context.Context, userID string, req domain.SessionStart) (domain.PomodoroSession, error) {
	if err := req.Validate(); err != nil {
		return domain.PomodoroSession{}, err
	}
	req.TaskID = strings.TrimSpace(req.TaskID)
	if req.TaskID != "" && t.tasks != nil {
		if _, err := t.tasks.Get(req.TaskID); err != nil {
			return domain.PomodoroSession{}, &domain.ValidationError{Field: "taskId", Reason: "unknown task " + req.TaskID}
		}
	}
	if req.Type == "" {
		req.Type = domain.SessionWork
	}
	now := t.now()
	s := domain.PomodoroSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    req.TaskID,
		Type:      req.Type,
		Duration:  req.Duration,
		StartTime: now,
		CreatedAt: now,
	}
	if err := t.repo.Save(ctx, userID, s.ID, s); err != nil {
		return domain.PomodoroSession{}, err
	}
	t.log.WithFields(log.Fields{"user": userID, "session": s.ID, "type": s.Type}).Debug("pomodoro session started")
	return s, nil
}

// End closes a running session and marks it completed. Ending a session
// twice is a validation error.
func (t *Tracker) End(ctx context.Context, userID, id string) (domain.PomodoroSession, error) {
	s, err := t.repo.Get(ctx, userID, id)
	if err != nil {
		return domain.PomodoroSession{}, err
	}
	if s == nil {
		return domain.PomodoroSession{}, &domain.NotFoundError{Kind: "session", ID: id}
	}
	if s.EndTime != nil {
		return domain.PomodoroSession{}, &domain.ValidationError{Field: "id", Reason: "session already ended"}
	}
	end := t.now()
	s.EndTime = &end
	s.Completed = true
	if err := t.repo.Save(ctx, userID, s.ID, *s); err != nil {
		return domain.PomodoroSession{}, err
	}
	return *s, nil
}

// Sessions lists sessions by start time, oldest first. A non-nil day keeps
// the sessions started on that UTC calendar day.
func (t *Tracker) Sessions(ctx context.Context, userID string, day *time.Time) ([]domain.PomodoroSession, error) {
	all, err := t.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []domain.PomodoroSession{}
	for _, s := range all {
		if day != nil {
			from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
			if s.StartTime.Before(from) || !s.StartTime.Before(from.AddDate(0, 0, 1)) {
				continue
			}
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartTime.Before(out[b].StartTime) })
	return out, nil
}

// Stats aggregates the sessions started within period (week, month or year)
// before now.
func (t *Tracker) Stats(ctx context.Context, userID, period string, now time.Time) (domain.PomodoroStats, error) {
	all, err := t.repo.List(ctx, userID)
	if err != nil {
		return domain.PomodoroStats{}, err
	}
	since := now.Add(-domain.StatsWindow(period))
	recent := make([]domain.PomodoroSession, 0, len(all))
	for _, s := range all {
		if !s.StartTime.Before(since) {
			recent = append(recent, s)
		}
	}
	return domain.SummarizeSessions(recent), nil
}
