package domain

import "time"

// SessionType tells focus sessions from breaks.
type SessionType string

const (
	SessionWork  SessionType = "work"
	SessionBreak SessionType = "break"
)

func (t SessionType) Valid() bool {
	return t == SessionWork || t == SessionBreak
}

// PomodoroSession is one timed focus or break interval. Duration is the
// planned length in minutes.
type PomodoroSession struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	TaskID    string      `json:"taskId,omitempty"`
	Type      SessionType `json:"type"`
	Duration  int         `json:"duration"`
	StartTime time.Time   `json:"startTime"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	Completed bool        `json:"completed"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SessionStart is the request to start a session. Type defaults to work.
type SessionStart struct {
	TaskID   string      `json:"taskId,omitempty"`
	Duration int         `json:"duration"`
	Type     SessionType `json:"type,omitempty"`
}

func (s SessionStart) Validate() error {
	if s.Duration <= 0 {
		return &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if s.Type != "" && !s.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be work or break"}
	}
	return nil
}

// PomodoroStats aggregates sessions. Times are in minutes.
type PomodoroStats struct {
	TotalSessions        int     `json:"totalSessions"`
	TotalWorkTime        int     `json:"totalWorkTime"`
	TotalBreakTime       int     `json:"totalBreakTime"`
	AverageSessionLength float64 `json:"averageSessionLength"`
	CompletedSessions    int     `json:"completedSessions"`
	IncompleteSessions   int     `json:"incompleteSessions"`
}

// StatsWindow maps a period name to its lookback. Unknown names fall back
// to a week.
func StatsWindow(period string) time.Duration {
	switch period {
	case "month":
		return 30 * 24 * time.Hour
	case "year":
		return 365 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

func SummarizeSessions(sessions []PomodoroSession) PomodoroStats {
	st := PomodoroStats{TotalSessions: len(sessions)}
	for _, s := range sessions {
		if s.Completed {
			st.CompletedSessions++
		}
		switch s.Type {
		case SessionWork:
			st.TotalWorkTime += s.Duration
		case SessionBreak:
			st.TotalBreakTime += s.Duration
		}
	}
	st.IncompleteSessions = st.TotalSessions - st.CompletedSessions
	if st.TotalSessions > 0 {
		st.AverageSessionLength = float64(st.TotalWorkTime+st.TotalBreakTime) / float64(st.TotalSessions)
	}
	return st
}
