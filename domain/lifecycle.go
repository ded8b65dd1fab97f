package domain

// Action is a user or system request to move a task to another status.
type Action string

const (
	// ActionPrimary is the single state-dependent button: start, pause,
	// resume, restart or reschedule.
	ActionPrimary Action = "primary"
	// ActionCheck and ActionUncheck are the completion checkbox.
	ActionCheck   Action = "check"
	ActionUncheck Action = "uncheck"
	ActionCancel  Action = "cancel"
	// ActionExpire is issued by the overdue sweeper, never by a user.
	ActionExpire Action = "expire"
)

var primaryNext = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusPaused,
	StatusPaused:     StatusInProgress,
	StatusCompleted:  StatusPending,
	StatusOverdue:    StatusPending,
}

var primaryLabels = map[Status]string{
	StatusPending:    "start",
	StatusInProgress: "pause",
	StatusPaused:     "resume",
	StatusCompleted:  "restart",
	StatusOverdue:    "reschedule",
}

// userActions are the actions a client may request. ActionExpire is left out.
var userActions = []Action{ActionPrimary, ActionCheck, ActionUncheck, ActionCancel}

var allActions = []Action{ActionPrimary, ActionCheck, ActionUncheck, ActionCancel, ActionExpire}

// NextStatus returns the status a task in current moves to when action is
// applied. Undefined pairs yield a *TransitionError.
func NextStatus(current Status, action Action) (Status, error) {
	switch action {
	case ActionPrimary:
		if next, ok := primaryNext[current]; ok {
			return next, nil
		}
	case ActionCheck:
		switch current {
		case StatusPending, StatusInProgress, StatusPaused, StatusOverdue:
			return StatusCompleted, nil
		}
	case ActionUncheck:
		if current == StatusCompleted {
			return StatusPending, nil
		}
	case ActionCancel:
		if current.Valid() && current != StatusCancelled {
			return StatusCancelled, nil
		}
	case ActionExpire:
		switch current {
		case StatusPending, StatusInProgress, StatusPaused:
			return StatusOverdue, nil
		}
	}
	return current, &TransitionError{From: current, Action: action}
}

// ToggleAction maps the completion checkbox onto check or uncheck.
func ToggleAction(current Status) Action {
	if current == StatusCompleted {
		return ActionUncheck
	}
	return ActionCheck
}

// PrimaryLabel names what the primary action does for a task in status s.
// It returns "" when the primary action is not available.
func PrimaryLabel(s Status) string {
	return primaryLabels[s]
}

// CanTransition reports whether some user action moves a task from one
// status to another. Staying in place is always allowed. Expiry is not a
// user action, so nothing but the sweeper reaches overdue.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, a := range userActions {
		if next, err := NextStatus(from, a); err == nil && next == to {
			return true
		}
	}
	return false
}

// CanExpire reports whether the sweeper may move a task from one status to
// another.
func CanExpire(from, to Status) bool {
	next, err := NextStatus(from, ActionExpire)
	return err == nil && next == to
}

// ParseAction validates a raw action name.
func ParseAction(raw string) (Action, bool) {
	for _, a := range allActions {
		if string(a) == raw {
			return a, true
		}
	}
	return "", false
}
