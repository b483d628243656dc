package workflow

// SessionStatus is the work-session timer state. STOPPED is terminal and
// freezes the accumulated active seconds.
type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionPaused  SessionStatus = "paused"
	SessionStopped SessionStatus = "stopped"
)

// SessionAction names a work-session timer edge.
type SessionAction string

const (
	SessionActionStart      SessionAction = "start"
	SessionActionPause      SessionAction = "pause"
	SessionActionResume     SessionAction = "resume"
	SessionActionAutoResume SessionAction = "auto_resume"
	SessionActionStop       SessionAction = "stop"
)

type sessionEdge struct {
	from map[SessionStatus]struct{}
	to   SessionStatus
}

var sessionEdges = map[SessionAction]sessionEdge{
	SessionActionPause: {
		from: sessionSet(SessionRunning),
		to:   SessionPaused,
	},
	SessionActionResume: {
		from: sessionSet(SessionPaused),
		to:   SessionRunning,
	},
	SessionActionAutoResume: {
		from: sessionSet(SessionPaused),
		to:   SessionRunning,
	},
	SessionActionStop: {
		from: sessionSet(SessionRunning, SessionPaused),
		to:   SessionStopped,
	},
}

// IsOpen reports whether the session still holds the per-ticket and
// per-technician open-session slot.
func (s SessionStatus) IsOpen() bool {
	return s == SessionRunning || s == SessionPaused
}

// NextSessionStatus validates the edge and returns the target status.
func NextSessionStatus(action SessionAction, from SessionStatus) (SessionStatus, error) {
	edge, ok := sessionEdges[action]
	if !ok {
		return "", Validationf("unknown work session action %q", action)
	}
	if _, ok := edge.from[from]; !ok {
		return "", Validationf("work session action %q is not allowed from status %q", action, from)
	}
	return edge.to, nil
}

func sessionSet(statuses ...SessionStatus) map[SessionStatus]struct{} {
	set := make(map[SessionStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}
