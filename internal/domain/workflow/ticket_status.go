package workflow

// TicketStatus is the ticket lifecycle state. DONE is terminal.
type TicketStatus string

const (
	TicketUnderReview TicketStatus = "under_review"
	TicketNew         TicketStatus = "new"
	TicketAssigned    TicketStatus = "assigned"
	TicketInProgress  TicketStatus = "in_progress"
	TicketWaitingQC   TicketStatus = "waiting_qc"
	TicketRework      TicketStatus = "rework"
	TicketDone        TicketStatus = "done"
)

// TicketAction names a guarded edge of the ticket state machine. Every action
// leaves exactly one audit transition row.
type TicketAction string

const (
	ActionCreate        TicketAction = "create"
	ActionApproveReview TicketAction = "approve_review"
	ActionAssign        TicketAction = "assign"
	ActionStart         TicketAction = "start"
	ActionToWaitingQC   TicketAction = "to_waiting_qc"
	ActionQCPass        TicketAction = "qc_pass"
	ActionQCFail        TicketAction = "qc_fail"
)

type ticketEdge struct {
	from map[TicketStatus]struct{}
	to   TicketStatus
}

var ticketEdges = map[TicketAction]ticketEdge{
	ActionApproveReview: {
		from: statusSet(TicketUnderReview),
		to:   TicketNew,
	},
	ActionAssign: {
		// Re-assign before work starts is allowed; past-review is required.
		from: statusSet(TicketNew, TicketAssigned),
		to:   TicketAssigned,
	},
	ActionStart: {
		from: statusSet(TicketAssigned, TicketRework),
		to:   TicketInProgress,
	},
	ActionToWaitingQC: {
		from: statusSet(TicketInProgress),
		to:   TicketWaitingQC,
	},
	ActionQCPass: {
		from: statusSet(TicketWaitingQC),
		to:   TicketDone,
	},
	ActionQCFail: {
		from: statusSet(TicketWaitingQC),
		to:   TicketRework,
	},
}

// ActiveTicketStatuses are the statuses that count against the
// one-active-ticket-per-inventory-item invariant.
func ActiveTicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketUnderReview,
		TicketNew,
		TicketAssigned,
		TicketInProgress,
		TicketWaitingQC,
		TicketRework,
	}
}

func (s TicketStatus) IsActive() bool {
	return s != TicketDone && s != ""
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketDone
}

// NextTicketStatus validates the edge and returns the target status.
func NextTicketStatus(action TicketAction, from TicketStatus) (TicketStatus, error) {
	edge, ok := ticketEdges[action]
	if !ok {
		return "", Validationf("unknown ticket action %q", action)
	}
	if _, ok := edge.from[from]; !ok {
		return "", Validationf("ticket action %q is not allowed from status %q", action, from)
	}
	return edge.to, nil
}

func statusSet(statuses ...TicketStatus) map[TicketStatus]struct{} {
	set := make(map[TicketStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}
