package workflow

import "testing"

func TestNextTicketStatusEdges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		action TicketAction
		from   TicketStatus
		want   TicketStatus
	}{
		{ActionApproveReview, TicketUnderReview, TicketNew},
		{ActionAssign, TicketNew, TicketAssigned},
		{ActionAssign, TicketAssigned, TicketAssigned},
		{ActionStart, TicketAssigned, TicketInProgress},
		{ActionStart, TicketRework, TicketInProgress},
		{ActionToWaitingQC, TicketInProgress, TicketWaitingQC},
		{ActionQCPass, TicketWaitingQC, TicketDone},
		{ActionQCFail, TicketWaitingQC, TicketRework},
	}
	for _, tc := range cases {
		got, err := NextTicketStatus(tc.action, tc.from)
		if err != nil {
			t.Fatalf("NextTicketStatus(%s, %s) error = %v", tc.action, tc.from, err)
		}
		if got != tc.want {
			t.Fatalf("NextTicketStatus(%s, %s) = %s, want %s", tc.action, tc.from, got, tc.want)
		}
	}
}

func TestNextTicketStatusRejectsIllegalEdges(t *testing.T) {
	t.Parallel()

	if _, err := NextTicketStatus(ActionQCPass, TicketInProgress); !IsValidation(err) {
		t.Fatalf("qc_pass from in_progress error = %v, want validation", err)
	}
	if _, err := NextTicketStatus(ActionStart, TicketDone); !IsValidation(err) {
		t.Fatalf("start from done error = %v, want validation", err)
	}
	if _, err := NextTicketStatus(ActionAssign, TicketInProgress); !IsValidation(err) {
		t.Fatalf("assign from in_progress error = %v, want validation", err)
	}
	if _, err := NextTicketStatus("explode", TicketNew); !IsValidation(err) {
		t.Fatalf("unknown action error = %v, want validation", err)
	}
}

func TestTicketStatusTerminal(t *testing.T) {
	t.Parallel()

	if !TicketDone.IsTerminal() {
		t.Fatal("done must be terminal")
	}
	if TicketDone.IsActive() {
		t.Fatal("done must not be active")
	}
	for _, status := range ActiveTicketStatuses() {
		if !status.IsActive() {
			t.Fatalf("status %s must be active", status)
		}
	}
}

func TestNextSessionStatusEdges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		action SessionAction
		from   SessionStatus
		want   SessionStatus
	}{
		{SessionActionPause, SessionRunning, SessionPaused},
		{SessionActionResume, SessionPaused, SessionRunning},
		{SessionActionAutoResume, SessionPaused, SessionRunning},
		{SessionActionStop, SessionRunning, SessionStopped},
		{SessionActionStop, SessionPaused, SessionStopped},
	}
	for _, tc := range cases {
		got, err := NextSessionStatus(tc.action, tc.from)
		if err != nil {
			t.Fatalf("NextSessionStatus(%s, %s) error = %v", tc.action, tc.from, err)
		}
		if got != tc.want {
			t.Fatalf("NextSessionStatus(%s, %s) = %s, want %s", tc.action, tc.from, got, tc.want)
		}
	}

	if _, err := NextSessionStatus(SessionActionPause, SessionPaused); !IsValidation(err) {
		t.Fatalf("pause from paused error = %v, want validation", err)
	}
	if _, err := NextSessionStatus(SessionActionResume, SessionRunning); !IsValidation(err) {
		t.Fatalf("resume from running error = %v, want validation", err)
	}
	if _, err := NextSessionStatus(SessionActionStop, SessionStopped); !IsValidation(err) {
		t.Fatalf("stop from stopped error = %v, want validation", err)
	}
}

func TestSessionStatusIsOpen(t *testing.T) {
	t.Parallel()

	if !SessionRunning.IsOpen() || !SessionPaused.IsOpen() {
		t.Fatal("running and paused must hold the open slot")
	}
	if SessionStopped.IsOpen() {
		t.Fatal("stopped must release the open slot")
	}
}

func TestResolveCapabilities(t *testing.T) {
	t.Parallel()

	caps := ResolveCapabilities([]Role{RoleTechnician, RoleQC})
	if !caps.Has(CapWorkTickets) {
		t.Fatal("technician must keep work_tickets")
	}
	if !caps.Has(CapQCTickets) {
		t.Fatal("qc role must keep qc_tickets")
	}
	if caps.Has(CapManagePayroll) {
		t.Fatal("neither role grants manage_payroll")
	}

	empty := ResolveCapabilities(nil)
	if len(empty) != 0 {
		t.Fatalf("no roles resolved %d capabilities", len(empty))
	}
}

func TestHasRole(t *testing.T) {
	t.Parallel()

	roles := []Role{RoleMaster, RoleManager}
	if !HasRole(roles, RoleManager) {
		t.Fatal("manager role missing")
	}
	if HasRole(roles, RoleTechnician) {
		t.Fatal("technician role must be absent")
	}
}

func TestParseFlagColor(t *testing.T) {
	t.Parallel()

	flag, err := ParseFlagColor(" Black ")
	if err != nil {
		t.Fatalf("ParseFlagColor() error = %v", err)
	}
	if flag != FlagBlack {
		t.Fatalf("ParseFlagColor() = %s, want black", flag)
	}
	if _, err := ParseFlagColor("purple"); !IsValidation(err) {
		t.Fatalf("unknown color error = %v, want validation", err)
	}
}

func TestFlagColorOrdering(t *testing.T) {
	t.Parallel()

	if !FlagBlack.AtLeast(FlagRed) {
		t.Fatal("black must rank at least red")
	}
	if FlagYellow.AtLeast(FlagRed) {
		t.Fatal("yellow must rank below red")
	}

	atLeastBlack := FlagsAtLeast(FlagBlack)
	if len(atLeastBlack) != 1 || atLeastBlack[0] != FlagBlack {
		t.Fatalf("FlagsAtLeast(black) = %v", atLeastBlack)
	}
	if got := len(FlagsAtLeast(FlagGreen)); got != 4 {
		t.Fatalf("FlagsAtLeast(green) len = %d, want 4", got)
	}
}
