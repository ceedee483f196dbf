package domain

import "testing"

func TestCanTransitionOnlyForwardOneStep(t *testing.T) {
	allowed := map[[2]IssueStatus]bool{
		{StatusReported, StatusVerified}:   true,
		{StatusVerified, StatusInProgress}: true,
		{StatusInProgress, StatusResolved}: true,
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := allowed[[2]IssueStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionRejectsUnknownStatus(t *testing.T) {
	if CanTransition("CLOSED", StatusResolved) {
		t.Fatal("unknown source status must not transition")
	}
	if CanTransition(StatusInProgress, "DONE") {
		t.Fatal("unknown target status must not be reachable")
	}
}

func TestStatusNext(t *testing.T) {
	tests := []struct {
		from   IssueStatus
		want   IssueStatus
		wantOK bool
	}{
		{StatusReported, StatusVerified, true},
		{StatusVerified, StatusInProgress, true},
		{StatusInProgress, StatusResolved, true},
		{StatusResolved, "", false},
		{"BOGUS", "", false},
	}
	for _, tt := range tests {
		got, ok := tt.from.Next()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Next() = (%q, %v), want (%q, %v)", tt.from, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStatusAtLeastAndTerminal(t *testing.T) {
	if !StatusInProgress.AtLeast(StatusVerified) {
		t.Error("IN_PROGRESS should be at least VERIFIED")
	}
	if StatusReported.AtLeast(StatusVerified) {
		t.Error("REPORTED should not be at least VERIFIED")
	}
	if !StatusResolved.Terminal() || StatusInProgress.Terminal() {
		t.Error("only RESOLVED is terminal")
	}
}

func TestCategoryAndRoleValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("category %s should be valid", c)
		}
	}
	if IssueCategory("Electricity").Valid() {
		t.Error("unexpected category accepted")
	}
	if !RoleAdmin.Valid() || Role("STAFF").Valid() {
		t.Error("role validation mismatch")
	}
}

func TestCallerCapabilities(t *testing.T) {
	admin := Caller{ID: "a-1", Role: RoleAdmin}
	if !admin.IsAdmin() || !admin.Authenticated() {
		t.Fatal("admin caller should be authenticated admin")
	}
	if (Caller{Role: RoleAdmin}).Authenticated() {
		t.Fatal("caller without id must not be authenticated")
	}
}
