package model

import "testing"

func TestDialogStateValid(t *testing.T) {
	for _, s := range []DialogState{StateAdded, StateConfirmed, StateWaitCategory, StateWaitTitle, StateRemoveGoal} {
		if !s.Valid() {
			t.Fatalf("%s must be valid", s)
		}
	}
	if DialogState("sleeping").Valid() {
		t.Fatal("unknown state must be invalid")
	}
}

func TestParticipantVerified(t *testing.T) {
	p := Participant{}
	if p.Verified() || p.Code() != "" {
		t.Fatalf("fresh participant: verified=%v code=%q", p.Verified(), p.Code())
	}
	uid, code := int64(3), "abc"
	p.UserID, p.VerificationCode = &uid, &code
	if !p.Verified() || p.Code() != "abc" {
		t.Fatalf("linked participant: verified=%v code=%q", p.Verified(), p.Code())
	}
}

func TestGoalArchived(t *testing.T) {
	if (Goal{Status: StatusDone}).Archived() {
		t.Fatal("done goal is still active")
	}
	if !(Goal{Status: StatusArchived}).Archived() {
		t.Fatal("archived goal must report archived")
	}
	if RoleWriter.String() != "writer" || Role(9).String() != "unknown" {
		t.Fatal("role names")
	}
}
