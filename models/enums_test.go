package models

import "testing"

func TestRecordingStatusTransitions(t *testing.T) {
	cases := []struct {
		from RecordingStatus
		to   RecordingStatus
		want bool
	}{
		{RecordingStatusPending, RecordingStatusProcessing, true},
		{RecordingStatusProcessing, RecordingStatusCompleted, true},
		{RecordingStatusProcessing, RecordingStatusFailed, true},
		{RecordingStatusPending, RecordingStatusCompleted, false},
		{RecordingStatusPending, RecordingStatusFailed, false},
		{RecordingStatusCompleted, RecordingStatusProcessing, false},
		{RecordingStatusCompleted, RecordingStatusFailed, false},
		{RecordingStatusFailed, RecordingStatusProcessing, false},
		{RecordingStatusFailed, RecordingStatusCompleted, false},
		{RecordingStatusProcessing, RecordingStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !RecordingStatusCompleted.IsTerminal() || !RecordingStatusFailed.IsTerminal() {
		t.Fatalf("completed and failed must be terminal")
	}
	if RecordingStatusPending.IsTerminal() || RecordingStatusProcessing.IsTerminal() {
		t.Fatalf("pending and processing are not terminal")
	}
}

func TestParseRecordingSource(t *testing.T) {
	if _, err := ParseRecordingSource("video"); err != nil {
		t.Fatalf("video must parse: %v", err)
	}
	if _, err := ParseRecordingSource("replay"); err != nil {
		t.Fatalf("replay must parse: %v", err)
	}
	if _, err := ParseRecordingSource("screenshot"); err == nil {
		t.Fatalf("unknown source type must be rejected")
	}
}

func TestParseRuleOperator(t *testing.T) {
	for _, op := range []string{"=", "!=", "<", "<=", ">", ">=", "contains"} {
		if _, err := ParseRuleOperator(op); err != nil {
			t.Fatalf("operator %q must parse: %v", op, err)
		}
	}
	if _, err := ParseRuleOperator("~="); err == nil {
		t.Fatalf("unknown operator must be rejected")
	}
}
