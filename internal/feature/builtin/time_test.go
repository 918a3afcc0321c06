package builtin

import (
	"testing"
	"time"
)

func TestTimeFeatureMatches(t *testing.T) {
	f := NewTimeFeature()
	cases := map[string]bool{
		"what time is it":        true,
		"What's the time?":       true,
		"tell me a joke":         false,
	}
	for text, want := range cases {
		if got := f.Matches(text); got != want {
			t.Errorf("Matches(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestTimeFeatureHandleAndExecuteAgree(t *testing.T) {
	fixed := time.Date(2026, 7, 31, 14, 5, 0, 0, time.UTC)
	f := &TimeFeature{now: func() time.Time { return fixed }}

	handled := f.Handle("what time is it")
	executed, err := f.Execute("get_time", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled != executed {
		t.Fatalf("expected Handle and Execute to agree, got %q vs %q", handled, executed)
	}
	if handled != "It's 2:05 PM." {
		t.Fatalf("unexpected formatted time: %q", handled)
	}
}

func TestTimeFeatureExecuteUnknownAction(t *testing.T) {
	f := NewTimeFeature()
	if _, err := f.Execute("bogus", nil); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestTimeFeatureNeverExpectsFollowUp(t *testing.T) {
	f := NewTimeFeature()
	f.Handle("what time is it")
	if f.ExpectsFollowUp() {
		t.Fatal("time feature should never expect a follow-up")
	}
}
