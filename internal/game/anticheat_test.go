package game

import "testing"

func switchTab(a *AntiCheat) *Notice {
	a.Hide()
	return a.Show()
}

func TestAntiCheatFlagsAtThreshold(t *testing.T) {
	a := NewAntiCheat(3)
	a.Enable()

	n := switchTab(a)
	if n == nil || n.Kind != NoticeWarning || n.TTL != WarningTTL {
		t.Fatalf("first switch: expected transient warning, got %+v", n)
	}
	n = switchTab(a)
	if n == nil || n.Kind != NoticeWarning {
		t.Fatalf("second switch: expected warning, got %+v", n)
	}
	if a.Suspicious {
		t.Fatal("should not be suspicious below threshold")
	}

	n = switchTab(a)
	if n == nil || n.Kind != NoticeSuspicious || n.TTL != 0 {
		t.Fatalf("third switch: expected sticky suspicious notice, got %+v", n)
	}
	if !a.Suspicious || a.Switches != 3 {
		t.Fatalf("expected suspicious after 3 switches, got suspicious=%v switches=%d", a.Suspicious, a.Switches)
	}

	// further switches keep the flag but do not repeat the notice
	if n := switchTab(a); n != nil {
		t.Fatalf("expected no further notice, got %+v", n)
	}
	if !a.Suspicious {
		t.Fatal("suspicion must persist for the round")
	}
}

func TestAntiCheatWarningsAreDistinct(t *testing.T) {
	a := NewAntiCheat(5)
	a.Enable()

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		n := switchTab(a)
		if n == nil {
			t.Fatalf("switch %d: expected a warning", i+1)
		}
		if seen[n.Message] {
			t.Fatalf("duplicate warning text %q", n.Message)
		}
		seen[n.Message] = true
	}
	if len(a.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %d", len(a.Warnings))
	}
}

func TestAntiCheatIgnoresWhenDisabled(t *testing.T) {
	a := NewAntiCheat(3)
	for i := 0; i < 5; i++ {
		switchTab(a)
	}
	if a.Switches != 0 || a.Suspicious {
		t.Fatalf("disabled tracker counted switches: %+v", a)
	}
}

func TestAntiCheatHideTwiceCountsOnce(t *testing.T) {
	a := NewAntiCheat(3)
	a.Enable()
	a.Hide()
	a.Hide()
	if a.Switches != 1 {
		t.Fatalf("expected 1 switch, got %d", a.Switches)
	}
	if n := a.Show(); n == nil {
		t.Fatal("expected warning on return")
	}
	if n := a.Show(); n != nil {
		t.Fatal("show without hide must not notify")
	}
}

func TestAntiCheatReset(t *testing.T) {
	a := NewAntiCheat(3)
	a.Enable()
	for i := 0; i < 3; i++ {
		switchTab(a)
	}
	a.Reset()
	if a.Switches != 0 || a.Suspicious || len(a.Warnings) != 0 {
		t.Fatalf("reset left state behind: %+v", a)
	}

	// warnings restart after a reset
	if n := switchTab(a); n == nil || n.Kind != NoticeWarning {
		t.Fatalf("expected warning after reset, got %+v", n)
	}
}

func TestAntiCheatDismiss(t *testing.T) {
	a := NewAntiCheat(3)
	a.Enable()
	n := switchTab(a)
	if !a.Dismiss(n.Message) {
		t.Fatal("expected warning to be dismissed")
	}
	if len(a.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", a.Warnings)
	}
	if a.Dismiss(n.Message) {
		t.Fatal("second dismiss should report nothing removed")
	}
}
