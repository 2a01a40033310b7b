package session

import (
	"regexp"
	"testing"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint    { return &u }

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if !cfg.Continuous || !cfg.InterimResults || !cfg.StartOnInit {
		t.Fatalf("unexpected default flags: %+v", cfg)
	}
	if cfg.Language != "en-US" {
		t.Fatalf("expected en-US default, got %q", cfg.Language)
	}
	if cfg.MaxAlternatives != 1 {
		t.Fatalf("expected one alternative by default, got %d", cfg.MaxAlternatives)
	}
	if cfg.Pattern == nil || cfg.Grammar == "" {
		t.Fatal("expected default pattern and grammar")
	}
	if cfg.Observers.OnResult != nil || cfg.Observers.OnError != nil {
		t.Fatal("expected observer slots nil by default")
	}
}

func TestMergeShallow(t *testing.T) {
	base := Defaults()
	pattern := regexp.MustCompile(`stop`)
	merged := base.merge(Overrides{
		Continuous: boolPtr(false),
		Language:   strPtr("de-DE"),
		Pattern:    pattern,
	})

	if merged.Continuous {
		t.Fatal("expected continuous override")
	}
	if merged.Language != "de-DE" {
		t.Fatalf("expected language override, got %q", merged.Language)
	}
	if merged.Pattern != pattern {
		t.Fatal("expected pattern override")
	}
	// absent fields retain previous values
	if merged.InterimResults != base.InterimResults {
		t.Fatal("interim flag must be retained")
	}
	if merged.Grammar != base.Grammar {
		t.Fatal("grammar must be retained")
	}
	if merged.MaxAlternatives != base.MaxAlternatives {
		t.Fatal("max alternatives must be retained")
	}
}

func TestMergeEmptyOverridesKeepsConfig(t *testing.T) {
	base := Defaults()
	merged := base.merge(Overrides{})
	if merged.Continuous != base.Continuous ||
		merged.Language != base.Language ||
		merged.Grammar != base.Grammar ||
		merged.Pattern != base.Pattern ||
		merged.MaxAlternatives != base.MaxAlternatives ||
		merged.StartOnInit != base.StartOnInit {
		t.Fatalf("empty overrides must not change the config: %+v", merged)
	}
}

func TestMergeMaxAlternatives(t *testing.T) {
	merged := Defaults().merge(Overrides{MaxAlternatives: uintPtr(5)})
	if merged.MaxAlternatives != 5 {
		t.Fatalf("expected 5 alternatives, got %d", merged.MaxAlternatives)
	}
}
