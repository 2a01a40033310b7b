package session

import "testing"

func TestLedgerFinalClearsLive(t *testing.T) {
	l := NewLedger()
	l.RecordInterim("hello")
	l.RecordInterim("hello wor")
	if _, live := l.Snapshot(); live != "hello wor" {
		t.Fatalf("expected live transcript to track last interim, got %q", live)
	}
	if l.Len() != 0 {
		t.Fatalf("interims must not touch the ledger, got %d entries", l.Len())
	}

	entry := l.RecordFinal(0.87, "hello world")
	entries, live := l.Snapshot()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	if live != "" {
		t.Fatalf("expected live transcript cleared after final, got %q", live)
	}
	if entries[0] != entry {
		t.Fatalf("snapshot entry does not match recorded entry")
	}
	if !entry.Final || entry.Text != "hello world" || entry.Confidence != 0.87 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestLedgerOrderAndDistinctIDs(t *testing.T) {
	l := NewLedger()
	first := l.RecordFinal(0.5, "one")
	second := l.RecordFinal(0.9, "two")
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %q", first.ID)
	}
	if first.ID == "" || second.ID == "" {
		t.Fatal("expected non-empty ids")
	}
	entries, _ := l.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "one" || entries[1].Text != "two" {
		t.Fatalf("entries not in arrival order: %+v", entries)
	}
	if entries[0].Confidence != 0.5 || entries[1].Confidence != 0.9 {
		t.Fatalf("confidences not preserved: %+v", entries)
	}

	last, ok := l.Last()
	if !ok || last.ID != second.ID {
		t.Fatalf("expected last entry %q, got %+v", second.ID, last)
	}
}

func TestLedgerSnapshotIsCopy(t *testing.T) {
	l := NewLedger()
	l.RecordFinal(1, "original")
	entries, _ := l.Snapshot()
	entries[0].Text = "mutated"
	fresh, _ := l.Snapshot()
	if fresh[0].Text != "original" {
		t.Fatal("snapshot must not expose internal storage")
	}
}
