package manager

import (
	"testing"

	domain "github.com/promptgate/gateway/internal/domain/manager"
)

func TestCreate_RejectsSelfReference(t *testing.T) {
	m := New(nil)
	err := m.Create(domain.EntryKindPrompt, "greeter", "writing", "Hello {{ref:greeter}}")
	if err == nil {
		t.Fatal("expected a self-reference error")
	}
}

func TestCreate_RejectsDanglingReference(t *testing.T) {
	m := New(nil)
	err := m.Create(domain.EntryKindPrompt, "summarize", "writing", "See {{ref:ghost}} for style.")
	if err == nil {
		t.Fatal("expected a dangling-reference error")
	}
}

func TestCreate_RejectsCircularReference(t *testing.T) {
	m := New(nil)
	if err := m.Create(domain.EntryKindPrompt, "a", "writing", "start"); err != nil {
		t.Fatalf("unexpected error creating a: %v", err)
	}
	if err := m.Create(domain.EntryKindPrompt, "b", "writing", "calls {{ref:a}}"); err != nil {
		t.Fatalf("unexpected error creating b: %v", err)
	}
	if err := m.Create(domain.EntryKindPrompt, "c", "writing", "calls {{ref:b}}"); err != nil {
		t.Fatalf("unexpected error creating c: %v", err)
	}

	if err := m.Update(domain.EntryKindPrompt, "a", "calls {{ref:c}}"); err == nil {
		t.Fatal("expected a circular-reference error for a -> c -> b -> a")
	}
}

func TestCreate_AllowsValidForwardReference(t *testing.T) {
	m := New(nil)
	if err := m.Create(domain.EntryKindPrompt, "base", "writing", "the base text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Create(domain.EntryKindPrompt, "wrapper", "writing", "wraps {{ref:base}}"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdate_AppendsHistoryAndRollbackRestoresIt(t *testing.T) {
	m := New(nil)
	if err := m.Create(domain.EntryKindPrompt, "x", "writing", "v1 body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Update(domain.EntryKindPrompt, "x", "v2 body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Update(domain.EntryKindPrompt, "x", "v3 body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := m.History(domain.EntryKindPrompt, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 retained versions, got %d", len(history))
	}

	if err := m.Rollback(domain.EntryKindPrompt, "x", 1, false); err == nil {
		t.Fatal("expected rollback without confirm=true to fail")
	}
	if err := m.Rollback(domain.EntryKindPrompt, "x", 1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok := m.Inspect(domain.EntryKindPrompt, "x")
	if !ok || entry.Body != "v1 body" {
		t.Fatalf("expected rollback to restore v1 body, got %+v", entry)
	}
	if entry.Version != 4 {
		t.Errorf("expected rollback to append a new version (4), got %d", entry.Version)
	}
}

func TestCompare_ReturnsBothSnapshots(t *testing.T) {
	m := New(nil)
	_ = m.Create(domain.EntryKindPrompt, "x", "writing", "v1")
	_ = m.Update(domain.EntryKindPrompt, "x", "v2")

	from, to, err := m.Compare(domain.EntryKindPrompt, "x", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from.Body != "v1" || to.Body != "v2" {
		t.Errorf("unexpected compare result: from=%+v to=%+v", from, to)
	}
}

func TestDelete_RemovesEntryAndHistory(t *testing.T) {
	m := New(nil)
	_ = m.Create(domain.EntryKindPrompt, "x", "writing", "body")
	if err := m.Delete(domain.EntryKindPrompt, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.Inspect(domain.EntryKindPrompt, "x"); ok {
		t.Error("expected entry to be gone after delete")
	}
	if _, err := m.History(domain.EntryKindPrompt, "x"); err == nil {
		t.Error("expected history lookup to fail after delete")
	}
}

func TestList_SortedAndScopedByKind(t *testing.T) {
	m := New(nil)
	_ = m.Create(domain.EntryKindPrompt, "zeta", "writing", "z")
	_ = m.Create(domain.EntryKindPrompt, "alpha", "writing", "a")
	_ = m.Create(domain.EntryKindGate, "accuracy", "", "gate body")

	prompts := m.List(domain.EntryKindPrompt)
	if len(prompts) != 2 || prompts[0] != "alpha" || prompts[1] != "zeta" {
		t.Errorf("expected sorted [alpha zeta], got %v", prompts)
	}
	gates := m.List(domain.EntryKindGate)
	if len(gates) != 1 || gates[0] != "accuracy" {
		t.Errorf("expected [accuracy], got %v", gates)
	}
}
