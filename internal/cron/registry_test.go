package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobsInOrder(t *testing.T) {
	registry := NewRegistry()
	autopay := &stubJob{name: "commission-autopay"}
	retention := &stubJob{name: "outbox-retention"}
	registry.Register(autopay)
	registry.Register(retention)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != autopay || jobs[1] != retention {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryIgnoresDuplicateNamesAndNil(t *testing.T) {
	first := &stubJob{name: "commission-autopay"}
	registry := NewRegistry(first, nil, &stubJob{name: "commission-autopay"})
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
	if registry.Jobs()[0] != first {
		t.Fatal("expected first registration to win")
	}
	if (&Registry{}).Register(&stubJob{name: "zero-value"}) != true {
		t.Fatal("zero-value registry should accept jobs")
	}
}
