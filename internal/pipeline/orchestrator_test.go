package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgallion1/bookchunk/internal/chunker"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/metrics"
)

func waitDone(t *testing.T, o *Orchestrator, id string) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := o.GetJob(id).Snapshot(); snap.Done() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return JobSnapshot{}
}

func TestOrchestrator_ProcessesSubmittedJobs(t *testing.T) {
	m := metrics.New()
	o := NewOrchestrator(
		Options{Workers: 2, QueueSize: 4, JobTTL: time.Hour},
		Deps{Embedder: &embed.Noop{Dimension: 2}, Store: memoryStore(t), Metrics: m},
		Settings{Chunker: chunker.DefaultConfig()},
		discardLogger(),
	)
	o.Start(context.Background())
	defer o.Stop()

	a, _ := NewJob(Input{Filename: "a.txt", Data: []byte("Maps show places on the earth")})
	b, _ := NewJob(Input{Filename: "b.txt", Data: []byte("Climate is the average weather")})
	for _, job := range []*Job{a, b} {
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	for _, job := range []*Job{a, b} {
		snap := waitDone(t, o, job.ID)
		if snap.Status != StatusCompleted {
			t.Errorf("expected %s to complete, got %q (errors %v)", job.Filename, snap.Status, snap.Progress.Errors)
		}
	}
	if got := testutil.ToFloat64(m.Jobs.WithLabelValues(string(StatusCompleted))); got != 2 {
		t.Errorf("expected 2 completed jobs counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.Chunks); got != 2 {
		t.Errorf("expected 2 chunks counted, got %v", got)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	o := NewOrchestrator(Options{Workers: 1, QueueSize: 1}, Deps{}, Settings{}, discardLogger())

	first, _ := NewJob(Input{Filename: "a.txt"})
	second, _ := NewJob(Input{Filename: "b.txt"})
	if err := o.Submit(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if o.GetJob(second.ID).Snapshot().Status != StatusFailed {
		t.Error("expected rejected job to be marked failed")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
