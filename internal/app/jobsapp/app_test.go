package jobsapp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	app := &App{logger: zap.NewNop()}
	if err := app.schedule("not a schedule", &countingJob{}); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestRunExecutesJobsOnStart(t *testing.T) {
	job := &countingJob{err: errors.New("boom")}
	app := &App{logger: zap.NewNop()}
	if err := app.schedule("@every 1h", job); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.runs.Load() != 1 {
		t.Fatalf("unexpected run count: %d", job.runs.Load())
	}
}
