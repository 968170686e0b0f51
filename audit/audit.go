// Package audit records the outcome of every master update so that operators
// can check the row counts of each run after the fact.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nemo-facility/nemo-app-drive/merge"
)

const (
	StatusOk      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run is the audit record of a single merge-and-persist cycle.
type Run struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Command  string
	Master   string
	Window   string
	Summary  merge.Summary
	Fallback bool
	Status   string
	Error    string
}

func NewRun(command, master string, started time.Time) Run {
	return Run{
		ID:      uuid.New(),
		Started: started,
		Command: command,
		Master:  master,
		Status:  StatusOk,
	}
}

func (r *Run) Fail(err error) {
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

func (r Run) String() string {
	return fmt.Sprintf("%v  %-14v %-8v %v  %v", r.Started.Format("2006-01-02 15:04:05"), r.Command, r.Status, r.Master, r.Summary)
}

type Recorder interface {
	Record(ctx context.Context, run Run) error
}

// Recorders fans a run out to every recorder, returning the combined errors.
type Recorders []Recorder

func (rr Recorders) Record(ctx context.Context, run Run) error {
	var errs []error

	for _, r := range rr {
		if r != nil {
			if err := r.Record(ctx, run); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Memory keeps runs in memory. Used for dry runs and tests.
type Memory struct {
	Runs []Run
}

func (m *Memory) Record(ctx context.Context, run Run) error {
	m.Runs = append(m.Runs, run)

	return nil
}
