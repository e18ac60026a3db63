package cron

import (
	"context"
	"errors"
	"fmt"
)

// Job is a periodic sweep. Run reports how many rows it touched so the
// service can export a per-job throughput counter.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Registry is the ordered set of sweeps a cycle executes. Names label metrics
// and log lines, so they must be unique.
type Registry struct {
	order []Job
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register appends jobs in order. It stops at the first nil job or repeated
// name and leaves the earlier ones registered.
func (r *Registry) Register(jobs ...Job) error {
	for _, job := range jobs {
		if job == nil {
			return errors.New("cron: nil job")
		}
		name := job.Name()
		if name == "" {
			return errors.New("cron: job name is empty")
		}
		if _, dup := r.names[name]; dup {
			return fmt.Errorf("cron: job %q registered twice", name)
		}
		r.names[name] = struct{}{}
		r.order = append(r.order, job)
	}
	return nil
}

// Jobs returns a snapshot; callers may reorder or nil it out freely.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
