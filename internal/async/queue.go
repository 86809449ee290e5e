package async

import (
	"context"
	"time"
)

// Job is the smallest useful unit: one document path to run through the
// pipeline. Extend as needed later (priority, trace, retry).
type Job struct {
	Path        string
	Rescan      bool // process even if the content hash was already seen
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
