package report

import (
	"context"
	"log"
	"time"

	"a55pay-sdk/queue"
)

// Enqueuer is the part of the job queue the reporter needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
}

// QueueReporter pushes every report as a job for the report worker. When the
// queue is unavailable the report is logged instead of lost.
type QueueReporter struct {
	queue   Enqueuer
	timeout time.Duration
	// Base fields are merged into every report (flow id, session id).
	Base     Fields
	fallback LogReporter
}

func NewQueueReporter(q Enqueuer, base Fields) *QueueReporter {
	return &QueueReporter{queue: q, timeout: 3 * time.Second, Base: base}
}

// With returns a reporter sharing the queue whose base fields are extended
// with fields.
func (r *QueueReporter) With(fields Fields) *QueueReporter {
	return &QueueReporter{queue: r.queue, timeout: r.timeout, Base: r.merge(fields)}
}

func (r *QueueReporter) Report(event string, fields Fields) {
	data := r.merge(fields)
	data["event"] = event
	if err := r.enqueue(queue.JobTypeFlowEvent, data); err != nil {
		log.Printf("Warning: failed to enqueue report %s: %v", event, err)
		r.fallback.Report(event, fields)
	}
}

func (r *QueueReporter) ReportError(err error, fields Fields) {
	data := r.merge(fields)
	data["event"] = "error"
	data["error_kind"] = Kind(err)
	data["error"] = err.Error()
	if qerr := r.enqueue(queue.JobTypeFlowError, data); qerr != nil {
		log.Printf("Warning: failed to enqueue error report: %v", qerr)
		r.fallback.ReportError(err, fields)
	}
}

func (r *QueueReporter) enqueue(jobType queue.JobType, data map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.queue.Enqueue(ctx, jobType, data)
}

func (r *QueueReporter) merge(fields Fields) map[string]interface{} {
	data := make(map[string]interface{}, len(r.Base)+len(fields)+1)
	for k, v := range r.Base {
		data[k] = v
	}
	for k, v := range fields {
		data[k] = v
	}
	return data
}
