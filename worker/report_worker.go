package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"a55pay-sdk/database"
	"a55pay-sdk/queue"
)

// JobQueue is the part of queue.Queue the worker drives.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, jobErr error) error
	ProcessDelayedJobs(ctx context.Context) error
}

// EventStore persists flow reports.
type EventStore interface {
	SaveFlowEvent(ctx context.Context, ev database.FlowEvent) error
}

// Worker drains flow report jobs into the event store.
type Worker struct {
	queue    JobQueue
	store    EventStore
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	isRunning bool

	// DelayedInterval is how often due retries are moved back to the queue.
	DelayedInterval time.Duration
}

func NewWorker(q JobQueue, store EventStore) *Worker {
	return &Worker{
		queue:           q,
		store:           store,
		shutdown:        make(chan struct{}),
		DelayedInterval: 10 * time.Second,
	}
}

// Start begins processing jobs
func (w *Worker) Start(concurrency int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return
	}
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.wg.Add(1)
	go w.pumpDelayed()

	log.Printf("Started %d report worker goroutines", concurrency)
}

// Stop signals the goroutines and waits for the current jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	log.Println("Stopping report worker...")
	close(w.shutdown)
	w.wg.Wait()
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		cancel()

		if err != nil {
			log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
			w.sleep(time.Second)
			continue
		}
		if job == nil {
			w.sleep(100 * time.Millisecond)
			continue
		}

		w.handle(workerID, job)
	}
}

func (w *Worker) handle(workerID int, job *queue.Job) {
	if jobErr := w.ProcessJob(job); jobErr != nil {
		log.Printf("Worker %d: Error processing job %s: %v", workerID, job.ID, jobErr)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		failErr := w.queue.FailJob(ctx, job, jobErr)
		cancel()
		if failErr != nil {
			log.Printf("Worker %d: Error marking job %s as failed: %v", workerID, job.ID, failErr)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	completeErr := w.queue.CompleteJob(ctx, job)
	cancel()
	if completeErr != nil {
		log.Printf("Worker %d: Error marking job %s as complete: %v", workerID, job.ID, completeErr)
	}
}

// ProcessJob stores one report job.
func (w *Worker) ProcessJob(job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeFlowEvent, queue.JobTypeFlowError:
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	ev := EventFromJob(job)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.store.SaveFlowEvent(ctx, ev)
}

// EventFromJob lifts the well-known report keys into columns and keeps the
// rest as free-form fields.
func EventFromJob(job *queue.Job) database.FlowEvent {
	ev := database.FlowEvent{
		JobID:     job.ID,
		CreatedAt: job.CreatedAt,
		Fields:    map[string]interface{}{},
	}
	for k, v := range job.Data {
		switch k {
		case "flow_id":
			ev.FlowID = stringValue(v)
		case "flow":
			ev.Flow = stringValue(v)
		case "charge_uuid":
			ev.ChargeUUID = stringValue(v)
		case "event":
			ev.Event = stringValue(v)
		case "error_kind":
			ev.ErrorKind = stringValue(v)
		case "error":
			ev.Error = stringValue(v)
		case "last_error", "all_retries_exhausted":
			// bookkeeping do queue
		default:
			ev.Fields[k] = v
		}
	}
	if ev.Event == "" && job.Type == queue.JobTypeFlowError {
		ev.Event = "error"
	}
	return ev
}

func (w *Worker) pumpDelayed() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.DelayedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				log.Printf("Error processing delayed jobs: %v", err)
			}
			cancel()
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
