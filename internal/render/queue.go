// Package render produces receipts and report files off the checkout path.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueClosed = errors.New("render queue closed")
	ErrQueueFull   = errors.New("render queue full")
)

// Job renders one artifact and returns the path it wrote.
type Job func(ctx context.Context) (string, error)

type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Ticket tracks one submitted job.
type Ticket struct {
	ID   string
	Name string

	job  Job
	done chan struct{}
	path string
	err  error
}

// Done is closed once the job has finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the job finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.path, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Status is a point-in-time view of a ticket.
type Status struct {
	ID    string `json:"job_id"`
	Name  string `json:"name"`
	State State  `json:"state"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

func (t *Ticket) Status() Status {
	s := Status{ID: t.ID, Name: t.Name, State: StatePending}
	select {
	case <-t.done:
		if t.err != nil {
			s.State, s.Error = StateFailed, t.err.Error()
		} else {
			s.State, s.Path = StateDone, t.path
		}
	default:
	}
	return s
}

// keepTickets bounds how many tickets Lookup remembers.
const keepTickets = 512

// Queue runs jobs on a fixed pool of workers fed by a bounded channel.
type Queue struct {
	jobs chan *Ticket
	g    *errgroup.Group
	log  *zap.Logger

	mu      sync.Mutex
	closed  bool
	tickets map[string]*Ticket
	order   []string
}

func NewQueue(workers, size int, log *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	g, ctx := errgroup.WithContext(context.Background())
	q := &Queue{
		jobs:    make(chan *Ticket, size),
		g:       g,
		log:     log,
		tickets: map[string]*Ticket{},
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for t := range q.jobs {
				q.run(ctx, t)
			}
			return nil
		})
	}
	return q
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(name string, fn Job) (*Ticket, error) {
	t := &Ticket{ID: uuid.NewString(), Name: name, job: fn, done: make(chan struct{})}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	select {
	case q.jobs <- t:
	default:
		return nil, ErrQueueFull
	}
	q.tickets[t.ID] = t
	q.order = append(q.order, t.ID)
	if len(q.order) > keepTickets {
		delete(q.tickets, q.order[0])
		q.order = q.order[1:]
	}
	return t, nil
}

func (q *Queue) Lookup(id string) (*Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tickets[id]
	return t, ok
}

// Close stops accepting jobs, drains the queue and waits for the workers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	return q.g.Wait()
}

func (q *Queue) run(ctx context.Context, t *Ticket) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			t.path, t.err = "", fmt.Errorf("render %s panicked: %v", t.Name, r)
			q.log.Error("render job panicked", zap.String("job_id", t.ID), zap.Any("panic", r))
		}
	}()

	t.path, t.err = t.job(ctx)
	if t.err != nil {
		q.log.Warn("render job failed", zap.String("job_id", t.ID), zap.String("name", t.Name), zap.Error(t.err))
		return
	}
	q.log.Info("render job done", zap.String("job_id", t.ID), zap.String("name", t.Name), zap.String("path", t.path))
}
