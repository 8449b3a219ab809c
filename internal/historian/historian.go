// internal/historian/historian.go drains queued room events into the database in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/zing/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued records. ok is false when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (rec models.EventRecord, ok bool, err error)
}

// Writer persists a batch. Writes must tolerate records it has already stored.
type Writer interface {
	InsertEvents(ctx context.Context, recs []models.EventRecord) error
}

type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	Logger     *logrus.Entry
}

// Service encapsulates the queue and DB logic for capturing room events.
type Service struct {
	src        Source
	dst        Writer
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	log        *logrus.Entry

	batchMu sync.Mutex
	batch   []models.EventRecord
}

func New(src Source, dst Writer, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		src:        src,
		dst:        dst,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		popTimeout: opts.PopTimeout,
		log:        opts.Logger.WithField("component", "historian"),
		batch:      make([]models.EventRecord, 0, opts.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes whatever is still buffered.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	err := g.Wait()

	// final flush gets its own deadline since ctx is already done
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian shutting down")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readLoop continuously pops records from the queue.
func (s *Service) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok, err := s.src.Pop(ctx, s.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Warn("pop failed")
			continue
		}
		if !ok {
			continue
		}
		if s.append(rec) {
			s.flush(ctx)
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// append buffers rec and reports whether the batch is full.
func (s *Service) append(rec models.EventRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.batchSize
}

// flush writes the current batch in one call. A failed batch is kept for the next flush.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.EventRecord, len(s.batch))
	copy(pending, s.batch)

	if err := s.dst.InsertEvents(ctx, pending); err != nil {
		s.log.WithError(err).Errorf("failed to flush %d events, will retry", len(pending))
		return
	}
	s.batch = s.batch[:0]
	s.log.Debugf("flushed %d events to DB", len(pending))
}
