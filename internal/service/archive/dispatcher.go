package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/services"
)

// ErrDispatcherClosed is returned by Submit after Shutdown has begun.
var ErrDispatcherClosed = fmt.Errorf("%w: processor dispatcher is shut down", domain.ErrUnavailable)

// Dispatcher runs processor jobs in the background with bounded
// concurrency. Runs for different uploads are independent.
type Dispatcher struct {
	processor services.LetterProcessor
	sem       chan struct{}
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher that runs at most maxConcurrent jobs at once
func NewDispatcher(processor services.LetterProcessor, maxConcurrent int, logger *slog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		processor: processor,
		sem:       make(chan struct{}, maxConcurrent),
		logger:    logger,
	}
}

// Submit validates the upload ID and queues the run. It returns as soon as
// the run is queued.
func (d *Dispatcher) Submit(req services.ProcessRequest) error {
	if err := ValidateUploadID(req.UploadID); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("processor panicked", "upload_id", req.UploadID, "panic", r)
			}
		}()

		if err := d.processor.Process(context.Background(), req); err != nil {
			d.logger.Error("processor run failed", "upload_id", req.UploadID, "error", err)
		}
	}()

	d.logger.Debug("processor run queued", "upload_id", req.UploadID)
	return nil
}

// Shutdown stops accepting runs and waits for queued ones to finish or for
// ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
