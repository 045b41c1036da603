package fetchstore

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/jpalmerr/fetchstore/internal/transport"
)

// step is what the driver does after an attempt.
type step int

const (
	stepSettled step = iota // outcome recorded and published
	stepRestart             // refetch arrived mid-attempt; outcome discarded
	stepStop                // store aborted
)

// fetchOutcome carries a transport result back to the driver.
type fetchOutcome struct {
	resp transport.Response
	err  error
}

// run is the driver goroutine. It owns every state transition after
// construction, so attempts never overlap and notifications are sequential.
func (s *Store[T]) run() {
	defer close(s.done)
	defer s.client.Close()

	s.sequence()

	for {
		select {
		case <-s.ctx.Done():
			// parent cancellation lands here; Abort is idempotent
			s.Abort()
			return
		case <-s.refetch:
			s.restart()
			s.sequence()
		}
	}
}

// sequence runs attempts until one succeeds, retries are exhausted, or the
// store is aborted. A refetch during an attempt or a retry delay starts the
// sequence over.
func (s *Store[T]) sequence() {
	for {
		next, err := s.attempt()
		switch next {
		case stepStop:
			return
		case stepRestart:
			continue
		}

		if err == nil {
			return
		}

		s.mu.Lock()
		retrying := s.phase == PhaseRetrying
		s.mu.Unlock()
		if !retrying {
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-s.refetch:
			s.restart()
		case <-s.clock.After(s.retryDelay):
		}
	}
}

// restart consumes a queued refetch: the retry budget starts over.
func (s *Store[T]) restart() {
	s.mu.Lock()
	s.pendingRefetch = false
	s.retryCount = 0
	s.openSettledLocked()
	s.mu.Unlock()

	s.logger.Debug("refetch started")
}

// attempt performs one request/response cycle and settles its outcome.
func (s *Store[T]) attempt() (step, error) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return stepStop, nil
	}
	// fresh cancellation handle per attempt
	attemptCtx, cancel := context.WithCancel(s.ctx)
	s.cancelAttempt = cancel
	s.phase = PhaseAttempting
	s.state.Loading = true
	s.state.Error = nil
	attemptNum := s.retryCount + 1
	s.mu.Unlock()
	defer cancel()

	s.logger.Debug("attempt started", "attempt", attemptNum)
	s.notify()

	outcomes := make(chan fetchOutcome, 1)
	go func() {
		resp, err := s.client.Fetch(attemptCtx, s.request, s.timeout)
		outcomes <- fetchOutcome{resp: resp, err: err}
	}()

	var out fetchOutcome
	select {
	case <-s.ctx.Done():
		return stepStop, nil
	case <-s.refetch:
		s.restart()
		return stepRestart, nil
	case out = <-outcomes:
	}

	results, err := s.interpret(out)
	return s.settle(results, err, attemptNum, out.resp), err
}

// interpret turns a transport outcome into results or a typed error.
func (s *Store[T]) interpret(out fetchOutcome) (T, error) {
	var zero T

	if out.err != nil {
		return zero, &TransportError{URL: s.url, Err: out.err}
	}
	if !out.resp.OK() {
		return zero, &HTTPStatusError{URL: s.url, StatusCode: out.resp.StatusCode}
	}

	decoded, err := s.decode(out.resp.ContentType, out.resp.Body)
	if err != nil {
		return zero, &DecodeError{URL: s.url, ContentType: out.resp.ContentType, Err: err}
	}

	results, err := s.safeTransform(decoded)
	if err != nil {
		return zero, &DecodeError{URL: s.url, ContentType: out.resp.ContentType, Err: err}
	}
	return results, nil
}

// safeTransform applies the transform with panic recovery.
// If the transform panics, it logs the stack with a correlation ID and
// returns an error containing the ID.
func (s *Store[T]) safeTransform(v T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("transform panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("transform panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.transform(v), nil
}

// settle records the outcome of an attempt and publishes it.
//
// Every attempt, retried or not, ends with loading=false and a notification;
// a failed attempt also reports its error once. Outcomes that race with an
// abort are dropped without touching the state, and an abort that lands
// after the state was recorded still suppresses the error callback.
func (s *Store[T]) settle(results T, err error, attemptNum int, resp transport.Response) step {
	s.mu.Lock()
	if s.aborted || s.ctx.Err() != nil {
		s.mu.Unlock()
		return stepStop
	}
	s.cancelAttempt = nil
	s.state.Loading = false

	if err == nil {
		s.state.Results = &results
		s.state.Error = nil
		s.phase = PhaseSucceeded
	} else {
		s.state.Error = err
		if s.retryCount < s.retries {
			s.retryCount++
			s.phase = PhaseRetrying
		} else {
			s.phase = PhaseFailed
		}
	}
	phase := s.phase
	s.mu.Unlock()

	logAttrs := []any{
		"attempt", attemptNum,
		"phase", phase.String(),
		"request_id", resp.RequestID,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	}
	if err != nil {
		s.logger.Warn("attempt failed", append(logAttrs, "error", err.Error())...)
		if phase == PhaseRetrying {
			s.logger.Info("retry scheduled", "attempt", attemptNum+1, "delay", s.retryDelay.String())
		}
		s.mu.Lock()
		aborted := s.aborted
		s.mu.Unlock()
		if !aborted {
			s.reportError(err)
		}
	} else {
		s.logger.Debug("attempt succeeded", logAttrs...)
	}

	s.notify()

	// release Wait only once subscribers have seen the outcome
	if phase.Terminal() {
		s.mu.Lock()
		s.closeSettledLocked(false)
		s.mu.Unlock()
	}
	return stepSettled
}
