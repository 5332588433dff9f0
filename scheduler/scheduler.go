/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package scheduler hosts the background timers the completer engine
// needs: one-shot delay timers for the graph package's Delay combinator,
// and any other named Job a caller wants run once on its own trigger.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/reugn/go-quartz/quartz"

	"github.com/opencompleter/completer/logger"
)

// Job will be implemented by any job runner.
type Job interface {
	// ID returns the Job unique identifier
	ID() string
	// Run executes the job
	Run(ctx context.Context) error
}

// Scheduler will be implemented by the scheduler.
type Scheduler interface {
	// Start starts the underlying quartz scheduler.
	Start(ctx context.Context)
	// Stop stops the scheduler, waiting up to its configured timeout for
	// in-flight jobs to finish.
	Stop(ctx context.Context) error
	// AddJob adds a named Job to run once trigger fires. The job id is
	// required to be unique for the lifetime of the scheduler.
	AddJob(ctx context.Context, job Job, trigger quartz.Trigger) error
	// AfterFunc arranges for f to run once, after d has elapsed, and
	// returns a cancel function that prevents that run if it hasn't
	// already fired. It implements graph.DelayScheduler.
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// JobsScheduler implements Scheduler on top of a go-quartz StdScheduler.
type JobsScheduler struct {
	mu          sync.Mutex
	quartz      quartz.Scheduler
	jobs        map[string]Job
	logger      logger.Logger
	stopTimeout time.Duration
	idSeq       int64
}

// enforce a compilation error
var _ Scheduler = (*JobsScheduler)(nil)

// NewJobsScheduler creates a new instance of Scheduler.
func NewJobsScheduler(opts ...Option) *JobsScheduler {
	s := &JobsScheduler{
		jobs:        make(map[string]Job),
		logger:      logger.NewLogger(logger.WithNop()),
		stopTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt.Apply(s)
	}
	s.quartz = quartz.NewStdScheduler(quartz.WithLogger(newLogWrapper(s.logger)))
	return s
}

// Start starts the scheduler and begins running any job whose trigger
// fires.
func (s *JobsScheduler) Start(ctx context.Context) {
	s.quartz.Start(ctx)
}

// Stop shuts down the scheduler gracefully, waiting up to stopTimeout for
// any job currently executing to finish.
func (s *JobsScheduler) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, s.stopTimeout)
	defer cancel()
	s.quartz.Stop()
	s.quartz.Wait(stopCtx)
	return nil
}

// AddJob registers job to run when trigger fires. If a job with the same
// id has already been added it rejects the request.
func (s *JobsScheduler) AddJob(_ context.Context, job Job, trigger quartz.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID()]; ok {
		return fmt.Errorf("job (%s) is already added", job.ID())
	}

	fnJob := quartz.NewFunctionJob(func(ctx context.Context) (struct{}, error) {
		if err := job.Run(ctx); err != nil {
			return struct{}{}, errors.Wrapf(err, "job (%s) failed to run", job.ID())
		}
		return struct{}{}, nil
	})

	detail := quartz.NewJobDetail(fnJob, quartz.NewJobKey(job.ID()))
	if err := s.quartz.ScheduleJob(detail, trigger); err != nil {
		return err
	}

	s.jobs[job.ID()] = job
	return nil
}

// AfterFunc implements graph.DelayScheduler by scheduling f as a one-shot
// quartz job on a synthetic, never-reused job id.
func (s *JobsScheduler) AfterFunc(d time.Duration, f func()) (cancel func()) {
	id := fmt.Sprintf("completer-delay-%d", atomic.AddInt64(&s.idSeq, 1))
	key := quartz.NewJobKey(id)

	job := quartz.NewFunctionJob(func(context.Context) (struct{}, error) {
		f()
		return struct{}{}, nil
	})
	detail := quartz.NewJobDetail(job, key)

	if err := s.quartz.ScheduleJob(detail, quartz.NewRunOnceTrigger(d)); err != nil {
		s.logger.Errorf("scheduler: failed to schedule delay timer %s: %v", id, err)
		return func() {}
	}

	return func() {
		if err := s.quartz.DeleteJob(key); err != nil {
			s.logger.Debugf("scheduler: delay timer %s already fired or was removed: %v", id, err)
		}
	}
}
