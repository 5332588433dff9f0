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

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reugn/go-quartz/quartz"
	"github.com/stretchr/testify/suite"
)

type testJob struct {
	id string
	wg *sync.WaitGroup
}

func (j *testJob) Run(context.Context) error {
	j.wg.Done()
	return nil
}

func (j *testJob) ID() string {
	return j.id
}

type schedulerTestSuite struct {
	suite.Suite
}

const oneSecond = 1*time.Second + 50*time.Millisecond // nolint

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(schedulerTestSuite))
}

func (s *schedulerTestSuite) TestNewScheduler() {
	scheduler := NewJobsScheduler()
	s.Assert().NotNil(scheduler)
}

func (s *schedulerTestSuite) TestStartStopWithNoJobs() {
	ctx := context.TODO()
	scheduler := NewJobsScheduler()
	s.Assert().NotNil(scheduler)
	scheduler.Start(ctx)
	s.Assert().NoError(scheduler.Stop(ctx))
}

func (s *schedulerTestSuite) TestAddJobAfterStopIsRejectedSilentlyByQuartz() {
	// Scheduling against a stopped quartz scheduler does not itself
	// return an error from AddJob; the job simply never runs because its
	// trigger is never polled again, verified by observing the wait
	// group never completes.
	ctx := context.TODO()
	wg := &sync.WaitGroup{}
	wg.Add(1)

	scheduler := NewJobsScheduler()
	scheduler.Start(ctx)
	s.Assert().NoError(scheduler.Stop(ctx))

	job := &testJob{wg: wg, id: "job-x"}
	_ = scheduler.AddJob(ctx, job, quartz.NewRunOnceTrigger(10*time.Millisecond))

	select {
	case <-time.After(oneSecond):
		// no job ran, as expected
	case <-wait(wg):
		s.T().Fatal("expected stopped scheduler to not run any job")
	}
}

func (s *schedulerTestSuite) TestAddJobRunsOnceTriggerFires() {
	ctx := context.TODO()
	wg := &sync.WaitGroup{}
	wg.Add(1)

	scheduler := NewJobsScheduler()
	scheduler.Start(ctx)

	job := &testJob{wg: wg, id: "job-y"}
	err := scheduler.AddJob(ctx, job, quartz.NewRunOnceTrigger(10*time.Millisecond))
	s.Assert().NoError(err)

	select {
	case <-time.After(oneSecond):
		s.T().Fatal("expected job to run")
	case <-wait(wg):
	}

	s.Assert().NoError(scheduler.Stop(ctx))
}

func (s *schedulerTestSuite) TestAddJobRejectsDuplicateID() {
	ctx := context.TODO()
	wg := &sync.WaitGroup{}
	wg.Add(1)

	scheduler := NewJobsScheduler()
	scheduler.Start(ctx)

	job := &testJob{wg: wg, id: "job-z"}
	s.Assert().NoError(scheduler.AddJob(ctx, job, quartz.NewRunOnceTrigger(time.Second)))
	s.Assert().Error(scheduler.AddJob(ctx, job, quartz.NewRunOnceTrigger(time.Second)))

	s.Assert().NoError(scheduler.Stop(ctx))
}

func (s *schedulerTestSuite) TestAfterFuncRunsOnce() {
	scheduler := NewJobsScheduler()
	scheduler.Start(context.Background())

	done := make(chan struct{})
	scheduler.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(oneSecond):
		s.T().Fatal("expected AfterFunc callback to run")
	}

	s.Assert().NoError(scheduler.Stop(context.Background()))
}

func (s *schedulerTestSuite) TestAfterFuncCancelPreventsRun() {
	scheduler := NewJobsScheduler()
	scheduler.Start(context.Background())

	ran := make(chan struct{})
	cancel := scheduler.AfterFunc(200*time.Millisecond, func() { close(ran) })
	cancel()

	select {
	case <-ran:
		s.T().Fatal("expected cancelled timer to not run")
	case <-time.After(300 * time.Millisecond):
	}

	s.Assert().NoError(scheduler.Stop(context.Background()))
}

func wait(wg *sync.WaitGroup) chan bool {
	ch := make(chan bool)
	go func() {
		wg.Wait()
		ch <- true
	}()
	return ch
}
