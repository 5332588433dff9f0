package engine_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/travisjeffery/go-dynaport"

	"github.com/opencompleter/completer/apperrors"
	"github.com/opencompleter/completer/config"
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/engine"
	"github.com/opencompleter/completer/logger"
)

type completerTestSuite struct {
	suite.Suite

	completer *engine.Completer
	threadID  string
}

func TestCompleterTestSuite(t *testing.T) {
	suite.Run(t, new(completerTestSuite))
}

func (s *completerTestSuite) SetupTest() {
	ports := dynaport.Get(1)
	cfg := config.New(config.WithReceiverPort(ports[0]))
	s.completer = engine.New(cfg, logger.NewLogger(logger.WithNop()), nil)
	s.completer.Start(context.Background())
	s.threadID = s.completer.CreateThread()
}

func (s *completerTestSuite) TearDownTest() {
	s.Require().NoError(s.completer.Stop(context.Background()))
}

func (s *completerTestSuite) TestSupplyThenApplyWaitForCompletion() {
	ctx := context.Background()

	supplyID, err := s.completer.Supply(ctx, s.threadID, func(context.Context) (datum.Datum, error) {
		return datum.NewBlob("text/plain", []byte("hello")), nil
	})
	s.Require().NoError(err)

	applyID, err := s.completer.ThenApply(ctx, s.threadID, supplyID, func(_ context.Context, in datum.Datum) (datum.Datum, error) {
		return datum.NewBlob("text/plain", append(in.Blob.Bytes, []byte(" world")...)), nil
	})
	s.Require().NoError(err)

	out, err := s.completer.WaitForCompletion(ctx, s.threadID, applyID)
	s.Require().NoError(err)
	s.Assert().Equal("hello world", string(out.Blob.Bytes))
}

func (s *completerTestSuite) TestWaitForCompletionReturnsCloudCompletionExceptionOnFailure() {
	ctx := context.Background()

	supplyID, err := s.completer.Supply(ctx, s.threadID, func(context.Context) (datum.Datum, error) {
		return datum.Datum{}, fmt.Errorf("boom")
	})
	s.Require().NoError(err)

	_, err = s.completer.WaitForCompletion(ctx, s.threadID, supplyID)
	s.Require().Error(err)

	var ccErr *apperrors.CloudCompletionException
	s.Require().ErrorAs(err, &ccErr)
	s.Assert().Equal(datum.ErrStageInvokeFailed, ccErr.Cause.Error.Kind)
}

func (s *completerTestSuite) TestAllOfSucceedsWhenEverySourceSucceeds() {
	ctx := context.Background()

	aID, err := s.completer.CompletedValue(s.threadID, datum.Succeeded(datum.NewEmpty()))
	s.Require().NoError(err)
	bID, err := s.completer.CompletedValue(s.threadID, datum.Succeeded(datum.NewEmpty()))
	s.Require().NoError(err)

	allID, err := s.completer.AllOf(ctx, s.threadID, aID, bID)
	s.Require().NoError(err)

	out, err := s.completer.WaitForCompletion(ctx, s.threadID, allID)
	s.Require().NoError(err)
	s.Assert().Equal(datum.KindEmpty, out.Kind)
}

func (s *completerTestSuite) TestDelayResolvesAfterDuration() {
	ctx := context.Background()

	delayID, err := s.completer.Delay(ctx, s.threadID, 20*time.Millisecond)
	s.Require().NoError(err)

	_, err = s.completer.WaitForCompletion(ctx, s.threadID, delayID)
	s.Require().NoError(err)
}

func (s *completerTestSuite) TestExternalCompleteViaHTTP() {
	ctx := context.Background()

	stageID, completeURL, _, err := s.completer.External(s.threadID)
	s.Require().NoError(err)
	s.Require().NotEmpty(stageID)

	go func() {
		time.Sleep(10 * time.Millisecond)
		resp, postErr := http.Post(completeURL, "text/plain", nil)
		if postErr == nil {
			resp.Body.Close()
		}
	}()

	out, err := s.completer.WaitForCompletion(ctx, s.threadID, stageID)
	s.Require().NoError(err)
	s.Assert().Equal(datum.KindHTTPRequest, out.Kind)
}

func (s *completerTestSuite) TestUnknownThreadReturnsError() {
	_, err := s.completer.Supply(context.Background(), "does-not-exist", func(context.Context) (datum.Datum, error) {
		return datum.NewEmpty(), nil
	})
	s.Require().Error(err)
	s.Require().ErrorIs(err, apperrors.ErrUnknownThread)
}

func (s *completerTestSuite) TestUnknownStageReturnsError() {
	_, err := s.completer.ThenApply(context.Background(), s.threadID, "does-not-exist", func(context.Context, datum.Datum) (datum.Datum, error) {
		return datum.NewEmpty(), nil
	})
	s.Require().Error(err)
	s.Require().ErrorIs(err, apperrors.ErrUnknownStage)
}

func (s *completerTestSuite) TestListStagesReflectsCreationOrder() {
	ctx := context.Background()
	first, err := s.completer.CompletedValue(s.threadID, datum.Succeeded(datum.NewEmpty()))
	s.Require().NoError(err)
	second, err := s.completer.ThenRun(ctx, s.threadID, first, func(context.Context) error { return nil })
	s.Require().NoError(err)

	ids, err := s.completer.ListStages(s.threadID)
	s.Require().NoError(err)
	s.Assert().Equal([]string{first, second}, ids)
}

func (s *completerTestSuite) TestCommitClosesThread() {
	first, err := s.completer.Commit(s.threadID)
	s.Require().NoError(err)
	s.Assert().True(first)

	second, err := s.completer.Commit(s.threadID)
	s.Require().NoError(err)
	s.Assert().False(second)
}
