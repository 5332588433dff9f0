package builder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/opencompleter/completer/builder"
	"github.com/opencompleter/completer/config"
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/engine"
	"github.com/opencompleter/completer/logger"
)

func newTestCompleter(t *testing.T) *engine.Completer {
	t.Helper()
	ports := dynaport.Get(1)
	cfg := config.New(config.WithReceiverPort(ports[0]))
	c := engine.New(cfg, logger.NewLogger(logger.WithNop()), nil)
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func TestThreadChainsThenApplyAndResolves(t *testing.T) {
	ctx := context.Background()
	thread := builder.NewThread(newTestCompleter(t))

	supply, err := thread.Supply(ctx, func(context.Context) (datum.Datum, error) {
		return datum.NewBlob("text/plain", []byte("a")), nil
	})
	require.NoError(t, err)

	applied, err := supply.ThenApply(ctx, func(_ context.Context, in datum.Datum) (datum.Datum, error) {
		return datum.NewBlob("text/plain", append(in.Blob.Bytes, 'b')), nil
	})
	require.NoError(t, err)

	out, err := applied.WaitForCompletion(ctx)
	require.NoError(t, err)
	require.Equal(t, "ab", string(out.Blob.Bytes))
}

func TestThreadAllOfOverMultipleStages(t *testing.T) {
	ctx := context.Background()
	thread := builder.NewThread(newTestCompleter(t))

	a, err := thread.CompletedValue(datum.Succeeded(datum.NewEmpty()))
	require.NoError(t, err)
	b, err := thread.CompletedValue(datum.Succeeded(datum.NewEmpty()))
	require.NoError(t, err)

	all, err := thread.AllOf(ctx, a, b)
	require.NoError(t, err)

	_, err = all.WaitForCompletion(ctx)
	require.NoError(t, err)
}

func TestThreadStagesReportsCreationOrder(t *testing.T) {
	ctx := context.Background()
	thread := builder.NewThread(newTestCompleter(t))

	first, err := thread.CompletedValue(datum.Succeeded(datum.NewEmpty()))
	require.NoError(t, err)
	second, err := first.ThenRun(ctx, func(context.Context) error { return nil })
	require.NoError(t, err)

	ids, err := thread.Stages()
	require.NoError(t, err)
	require.Equal(t, []string{first.ID(), second.ID()}, ids)
}

func TestThreadCommit(t *testing.T) {
	thread := builder.NewThread(newTestCompleter(t))
	first, err := thread.Commit()
	require.NoError(t, err)
	assert.True(t, first)

	second, err := thread.Commit()
	require.NoError(t, err)
	assert.False(t, second)
}
