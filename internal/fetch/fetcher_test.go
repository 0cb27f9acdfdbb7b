package fetch

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const validReport = `{"health":{"overall_status":"HEALTH_OK","summary":[]},"monmap":{"epoch":3,"mons":[]}}`

type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

func (r *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func writeReport(body string) func(context.Context, Command, io.Writer) (Result, error) {
	return func(_ context.Context, _ Command, w io.Writer) (Result, error) {
		_, err := io.WriteString(w, body)
		return Result{}, err
	}
}

func timeOut(_ context.Context, _ Command, w io.Writer) (Result, error) {
	_, _ = io.WriteString(w, `{"health":`)
	return Result{TimedOut: true, ExitCode: -1}, nil
}

type fixture struct {
	runner  *MockRunner
	sleeper *recordingSleeper
	logger  *logs.Logger
	reg     *metrics.Registry
	fetcher *Fetcher
}

func newFixture(t *testing.T, waits ...time.Duration) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	schedule, err := NewSchedule(waits...)
	require.NoError(t, err)

	fx := &fixture{
		runner:  NewMockRunner(ctrl),
		sleeper: &recordingSleeper{},
		logger:  logs.NewLogger(100, logs.DEBUG),
		reg:     metrics.NewRegistry(),
	}
	cfg := DefaultConfig()
	cfg.Schedule = schedule
	cfg.Dir = t.TempDir()
	fx.fetcher = NewFetcher(cfg, fx.runner, fx.logger, fx.reg, WithSleeper(fx.sleeper.sleep))
	return fx
}

func TestFetcher(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		fx := newFixture(t, 300*time.Second, 200*time.Second)
		fx.runner.EXPECT().
			Run(gomock.Any(), DefaultCommand(), gomock.Any()).
			DoAndReturn(writeReport(validReport)).
			Times(1)

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, validReport, string(raw.Data))
		assert.Equal(t, 1, raw.Attempts)
		assert.Empty(t, fx.sleeper.waits)

		onDisk, err := os.ReadFile(raw.Path)
		require.NoError(t, err)
		assert.Equal(t, raw.Data, onDisk, "report file holds the command output")

		snap := fx.reg.Snapshot()
		assert.Equal(t, int64(1), snap[string(metrics.FetchAttemptsTotal)])
		assert.Equal(t, int64(1), snap[string(metrics.FetchSuccessTotal)])
	})

	t.Run("success on attempt k stops retrying", func(t *testing.T) {
		fx := newFixture(t, 300*time.Second, 200*time.Second, 100*time.Second, 50*time.Second)

		var deadlines []time.Duration
		captureDeadline := func(ctx context.Context) {
			dl, ok := ctx.Deadline()
			require.True(t, ok, "every attempt runs under a deadline")
			deadlines = append(deadlines, time.Until(dl))
		}

		gomock.InOrder(
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, c Command, w io.Writer) (Result, error) {
					captureDeadline(ctx)
					return timeOut(ctx, c, w)
				}).Times(2),
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, c Command, w io.Writer) (Result, error) {
					captureDeadline(ctx)
					return writeReport(validReport)(ctx, c, w)
				}).Times(1),
		)

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, raw.Attempts)
		assert.Equal(t, validReport, string(raw.Data), "partial output of earlier attempts is discarded")
		assert.Equal(t, []time.Duration{300 * time.Second, 200 * time.Second}, fx.sleeper.waits,
			"each pause equals the timeout of the attempt that failed")

		require.Len(t, deadlines, 3)
		for i, want := range []time.Duration{300 * time.Second, 200 * time.Second, 100 * time.Second} {
			assert.InDelta(t, want.Seconds(), deadlines[i].Seconds(), 1, "attempt %d timeout", i+1)
		}
	})

	t.Run("always timing out exhausts the whole schedule", func(t *testing.T) {
		schedule := []time.Duration{40 * time.Second, 30 * time.Second, 20 * time.Second, 10 * time.Second}
		fx := newFixture(t, schedule...)
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(timeOut).
			Times(len(schedule))

		raw, err := fx.fetcher.Fetch(context.Background())
		require.Error(t, err)
		assert.Nil(t, raw)

		assert.ErrorIs(t, err, ErrUnreachable)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.NotErrorIs(t, err, ErrProcess)

		var fe *Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, len(schedule), fe.Attempts)
		assert.FileExists(t, fe.Path, "partial output survives for postmortem")
		assert.Equal(t, fe.Path, ReportPath(err))

		assert.Equal(t, schedule[:3], fx.sleeper.waits)
		assert.Equal(t, 60*time.Second, fx.sleeper.total())

		snap := fx.reg.Snapshot()
		assert.Equal(t, int64(4), snap[string(metrics.FetchAttemptsTotal)])
		assert.Equal(t, int64(4), snap[string(metrics.FetchTimeoutsTotal)])
		assert.Equal(t, int64(1), snap[string(metrics.FetchUnreachableTotal)])
		assert.Equal(t, int64(60_000), snap[string(metrics.FetchWaitMillisTotal)])
	})

	t.Run("process error is not retried", func(t *testing.T) {
		fx := newFixture(t, 3*time.Second, 2*time.Second, time.Second)
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(Result{}, os.ErrNotExist).
			Times(1)

		_, err := fx.fetcher.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrProcess)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.NotErrorIs(t, err, ErrUnreachable)
		assert.Empty(t, fx.sleeper.waits)

		assert.Equal(t, int64(1), fx.reg.Get(metrics.FetchProcessErrorsTotal))
	})

	t.Run("authentication timeout on stderr is retried", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		stderr := "2016-07-14 20:06:53.996559 7efdc365b700  0 librados: client.admin authentication error (110) Connection timed out\n" +
			"Error connecting to cluster: TimedOut\n"

		gomock.InOrder(
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(Result{ExitCode: 1, Stderr: []byte(stderr)}, nil),
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(writeReport(validReport)),
		)

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, raw.Attempts)
		assert.Equal(t, []time.Duration{2 * time.Second}, fx.sleeper.waits)
	})

	t.Run("clean exit with a report ignores stderr chatter", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		stderr := "2024-03-01T10:00:00.000+0000 7f0c monclient(hunting): authenticate timed out after 300\n"
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ Command, w io.Writer) (Result, error) {
				_, err := io.WriteString(w, validReport)
				return Result{Stderr: []byte(stderr)}, err
			}).
			Times(1)

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, raw.Attempts)
		assert.Empty(t, fx.sleeper.waits)
	})

	t.Run("garbage output with a reachability phrase is retried", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		gomock.InOrder(
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, _ Command, w io.Writer) (Result, error) {
					_, err := io.WriteString(w, "[errno 110] error connecting to the cluster")
					return Result{Stderr: []byte("Error connecting to cluster: TimedOut")}, err
				}),
			fx.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(writeReport(validReport)),
		)

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, raw.Attempts)
	})

	t.Run("empty output is retried", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(Result{}, nil).
			Times(2)

		_, err := fx.fetcher.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrUnreachable)
	})

	t.Run("non-json output is handed to the parser", func(t *testing.T) {
		fx := newFixture(t, time.Second)
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(writeReport("not a report"))

		raw, err := fx.fetcher.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "not a report", string(raw.Data))

		var warned bool
		for _, e := range fx.logger.GetLast(100) {
			if e.Level == logs.WARN && e.Message == "report output does not start with a JSON object" {
				warned = true
			}
		}
		assert.True(t, warned)
	})

	t.Run("cancellation during the pause stops the fetch", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		fx.sleeper.err = context.Canceled
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(timeOut).
			Times(1)

		_, err := fx.fetcher.Fetch(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnreachable)
	})

	t.Run("unwritable report dir", func(t *testing.T) {
		fx := newFixture(t, time.Second)
		fx.fetcher.cfg.Dir = "/nonexistent/ceph-check"

		_, err := fx.fetcher.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrReportFile)
	})

	t.Run("attempts are logged with number and timing", func(t *testing.T) {
		fx := newFixture(t, 2*time.Second, time.Second)
		fx.runner.EXPECT().
			Run(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(timeOut).
			Times(2)

		_, _ = fx.fetcher.Fetch(context.Background())

		var failures, unreachable int
		for _, e := range fx.logger.GetLast(100) {
			assert.Equal(t, "fetch", e.Component)
			if e.Level == logs.WARN {
				failures++
				assert.Contains(t, e.Message, "control plane")
				assert.Contains(t, e.Fields, "attempt")
				assert.Contains(t, e.Fields, "elapsed")
			}
			if e.Level == logs.ERROR {
				unreachable++
				assert.Contains(t, e.Message, "not this host")
			}
		}
		assert.Equal(t, 2, failures)
		assert.Equal(t, 1, unreachable)
	})
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
