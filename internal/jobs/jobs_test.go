package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/honesta/lostfound-api/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeExporter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExporter) Export(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("export ran without a deadline")
	}
	return "rev-1", f.err
}

type fakePurger struct {
	purged chan int64
	count  int64
	err    error
}

func (f *fakePurger) PurgeStaleAttempts(ctx context.Context) (int64, error) {
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("purge ran without a deadline")
	}
	if f.purged != nil {
		f.purged <- f.count
	}
	return f.count, f.err
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("b", "@every 1h", func() {}))
	require.NoError(t, s.AddJob("a", "0 */15 * * * *", func() {}))
	assert.Error(t, s.AddJob("a", "@hourly", func() {}), "duplicate name")
	assert.Error(t, s.AddJob("c", "not a schedule", func() {}))

	assert.Equal(t, []string{"a", "b"}, s.JobNames())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.JobNames())
}

func TestScheduler_RunsAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := jobs.NewScheduler(zap.NewNop())
	purger := &fakePurger{purged: make(chan int64, 4), count: 2}
	require.NoError(t, jobs.RegisterClaimCleanupJob(s, purger, zap.NewNop(), "@every 1s", time.Second))

	s.Start()
	select {
	case n := <-purger.purged:
		assert.Equal(t, int64(2), n)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup job did not run")
	}
	<-s.Stop().Done()
}

func TestScheduler_RecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := jobs.NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 4)
	require.NoError(t, s.AddJob("boom", "@every 1s", func() {
		ran <- struct{}{}
		panic("boom")
	}))

	s.Start()
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("job stopped running after a panic")
		}
	}
	<-s.Stop().Done()
}

func TestMirrorExportJob_Run(t *testing.T) {
	exporter := &fakeExporter{}
	job := jobs.NewMirrorExportJob(exporter, zap.NewNop(), time.Second)

	job.Run()
	exporter.err = errors.New("blob host down")
	job.Run()

	assert.Equal(t, int32(2), exporter.calls.Load())
}

func TestClaimCleanupJob_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	purger := &fakePurger{count: 3}
	job := jobs.NewClaimCleanupJob(purger, zap.New(core), time.Second)

	job.Run()
	purged := logs.FilterMessage("stale claim attempts purged").All()
	require.Len(t, purged, 1)
	assert.Equal(t, int64(3), purged[0].ContextMap()["purged"])

	purger.count = 0
	job.Run()
	assert.Equal(t, 1, logs.FilterMessage("stale claim attempts purged").Len(), "nothing to report")

	purger.err = errors.New("database is locked")
	job.Run()
	failed := logs.FilterMessage("claim attempt cleanup failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

func TestRegisterClaimCleanupJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	require.NoError(t, jobs.RegisterClaimCleanupJob(s, &fakePurger{}, zap.NewNop(), "0 0 * * * *", time.Minute))
	assert.Equal(t, []string{jobs.ClaimCleanupJobName}, s.JobNames())

	assert.Error(t, jobs.RegisterClaimCleanupJob(s, &fakePurger{}, zap.NewNop(), "0 0 * * * *", time.Minute), "duplicate")
	assert.Error(t, jobs.RegisterClaimCleanupJob(jobs.NewScheduler(zap.NewNop()), &fakePurger{}, zap.NewNop(), "every hour", time.Minute))
}

func TestRegisterMirrorExportJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	require.NoError(t, jobs.RegisterMirrorExportJob(s, &fakeExporter{}, zap.NewNop(), "0 */10 * * * *", time.Minute))
	require.NoError(t, jobs.RegisterClaimCleanupJob(s, &fakePurger{}, zap.NewNop(), "@hourly", time.Minute))

	assert.Equal(t, []string{jobs.ClaimCleanupJobName, jobs.MirrorExportJobName}, s.JobNames())
}
