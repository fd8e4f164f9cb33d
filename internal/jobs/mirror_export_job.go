package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MirrorExportJobName is the name of the legacy mirror export job
const MirrorExportJobName = "mirror-export"

// MirrorExporter writes the database to the legacy document.
// It is satisfied by cloudsync.Mirror.
type MirrorExporter interface {
	Export(ctx context.Context) (revision string, err error)
}

// MirrorExportJob pushes a fresh snapshot to the legacy mirror
type MirrorExportJob struct {
	exporter MirrorExporter
	logger   *zap.Logger
	timeout  time.Duration
}

// NewMirrorExportJob creates a new mirror export job.
// The timeout bounds one export including retries.
func NewMirrorExportJob(exporter MirrorExporter, logger *zap.Logger, timeout time.Duration) *MirrorExportJob {
	return &MirrorExportJob{
		exporter: exporter,
		logger:   logger,
		timeout:  timeout,
	}
}

// Run executes one export. Failures are logged; the next run tries again.
func (j *MirrorExportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	revision, err := j.exporter.Export(ctx)
	if err != nil {
		j.logger.Error("mirror export failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("mirror export completed",
		zap.String("revision", revision),
		zap.Duration("duration", time.Since(start)))
}

// RegisterMirrorExportJob registers the mirror export job with the scheduler.
func RegisterMirrorExportJob(scheduler *Scheduler, exporter MirrorExporter, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewMirrorExportJob(exporter, logger, timeout)
	return scheduler.AddJob(MirrorExportJobName, cronExpr, job.Run)
}
