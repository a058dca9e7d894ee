package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/sirupsen/logrus"
)

// Refresher is the part of the dashboard the job drives
type Refresher interface {
	Refresh(ctx context.Context) error
}

// DashboardRefreshJob reloads the displayed page so the operator sees
// changes made by other admins
type DashboardRefreshJob struct {
	Collection Refresher
	Timeout    time.Duration

	mutex    sync.Mutex
	runs     int
	failures int
}

func NewDashboardRefreshJob(collection Refresher, timeout time.Duration) *DashboardRefreshJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DashboardRefreshJob{Collection: collection, Timeout: timeout}
}

// Start runs the job every interval until ctx is done. It returns
// immediately; the returned channel closes when the loop has stopped.
func (j *DashboardRefreshJob) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	stopped := make(chan struct{})
	logrus.WithField("interval", interval).Info("Starting dashboard refresh job")

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logrus.Info("Dashboard refresh job stopped")
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	}()

	return stopped
}

// Run refreshes once. Failures are counted and logged; the controller
// already surfaced them as a notification.
func (j *DashboardRefreshJob) Run(ctx context.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	err := j.Collection.Refresh(ctx)

	j.mutex.Lock()
	j.runs++
	if err != nil && !errors.Is(err, services.ErrSuperseded) {
		j.failures++
	}
	j.mutex.Unlock()

	if err != nil && !errors.Is(err, services.ErrSuperseded) {
		logrus.Warnf("Dashboard refresh failed: %v", err)
		return
	}
	logrus.Debugf("Dashboard refresh completed (took %v)", time.Since(startTime))
}

// Stats returns how many runs happened and how many failed
func (j *DashboardRefreshJob) Stats() (runs, failures int) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.runs, j.failures
}
