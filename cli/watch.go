package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-admin/jobs"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
)

const defaultWatchInterval = 30 * time.Second

// printingRefresher prints the page after every refresh and stops the
// watch once limit refreshes have happened
type printingRefresher struct {
	dashboard *services.Dashboard
	print     func(PageView)
	limit     int
	stop      context.CancelFunc

	mutex sync.Mutex
	count int
}

func (p *printingRefresher) Refresh(ctx context.Context) error {
	err := p.dashboard.Collection.Refresh(ctx)
	if err == nil {
		p.print(pageView(p.dashboard))
	}

	p.mutex.Lock()
	p.count++
	done := p.limit > 0 && p.count >= p.limit
	p.mutex.Unlock()
	if done {
		p.stop()
	}
	return err
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		page     int
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reprint a page whenever it is refreshed",
		Long: `Show one page of the catalog and refresh it periodically so changes
made by other admins appear. Stop with Ctrl-C.

Examples:
  ipoadmin watch --interval 10s
  ipoadmin watch --page 2 --count 3 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if interval <= 0 {
				return NewExitError(ExitCommandError, "--interval must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, rootOpts, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.logMetrics(rootOpts)

			if err := s.dashboard.StartAt(ctx, page); err != nil {
				return formatter.Fail(err, currentNotification(s.dashboard))
			}

			var printMutex sync.Mutex
			show := func(view PageView) {
				printMutex.Lock()
				defer printMutex.Unlock()
				formatter.Success(RenderPage(view), view, nil)
			}
			show(pageView(s.dashboard))

			unsubscribe := s.dashboard.Notifications.Subscribe(func(event services.NotificationEvent) {
				if event.Visible && event.Notification.Kind == services.NotificationError {
					formatter.VerboseLog("%s", event.Notification.Text)
				}
			})
			defer unsubscribe()

			refresher := &printingRefresher{dashboard: s.dashboard, print: show, limit: count, stop: stop}
			job := jobs.NewDashboardRefreshJob(refresher, rootOpts.Config.GetHTTPTimeout())
			<-job.Start(ctx, interval)

			runs, failures := job.Stats()
			formatter.VerboseLog("watch stopped after %d refreshes (%d failed)", runs, failures)
			return nil
		},
	}

	defaultInterval := rootOpts.Config.GetRefreshInterval()
	if defaultInterval <= 0 {
		defaultInterval = defaultWatchInterval
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().DurationVar(&interval, "interval", defaultInterval, "refresh interval")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many refreshes (0 runs until interrupted)")
	return cmd
}
