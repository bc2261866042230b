package game

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartJanitor schedules PruneLanes every interval. The caller owns the
// returned scheduler and shuts it down.
func (s *Service) StartJanitor(interval, idle time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := s.PruneLanes(idle); n > 0 {
				s.logger.Debug("pruned idle lanes", zap.Int("count", n), zap.Int("active", s.ActiveLanes()))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule lane janitor: %w", err)
	}

	sched.Start()
	return sched, nil
}
