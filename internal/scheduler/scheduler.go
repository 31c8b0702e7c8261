package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LatePaymentJob is the daily scan for unpaid rent.
type LatePaymentJob interface {
	Run(ctx context.Context, today time.Time) (int, error)
}

// Scheduler runs the late payment scan once a day at a fixed hour.
type Scheduler struct {
	job      LatePaymentJob
	logger   *logrus.Logger
	hour     int
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // serializes job runs
	lastRun  string     // date of the last run, YYYY-MM-DD
	now      func() time.Time
}

func NewScheduler(job LatePaymentJob, hour int, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		job:      job,
		logger:   logger,
		hour:     hour,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// catch up when the process starts after today's slot
	if now := s.now(); now.Hour() > s.hour {
		s.runOnce(now)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs the scan when t falls in the configured hour
// and it has not run yet that day.
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	if t.Hour() != s.hour {
		return
	}
	s.runOnce(t)
}

func (s *Scheduler) runOnce(t time.Time) bool {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	day := t.Format("2006-01-02")
	if s.lastRun == day {
		return false
	}
	s.lastRun = day

	s.logger.WithField("date", day).Info("Starting late payment check")
	created, err := s.job.Run(context.Background(), t)
	if err != nil {
		s.logger.WithError(err).WithField("date", day).Error("Late payment check failed")
		return true
	}
	s.logger.WithFields(logrus.Fields{
		"date":          day,
		"notifications": created,
	}).Info("Late payment check completed")
	return true
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
