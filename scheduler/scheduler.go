package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"rentwatch/config"
	"rentwatch/services"
	"rentwatch/storage"
)

// Triggerable allows background workers to be kicked manually.
type Triggerable interface {
	Trigger()
}

// Scheduler drives the watch service on a cron expression or fixed
// interval, loading the enabled queries fresh before each run.
type Scheduler struct {
	cfg    *config.Config
	watch  *services.WatchService
	store  *storage.SQLiteStore
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	healthcheckWorker Triggerable
}

func New(cfg *config.Config, watch *services.WatchService, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		watch:  watch,
		store:  store,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering.
func (s *Scheduler) SetWorkers(healthcheck Triggerable) {
	s.healthcheckWorker = healthcheck
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.runEnabled(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.runEnabled(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only run on demand")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs every enabled query immediately and kicks the
// healthcheck worker afterwards so stale listings get revisited.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if err := s.runEnabled(ctx); err != nil {
		return err
	}
	if s.healthcheckWorker != nil {
		s.healthcheckWorker.Trigger()
	}
	return nil
}

func (s *Scheduler) runEnabled(ctx context.Context) error {
	queries, err := s.store.EnabledWatchQueries()
	if err != nil {
		return fmt.Errorf("loading watch queries: %w", err)
	}
	if len(queries) == 0 {
		log.Println("No enabled watch queries, nothing to crawl")
		return nil
	}

	log.Printf("Running %d watch quer(ies)", len(queries))
	if err := s.watch.RunAll(ctx, queries); err != nil {
		return err
	}

	now := time.Now()
	for _, q := range queries {
		if err := s.store.TouchWatchQuery(q.ID, now); err != nil {
			log.Printf("Error updating last run for %s: %v", q.ID, err)
		}
	}
	return nil
}
