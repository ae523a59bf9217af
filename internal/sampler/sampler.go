// Package sampler periodically broadcasts queue and system snapshots so
// dashboards converge even when they missed individual events.
package sampler

import (
	"context"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mailboard-io/mailboard-ce/internal/config"
	"github.com/mailboard-io/mailboard-ce/internal/hub"
	"github.com/mailboard-io/mailboard-ce/internal/models"
	"github.com/mailboard-io/mailboard-ce/internal/store"
)

type Sampler struct {
	cron   *cron.Cron
	cfg    config.SamplerConfig
	queues *store.QueueRepository
	hub    *hub.Hub
}

func New(cfg config.SamplerConfig, queues *store.QueueRepository, eventHub *hub.Hub) *Sampler {
	return &Sampler{
		cron:   cron.New(),
		cfg:    cfg,
		queues: queues,
		hub:    eventHub,
	}
}

// Start registers the broadcast jobs and starts the scheduler.
func (s *Sampler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.QueueSchedule, s.broadcastQueues); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SystemSchedule, s.broadcastSystem); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Sampler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sampler) broadcastQueues() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queues, err := s.queues.List(ctx)
	if err != nil {
		log.Printf("sampler: queue snapshot failed: %v", err)
		return
	}
	now := time.Now().UTC()
	for _, q := range queues {
		event, err := models.NewEvent(models.EventQueueUpdate, models.QueueUpdateData{
			QueueName:    q.Name,
			Domain:       q.Domain,
			MessageCount: q.MessageCount,
			Status:       q.Status,
			Timestamp:    now,
		})
		if err != nil {
			log.Printf("sampler: encode queue update: %v", err)
			continue
		}
		s.hub.Broadcast(event)
	}
}

func (s *Sampler) broadcastSystem() {
	host, _ := os.Hostname()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	event, err := models.NewEvent(models.EventSystemMetric, models.SystemMetricData{
		Host:          host,
		CPUPercent:    0, // not sampled; the MTA reports real load out of band
		MemoryPercent: float64(mem.HeapAlloc) / float64(mem.Sys) * 100,
		Connections:   s.hub.ClientCount(),
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("sampler: encode system metric: %v", err)
		return
	}
	s.hub.Broadcast(event)
}
