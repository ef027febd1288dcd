package cron

import (
	"MedChat/internal/api/config"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine *cron.Cron
	specs  config.CronConfig

	sweepJob  cron.Job
	mirrorJob cron.Job
}

func NewCronManager(specs config.CronConfig, sweepJob, mirrorJob cron.Job) *Manager {
	return &Manager{
		engine:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		specs:     specs,
		sweepJob:  sweepJob,
		mirrorJob: mirrorJob,
	}
}

// RegisterJobs 注册定时任务，表达式为空的任务不注册
func (s *Manager) RegisterJobs() error {
	jobs := []struct {
		spec string
		job  cron.Job
	}{
		{s.specs.PresenceSweep, s.sweepJob},
		{s.specs.MirrorRefresh, s.mirrorJob},
	}
	for _, j := range jobs {
		if j.spec == "" || j.job == nil {
			continue
		}
		if _, err := s.engine.AddJob(j.spec, j.job); err != nil {
			return err
		}
	}
	return nil
}

// Entries 已注册的任务数
func (s *Manager) Entries() int {
	return len(s.engine.Entries())
}

func (s *Manager) Start() {
	log.Info("Cron engine started")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron engine stopping")
	<-s.engine.Stop().Done()
}
