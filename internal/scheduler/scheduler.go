package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iurnickita/dailyincome/internal/scheduler/config"
	"github.com/iurnickita/dailyincome/internal/settlement"
)

// Scheduler запускает глобальную синхронизацию по расписанию.
// Точность расписания не влияет на корректность: выплата идемпотентна,
// пропущенный запуск доберет следующий
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.Config
	settlement settlement.Settlement
	zaplog     *zap.Logger
}

func NewScheduler(cfg config.Config, settlement settlement.Settlement, zaplog *zap.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		cron:       c,
		cfg:        cfg,
		settlement: settlement,
		zaplog:     zaplog,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.SyncSchedule, s.runSyncAll)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.zaplog.Info("scheduled global sync",
		zap.String("schedule", s.cfg.SyncSchedule),
	)
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSyncAll() {
	ctx := context.Background()

	_, err := s.settlement.SyncAll(ctx, time.Now().UTC())
	if err != nil {
		s.zaplog.Error("global sync failed", zap.Error(err))
	}
}
