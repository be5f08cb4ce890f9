package config

type Config struct {
	SyncSchedule string // cron-выражение глобальной синхронизации
}
