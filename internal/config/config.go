package config

import (
	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/dailyincome/internal/auth/config"
	handlerConfig "github.com/iurnickita/dailyincome/internal/handler/config"
	loggerConfig "github.com/iurnickita/dailyincome/internal/logger/config"
	schedulerConfig "github.com/iurnickita/dailyincome/internal/scheduler/config"
	settlementConfig "github.com/iurnickita/dailyincome/internal/settlement/config"
	storeConfig "github.com/iurnickita/dailyincome/internal/store/config"
)

type Config struct {
	Handler    handlerConfig.Config
	Settlement settlementConfig.Config
	Store      storeConfig.Config
	Logger     loggerConfig.Config
	Auth       authConfig.Config
	Scheduler  schedulerConfig.Config
}

func GetConfig() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("RUN_ADDRESS", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	// раз в сутки, после полуночи UTC
	v.SetDefault("SYNC_SCHEDULE", "5 0 * * *")
	v.SetDefault("TOKEN_SECRET", "supersecretkey")

	return Config{
		Handler:    handlerConfig.Config{ServerAddr: v.GetString("RUN_ADDRESS")},
		Settlement: settlementConfig.Config{AMQPURI: v.GetString("AMQP_URI")},
		Store:      storeConfig.Config{DBDsn: v.GetString("DATABASE_URI")},
		Logger:     loggerConfig.Config{LogLevel: v.GetString("LOG_LEVEL")},
		Auth:       authConfig.Config{TokenSecret: v.GetString("TOKEN_SECRET")},
		Scheduler:  schedulerConfig.Config{SyncSchedule: v.GetString("SYNC_SCHEDULE")},
	}
}
