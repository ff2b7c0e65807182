package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	TurnTimeout         time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	SettleRetryBase     time.Duration `env:"SETTLE_RETRY_BASE" envDefault:"500ms"`
	SettleRetryMaxDelay time.Duration `env:"SETTLE_RETRY_MAX_DELAY" envDefault:"30s"`
	MaxQueuePerRoom     int           `env:"MAX_QUEUE_PER_ROOM" envDefault:"0"`
	EventBufferSize     int           `env:"EVENT_BUFFER_SIZE" envDefault:"500"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}
