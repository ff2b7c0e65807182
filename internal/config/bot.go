package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL        string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	UserID       string `env:"USER_ID" envDefault:"bot"`
	Room         string `env:"ROOM" envDefault:"Beginner"`
	RaisePercent int    `env:"RAISE_PERCENT" envDefault:"20"`
	Hands        int    `env:"HANDS" envDefault:"0"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
