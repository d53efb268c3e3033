package config

import "github.com/ilyakaznacheev/cleanenv"

type Config struct {
	NotesPath    string  `env:"PROMPTER_NOTES" env-default:"notes.txt"`
	DefaultSpeed float64 `env:"PROMPTER_DEFAULT_SPEED" env-default:"40"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}
	return &cfg
}
