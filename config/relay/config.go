package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port      int    `env:"RELAY_PORT" env-default:"3642"`
	StorePath string `env:"RELAY_STORE_PATH" env-default:"cuecard.db"`

	// Path to the Firebase web app config. The file holds the public project
	// settings, not secrets; those live in Firestore.
	FirebaseConfigPath string `env:"RELAY_FIREBASE_CONFIG" env-default:"firebase-config.json"`

	Firebase FirebaseConfig
}

type FirebaseConfig struct {
	APIKey            string `json:"apiKey" env:"RELAY_FIREBASE_API_KEY"`
	AuthDomain        string `json:"authDomain" env:"RELAY_FIREBASE_AUTH_DOMAIN"`
	ProjectID         string `json:"projectId" env:"RELAY_FIREBASE_PROJECT_ID"`
	StorageBucket     string `json:"storageBucket" env:"RELAY_FIREBASE_STORAGE_BUCKET"`
	MessagingSenderID string `json:"messagingSenderId" env:"RELAY_FIREBASE_MESSAGING_SENDER_ID"`
	AppID             string `json:"appId" env:"RELAY_FIREBASE_APP_ID"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	// Environment wins; the config file fills in what the environment left
	// empty.
	if cfg.Firebase.APIKey == "" || cfg.Firebase.ProjectID == "" {
		if _, err := os.Stat(cfg.FirebaseConfigPath); err == nil {
			if err := cleanenv.ReadConfig(cfg.FirebaseConfigPath, &cfg.Firebase); err != nil {
				panic("failed to read firebase config file: " + err.Error())
			}
		}
	}

	return &cfg
}
