package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	CacheDir                  string
	CalibreLibraryPath        string
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseMaxRetries        int
	DeviceMount               string
	Hostname                  string
	RemoteCacheFolder         string
	RemoteDocumentsFolder     string
	StagingFolder             string
	StatusPath                string

	User *UserConfig
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
		RemoteCacheFolder:         "/Library/calibre.mm",
		RemoteDocumentsFolder:     "/Documents",
		StagingFolder:             "/Library/calibre.mm/staging",
		StatusPath:                "/Library/calibre.mm/status.xml",
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	user, err := loadUserConfig(userConfigFilePath())
	if err != nil {
		return nil, err
	}
	cfg.User = user

	return cfg, nil
}
