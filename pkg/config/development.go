package config

import "os"

func loadDevelopmentConfig(cfg *Config) {
	cfg.CacheDir = "./tmp/cache"
	cfg.CalibreLibraryPath = "./tmp/library"
	cfg.DatabaseDebug = true
	cfg.DeviceMount = "./tmp/device"

	loadPathOverrides(cfg)
}

func loadTestConfig(cfg *Config) {
	cfg.CacheDir = "./tmp/test-cache"
	cfg.CalibreLibraryPath = "./tmp/test-library"
	cfg.DeviceMount = "./tmp/test-device"
}

func loadProductionConfig(cfg *Config) {
	cfg.CacheDir = "/config/cache"
	cfg.DatabaseDebug = false

	loadPathOverrides(cfg)
}

func loadPathOverrides(cfg *Config) {
	if v := os.Getenv("CALIBRE_LIBRARY_PATH"); v != "" {
		cfg.CalibreLibraryPath = v
	}
	if v := os.Getenv("DEVICE_MOUNT"); v != "" {
		cfg.DeviceMount = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
}
