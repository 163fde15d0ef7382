package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// UserConfig holds the user-editable settings: the custom-field mapping that
// controls where device state is stored in the calibre library, and feature
// toggles. A field left empty disables that feature's reconciliation path.
type UserConfig struct {
	AnnotationsField     string `koanf:"annotations_field" validate:"omitempty,customfield"`
	CollectionsField     string `koanf:"collections_field" validate:"omitempty,customfield"`
	DateReadField        string `koanf:"date_read_field" validate:"omitempty,customfield"`
	ProgressField        string `koanf:"progress_field" validate:"omitempty,customfield"`
	ReadFlagField        string `koanf:"read_flag_field" validate:"omitempty,customfield"`
	ReadingListFlagField string `koanf:"reading_list_flag_field" validate:"omitempty,customfield"`
	WordCountField       string `koanf:"word_count_field" validate:"omitempty,customfield"`

	DevelopmentMode          bool `koanf:"development_mode"`
	ExecuteDeviceCommands    bool `koanf:"execute_device_commands" default:"true"`
	HashCachingDisabled      bool `koanf:"hash_caching_disabled"`
	ShowProgressAsPercentage bool `koanf:"show_progress_as_percentage"`

	// ThumbnailHeight is the height the device driver uses when it sends
	// covers; cover hashes must be computed at the same size to compare.
	ThumbnailHeight int `koanf:"thumbnail_height" default:"135" validate:"gt=0"`
}

const envPrefix = "MARVINSYNC_"

func userConfigFilePath() string {
	configDir := os.Getenv("CONFIG_DIRECTORY")
	if configDir == "" {
		configDir = "/config"
	}

	return filepath.Join(configDir, "config.yaml")
}

func loadUserConfig(configFilePath string) (*UserConfig, error) {
	userConfig := &UserConfig{}
	if err := defaults.Set(userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	if _, err := os.Stat(configFilePath); err == nil {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, errors.WithStack(err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}

	// Environment variables override the file, e.g.
	// MARVINSYNC_COLLECTIONS_FIELD=#mm_collections.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validateUserConfig(userConfig); err != nil {
		return nil, err
	}

	return userConfig, nil
}
