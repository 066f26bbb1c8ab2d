package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/pgscope"
	projectConfigDir = ".pgscope"
	configFileName   = "config.yaml"
)

// LoadFileConfig loads the optional on-disk configuration by layering the
// user file (~/.config/pgscope/config.yaml) under the project file
// (./.pgscope/config.yaml). A missing file is not an error.
func LoadFileConfig() (FileConfig, error) {
	var config FileConfig

	userConfigPath, err := getUserConfigPath()
	if err == nil {
		if _, statErr := os.Stat(userConfigPath); !os.IsNotExist(statErr) {
			userConfig, loadErr := loadConfigFromFile(userConfigPath)
			if loadErr != nil {
				return FileConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, loadErr)
			}
			config = mergeFileConfigs(config, userConfig)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err == nil {
		if _, statErr := os.Stat(projectConfigPath); !os.IsNotExist(statErr) {
			projectConfig, loadErr := loadConfigFromFile(projectConfigPath)
			if loadErr != nil {
				return FileConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, loadErr)
			}
			config = mergeFileConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func loadConfigFromFile(filePath string) (FileConfig, error) {
	var config FileConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return FileConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return FileConfig{}, err
	}
	return config, nil
}

// mergeFileConfigs merges 'overlay' into 'base' field by field; overlay
// values win when set.
func mergeFileConfigs(base, overlay FileConfig) FileConfig {
	merged := base

	if overlay.Host != "" {
		merged.Host = overlay.Host
	}
	if overlay.Port != 0 {
		merged.Port = overlay.Port
	}
	if overlay.User != "" {
		merged.User = overlay.User
	}
	if overlay.Database != "" {
		merged.Database = overlay.Database
	}
	if overlay.URL != "" {
		merged.URL = overlay.URL
	}
	if overlay.PasswordFile != "" {
		merged.PasswordFile = overlay.PasswordFile
	}
	if overlay.PasswordCmd != "" {
		merged.PasswordCmd = overlay.PasswordCmd
	}

	if overlay.TLS.Enabled {
		merged.TLS.Enabled = true
	}
	if overlay.TLS.CAFile != "" {
		merged.TLS.CAFile = overlay.TLS.CAFile
	}
	if overlay.TLS.CertFile != "" {
		merged.TLS.CertFile = overlay.TLS.CertFile
	}
	if overlay.TLS.KeyFile != "" {
		merged.TLS.KeyFile = overlay.TLS.KeyFile
	}

	if overlay.Tunnel.Host != "" {
		merged.Tunnel = overlay.Tunnel
	}

	if overlay.StructureOnly {
		merged.StructureOnly = true
	}

	return merged
}
