// Package config provides configuration management for the SpotifyScope backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// applyYAMLOverlay loads operational configuration from YAML files based on
// the environment and exports the values as environment variables so the
// subsequent envconfig pass picks them up. It first loads defaults.yaml,
// then overlays the environment-specific file (local.yaml, nonprod.yaml, or
// prod.yaml). Both files are optional; explicit environment variables always
// take precedence over YAML values.
func applyYAMLOverlay() error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("defaults")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read defaults config: %w", err)
	}

	envName := strings.ToLower(os.Getenv("ENVIRONMENT_ENV"))
	if envName == "" {
		envName = "local"
	}

	envViper := viper.New()
	envViper.SetConfigType("yaml")
	envViper.SetConfigName(envName)
	envViper.AddConfigPath("./configs")
	envViper.AddConfigPath("../configs")
	envViper.AddConfigPath("../../configs")

	if err := envViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read %s config: %w", envName, err)
		}
	}

	if err := v.MergeConfigMap(envViper.AllSettings()); err != nil {
		return fmt.Errorf("failed to merge environment config: %w", err)
	}

	// Flatten nested YAML keys into SECTION_KEY environment variables,
	// matching the envconfig prefixes declared on Config. Variables already
	// present in the environment are left untouched.
	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, exists := os.LookupEnv(envKey); exists {
			continue
		}
		if err := os.Setenv(envKey, v.GetString(key)); err != nil {
			return fmt.Errorf("failed to export %s: %w", envKey, err)
		}
	}

	return nil
}
