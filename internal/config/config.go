package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"abmviz/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Output   OutputConfig
	Plot     PlotConfig
	Pipeline PipelineConfig
	Server   ServerConfig

	// Warnings collects non-fatal adjustments made while loading
	Warnings []string
}

// DataConfig names the input files
type DataConfig struct {
	Dir           string
	BaselineFile  string
	ScenarioFiles []string
	ScenarioNames []string
}

// OutputConfig holds file system output settings
type OutputConfig struct {
	Dir string
}

// PlotConfig names the variables that charts and scale ranges are built from
type PlotConfig struct {
	Thing       string
	SectorThing string
}

// PipelineConfig holds aggregation settings
type PipelineConfig struct {
	Parallel   bool
	MaxWorkers int
	// Experiments overrides the catalogue experiment count when positive
	Experiments int
	// Tracked overrides the default tracked variable list when not empty
	Tracked []string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Addr string
}

// Workers returns the effective comparison worker count
func (p PipelineConfig) Workers() int {
	if !p.Parallel || p.MaxWorkers < 1 {
		return 1
	}
	return p.MaxWorkers
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			Dir:           getEnvOrDefault("DATA_DIR", "data"),
			BaselineFile:  getEnvOrDefault("BASELINE_FILE", "S0_Sc10000_C0_2023Q4"),
			ScenarioFiles: getEnvListOrDefault("SCENARIO_FILES", []string{"S2_Sc10000_C0_2023Q4"}),
			ScenarioNames: getEnvListOrDefault("SCENARIO_NAMES", []string{"earthquake"}),
		},
		Output: OutputConfig{
			Dir: getEnvOrDefault("OUTPUT_DIR", "figures"),
		},
		Plot: PlotConfig{
			Thing:       getEnvOrDefault("PLOT_THING", "real_output_mean"),
			SectorThing: getEnvOrDefault("PLOT_SECTOR_THING", "real_sector_output_mean_nace1"),
		},
		Pipeline: PipelineConfig{
			Parallel:    getEnvBoolOrDefault("PARALLEL", true),
			MaxWorkers:  getEnvIntOrDefault("MAX_WORKERS", 4),
			Experiments: getEnvIntOrDefault("EXPERIMENTS", 0),
			Tracked:     getEnvListOrDefault("TRACKED_VARIABLES", nil),
		},
		Server: ServerConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":8090"),
		},
	}

	if err := config.Finalize(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Finalize validates the configuration and reconciles scenario names with
// scenario files. Call it again after overriding fields from flags.
func (c *Config) Finalize() error {
	if err := validateConfig(c); err != nil {
		return err
	}
	names, warning := ReconcileNames(c.Data.ScenarioFiles, c.Data.ScenarioNames)
	c.Data.ScenarioNames = names
	if warning != "" {
		c.Warnings = append(c.Warnings, warning)
	}
	return nil
}

// ReconcileNames returns exactly one display name per scenario file. Missing
// names become scenario_<i+1> and surplus names are dropped; the second result
// describes the adjustment, empty when none was needed.
func ReconcileNames(files, names []string) ([]string, string) {
	out := make([]string, len(files))
	for i := range files {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("scenario_%d", i+1)
		}
	}
	switch {
	case len(names) < len(files):
		return out, fmt.Sprintf("%d scenario names for %d scenario files, generated the rest", len(names), len(files))
	case len(names) > len(files):
		return out, fmt.Sprintf("%d scenario names for %d scenario files, ignoring %v", len(names), len(files), names[len(files):])
	}
	return out, ""
}

func validateConfig(config *Config) error {
	if config.Data.BaselineFile == "" {
		return errors.ConfigInvalid("baseline file is required")
	}
	if len(config.Data.ScenarioFiles) == 0 {
		return errors.ConfigInvalid("at least one scenario file is required")
	}
	if config.Output.Dir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	if config.Pipeline.Experiments < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("EXPERIMENTS must not be negative, got %d", config.Pipeline.Experiments))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
