package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables consulted for flag defaults
const (
	EnvNamespace   = "MODELCTL_NAMESPACE"
	EnvEnvironment = "MODELCTL_ENVIRONMENT"
	EnvTimeout     = "MODELCTL_TIMEOUT"
	EnvChartDir    = "MODELCTL_CHART_DIR"
	EnvStateDir    = "MODELCTL_STATE_DIR"
	EnvLogDir      = "MODELCTL_LOG_DIR"
)

// Defaults applied when neither a flag nor an environment variable is set
const (
	DefaultNamespace           = "ai-inference"
	DefaultEnvironment         = "dev"
	DefaultTimeoutSeconds      = 600
	DefaultChartDir            = "./helm"
	DefaultStateDir            = "./.modelctl"
	DefaultLogDir              = "./logs"
	DefaultHealthPath          = "/health"
	DefaultProbeScheme         = "https"
	DefaultGPUNodeSelector     = "nvidia.com/gpu.present=true"
	DefaultAcceleratorResource = "nvidia.com/gpu"
)

// String returns the value of key or def when unset
func String(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Int returns the integer value of key or def when unset
func Int(key string, def int) (int, error) {
	if v, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}
