package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

var ErrEmptyName = errors.New("environment variable name should not be empty")

func GetEnvStringOrDefault(envName, defaultValue string) string {
	v, err := GetEnvString(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvBoolOrDefault(envName string, defaultValue bool) bool {
	v, err := GetEnvBool(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

func GetEnvIntOrDefault(envName string, defaultValue int) int {
	v, err := GetEnvInt(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetEnvPositiveIntOrDefault falls back to the default for zero or negative values as well.
func GetEnvPositiveIntOrDefault(envName string, defaultValue int) int {
	v, err := GetEnvInt(envName)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func GetEnvFloat64OrDefault(envName string, defaultValue float64) float64 {
	v, err := GetEnvFloat64(envName)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetEnvDurationOrDefault accepts Go durations ("90s", "24h") or a bare number of seconds.
func GetEnvDurationOrDefault(envName string, defaultValue time.Duration) time.Duration {
	d, err := GetEnvDuration(envName)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

func SanitizeEnv(envName string) (string, error) {
	if len(envName) == 0 {
		return "", ErrEmptyName
	}

	retValue := strings.TrimSpace(os.Getenv(envName))
	if len(retValue) == 0 {
		return "", fmt.Errorf("environment variable %q has an empty value", envName)
	}

	return retValue, nil
}

func GetEnvString(envName string) (string, error) {
	return SanitizeEnv(envName)
}

func GetEnvBool(envName string) (bool, error) {
	envValue, err := SanitizeEnv(envName)
	if err != nil {
		return false, err
	}

	return strconv.ParseBool(envValue)
}

func GetEnvInt(envName string) (int, error) {
	envValue, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}

	retValue, err := strconv.ParseInt(envValue, 0, 0)
	if err != nil {
		return 0, err
	}

	return int(retValue), nil
}

func GetEnvFloat64(envName string) (float64, error) {
	envValue, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(envValue, 64)
}

func GetEnvDuration(envName string) (time.Duration, error) {
	envValue, err := SanitizeEnv(envName)
	if err != nil {
		return 0, err
	}

	if seconds, err := strconv.ParseInt(envValue, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return time.ParseDuration(envValue)
}
