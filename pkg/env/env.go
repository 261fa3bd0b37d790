package env

import (
	"os"
	"strconv"
	"time"
)

// Get parses an string from the environment variable key parameter. If the environment
// variable is empty, the defaultValue parameter is returned.
func Get(key string, defaultValue string) string {
	r := os.Getenv(key)
	if r == "" {
		return defaultValue
	}

	return r
}

// GetInt parses an int from the environment variable key parameter. If the environment
// variable is empty or fails to parse, the defaultValue parameter is returned.
func GetInt(key string, defaultValue int) int {
	r := os.Getenv(key)
	i, err := strconv.Atoi(r)
	if err != nil {
		return defaultValue
	}

	return i
}

// GetInt64 parses an int64 from the environment variable key parameter. If the environment
// variable is empty or fails to parse, the defaultValue parameter is returned.
func GetInt64(key string, defaultValue int64) int64 {
	r := os.Getenv(key)
	i, err := strconv.ParseInt(r, 10, 64)
	if err != nil {
		return defaultValue
	}

	return i
}

// GetBool parses a bool from the environment variable key parameter. If the environment
// variable is empty or fails to parse, the defaultValue parameter is returned.
func GetBool(key string, defaultValue bool) bool {
	r := os.Getenv(key)
	b, err := strconv.ParseBool(r)
	if err != nil {
		return defaultValue
	}

	return b
}

// GetDuration parses a time.Duration (e.g. "5s", "1m30s") from the environment variable key
// parameter. If the environment variable is empty, fails to parse or is negative, the
// defaultValue parameter is returned.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	r := os.Getenv(key)
	d, err := time.ParseDuration(r)
	if err != nil || d < 0 {
		return defaultValue
	}

	return d
}

// Set sets the environment variable for the key provided using the value provided.
func Set(key string, value string) error {
	return os.Setenv(key, value)
}
