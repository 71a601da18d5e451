package util

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.util")

func DebugEnabled() bool {
	return etb("EIMS_DEBUG")
}

func HttpTraceEnabled() bool {
	return etb("EIMS_HTTP_TRACE")
}

func etb(envName string) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}

	bv, err := strconv.ParseBool(v)

	return err == nil && bv
}

func GetEnvOrFailed(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatal(key, " environment variable is not set")
	}
	return v
}

func GetEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// GetDurationOrDefault parses key with time.ParseDuration. Malformed values
// are logged and replaced with def.
func GetDurationOrDefault(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warnf("invalid duration %q in %s, using %s", v, key, def)
		return def
	}
	return d
}

func GetIntOrDefault(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("invalid integer %q in %s, using %d", v, key, def)
		return def
	}
	return i
}
