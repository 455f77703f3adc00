package api

import (
	"os"
	"strconv"
	"time"
)

func envInt(name string, def int) int {
	if raw := os.Getenv(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

func envDur(name string, def time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}

func envString(name, def string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return def
}
