package config

import (
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// env resolves keys against the process environment on every lookup, so
// values loaded from .env and values set by tests are both seen.
var env = newEnv()

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

func envStr(k, d string) string {
	if v := env.GetString(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch env.GetString(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(env.GetString(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(env.GetString(k)); err == nil {
		return dur
	}
	return d
}
