package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func applyEnv(cfg *Config, logger *slog.Logger) {
	if v, ok := envFloat(logger, "PASSBOT_LAT"); ok {
		cfg.Observer.Latitude = &v
	}
	if v, ok := envFloat(logger, "PASSBOT_LON"); ok {
		cfg.Observer.Longitude = &v
	}
	if v, ok := envFloat(logger, "PASSBOT_ELEVATION"); ok {
		cfg.Observer.Elevation = v
	}

	if v, ok := envInt(logger, "PASSBOT_DAYS", 1); ok {
		cfg.Tracking.DaysAhead = v
	}
	if v, ok := envFloat(logger, "PASSBOT_MIN_ELEVATION"); ok {
		cfg.Tracking.MinElevation = v
	}
	if v, ok := envBool(logger, "PASSBOT_DELETE_EXISTING"); ok {
		cfg.Tracking.DeleteExisting = v
	}
	if v, ok := envInt(logger, "PASSBOT_CONCURRENCY", 1); ok {
		cfg.Tracking.Concurrency = v
	}

	envString("PASSBOT_CALENDAR_ID", &cfg.Calendar.CalendarID)
	envString("PASSBOT_CREDENTIALS", &cfg.Calendar.Credentials)
	envString("PASSBOT_TOKEN", &cfg.Calendar.Token)
	envString("PASSBOT_CALENDAR_SUBJECT", &cfg.Calendar.Subject)

	envString("PASSBOT_TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	if v, ok := envDuration(logger, "PASSBOT_TLE_MAX_AGE"); ok {
		cfg.TLE.MaxAge = v
	}
	if v, ok := envDuration(logger, "PASSBOT_TLE_TIMEOUT"); ok {
		cfg.TLE.Timeout = v
	}
	envString("PASSBOT_REDIS_ADDR", &cfg.TLE.RedisAddr)
	envString("PASSBOT_REDIS_PASSWORD", &cfg.TLE.RedisPassword)

	envString("PASSBOT_HTTP_ADDR", &cfg.Server.Addr)
	if v, ok := envBool(logger, "PASSBOT_AUTH_ENABLED"); ok {
		cfg.Server.AuthEnabled = v
	}
	envString("PASSBOT_AUTH_TOKEN", &cfg.Server.AuthToken)
	if v, ok := envBool(logger, "PASSBOT_TRUST_PROXY"); ok {
		cfg.Server.TrustProxy = v
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envFloat(logger *slog.Logger, key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid "+key+" value, ignoring", "value", v)
		return 0, false
	}
	return f, true
}

func envInt(logger *slog.Logger, key string, min int) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("invalid "+key+" value, ignoring", "value", v)
		return 0, false
	}
	return n, true
}

func envBool(logger *slog.Logger, key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, ignoring", "value", v)
		return false, false
	}
	return b, true
}

func envDuration(logger *slog.Logger, key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("invalid "+key+" value, ignoring", "value", v)
		return 0, false
	}
	return d, true
}
