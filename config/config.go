package config

import (
	"os"
	"strconv"
	"time"

	"github.com/faiface/beep"
	"github.com/sirupsen/logrus"

	"github.com/Alextopher/basic-audio-unit/shared"
)

type Config struct {
	SampleRate  beep.SampleRate
	Buffer      time.Duration
	ControlPort int
	HTTPAddr    string
	LogLevel    logrus.Level
}

func Load() *Config {
	return &Config{
		SampleRate:  beep.SampleRate(getEnvInt("SAMPLE_RATE", 44100)),
		Buffer:      time.Duration(getEnvInt("BUFFER_MS", 10)) * time.Millisecond,
		ControlPort: getEnvInt("CONTROL_PORT", shared.ControlPort),
		HTTPAddr:    getEnv("HTTP_ADDR", ":9090"),
		LogLevel:    getEnvLevel("LOG_LEVEL", logrus.InfoLevel),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logrus.WithFields(logrus.Fields{
			"function": "config.Load",
			"key":      key,
			"value":    v,
			"fallback": fallback,
		}).Warn("Ignoring invalid positive integer")
		return fallback
	}
	return n
}

func getEnvLevel(key string, fallback logrus.Level) logrus.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	level, err := logrus.ParseLevel(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "config.Load",
			"key":      key,
			"value":    v,
			"fallback": fallback.String(),
		}).Warn("Ignoring invalid log level")
		return fallback
	}
	return level
}
