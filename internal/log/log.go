// Package log provides the package-level structured logger used
// throughout this module, mirroring the teacher repo's utils/log package:
// a lazily-initialized zap.SugaredLogger behind level-gated helpers.
package log

import (
	"code.cloudfoundry.org/bytefmt"
	"go.uber.org/zap"
)

// Level names, matching zap's.
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

var (
	level  = INFO
	logger *zap.SugaredLogger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger = l.Sugar()
}

// SetLevel changes the minimum level logged; messages below it are
// dropped cheaply without touching zap's own level machinery.
func SetLevel(l string) { level = l }

// Level returns the minimum level currently logged.
func Level() string { return level }

func enabled(l string) bool {
	rank := map[string]int{DEBUG: 0, INFO: 1, WARN: 2, ERROR: 3}
	return rank[l] >= rank[level]
}

func Debugf(format string, args ...interface{}) {
	if enabled(DEBUG) {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(INFO) {
		logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if enabled(WARN) {
		logger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if enabled(ERROR) {
		logger.Errorf(format, args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// ByteSize renders n as a human-readable byte count ("1.5K", "12M", ...)
// for log lines reporting cluster file sizes.
func ByteSize(n uint64) string {
	return bytefmt.ByteSize(n)
}
