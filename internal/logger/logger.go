package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the shared logrus logger: JSON to stdout at the given level.
// Unknown levels fall back to info.
func Setup(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if lvl == log.DebugLevel {
		log.SetReportCaller(true)
	}
}
