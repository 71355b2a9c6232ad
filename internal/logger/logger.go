// Package logger provides the process-wide leveled logger used across
// jamfdist. It is a thin facade over logrus so that packages log through
// one configuration point instead of embedding print statements.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the minimum level to output. Unknown values are ignored
// and the current level is kept.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		log.SetLevel(logrus.DebugLevel)
	case "INFO":
		log.SetLevel(logrus.InfoLevel)
	case "WARN":
		log.SetLevel(logrus.WarnLevel)
	case "ERROR":
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetFormat selects the output format: "text" or "json".
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func Debug(format string, v ...any) {
	log.Debugf(format, v...)
}

func Info(format string, v ...any) {
	log.Infof(format, v...)
}

func Warn(format string, v ...any) {
	log.Warnf(format, v...)
}

func Error(format string, v ...any) {
	log.Errorf(format, v...)
}
