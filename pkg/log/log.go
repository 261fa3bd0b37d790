package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	flagFormat       = "log-format"
	flagLevel        = "log-level"
	flagDisableColor = "disable-log-color"
)

// shared by every goroutine that logs a deduplicated message
var ctr = newCounter()

var logger = newLogger(os.Stderr, "pretty", false)

func newLogger(out *os.File, format string, noColor bool) *zerolog.Logger {
	var l zerolog.Logger
	if strings.EqualFold(format, "json") {
		l = zerolog.New(out).With().Timestamp().Logger()
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}).With().Timestamp().Logger()
	}
	return &l
}

// InitLogging configures the global logger from the log-level, log-format and
// disable-log-color settings. It must run after cobra/viper have parsed flags and env.
func InitLogging(showLogLevelSetMessage bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger = newLogger(os.Stderr, viper.GetString(flagFormat), viper.GetBool(flagDisableColor))

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(flagLevel)))
	if err != nil || viper.GetString(flagLevel) == "" {
		level = zerolog.InfoLevel
		if err != nil {
			Warnf("Invalid log level '%s', defaulting to %s", viper.GetString(flagLevel), level)
		}
	}
	zerolog.SetGlobalLevel(level)

	if showLogLevelSetMessage {
		Infof("Log level set to %s", level)
	}
}

// GetLogger returns the global logger.
func GetLogger() *zerolog.Logger {
	return logger
}

// SetLogger replaces the global logger. Intended for tests and embedding.
func SetLogger(l *zerolog.Logger) {
	logger = l
}

func Errorf(format string, a ...interface{}) {
	logger.Error().Msgf(format, a...)
}

func DedupedErrorf(logTypeLimit int, format string, a ...interface{}) {
	timesLogged := ctr.increment(format)

	if timesLogged < logTypeLimit {
		Errorf(format, a...)
	} else if timesLogged == logTypeLimit {
		Errorf(format, a...)
		Infof("%s logged %d times: suppressing future logs", format, logTypeLimit)
	}
}

func Warnf(format string, a ...interface{}) {
	logger.Warn().Msgf(format, a...)
}

func DedupedWarningf(logTypeLimit int, format string, a ...interface{}) {
	timesLogged := ctr.increment(format)

	if timesLogged < logTypeLimit {
		Warnf(format, a...)
	} else if timesLogged == logTypeLimit {
		Warnf(format, a...)
		Infof("%s logged %d times: suppressing future logs", format, logTypeLimit)
	}
}

func Infof(format string, a ...interface{}) {
	logger.Info().Msgf(format, a...)
}

func DedupedInfof(logTypeLimit int, format string, a ...interface{}) {
	timesLogged := ctr.increment(format)

	if timesLogged < logTypeLimit {
		Infof(format, a...)
	} else if timesLogged == logTypeLimit {
		Infof(format, a...)
		Infof("%s logged %d times: suppressing future logs", format, logTypeLimit)
	}
}

func Debugf(format string, a ...interface{}) {
	logger.Debug().Msgf(format, a...)
}

func Tracef(format string, a ...interface{}) {
	logger.Trace().Msgf(format, a...)
}

// Fatalf logs at fatal level and exits the process.
func Fatalf(format string, a ...interface{}) {
	logger.Fatal().Msgf(format, a...)
}

func Profile(start time.Time, name string) {
	elapsed := time.Since(start)
	logger.Debug().Str("elapsed", elapsed.String()).Msg(fmt.Sprintf("[Profiler] %s", name))
}

func ProfileWithThreshold(start time.Time, threshold time.Duration, name string) {
	if time.Since(start) > threshold {
		Profile(start, name)
	}
}
