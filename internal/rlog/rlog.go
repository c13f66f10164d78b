// Package rlog is the ambient structured-logging wrapper shared across rung.
//
// It exists so call sites don't sprinkle bare fmt.Fprintf debug traces: git
// invocations and forge calls go through here with
// consistent fields, the way av's internal/gh client logged query/mutate
// timing and internal/git logged subprocess duration.
package rlog

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// SetDebug raises the global log level, mirroring the --debug root flag.
func SetDebug(debug bool) {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// Format lazily stringifies a value with fmt.Sprintf, only paying the cost
// if the field is actually emitted (i.e., at debug level).
func Format(format string, args ...any) fmt.Stringer {
	return lazyFormat{format, args}
}

type lazyFormat struct {
	format string
	args   []any
}

func (l lazyFormat) String() string { return fmt.Sprintf(l.format, l.args...) }

// GitCall logs a completed git subprocess invocation at debug level.
func GitCall(args []string, start time.Time, err error) {
	log := logrus.WithField("duration", time.Since(start))
	if err != nil {
		log.WithError(err).Debugf("git %v failed", args)
		return
	}
	log.Debugf("git %v", args)
}

// ForgeCall logs a completed forge API call at debug level, including
// elapsed time and (lazily formatted) request/response summaries.
func ForgeCall(op string, start time.Time, extra logrus.Fields, err error) {
	fields := logrus.Fields{"op": op, "elapsed": time.Since(start)}
	for k, v := range extra {
		fields[k] = v
	}
	log := logrus.WithFields(fields)
	if err != nil {
		log.WithError(err).Debug("forge call failed")
		return
	}
	log.Debug("forge call succeeded")
}

// Warn surfaces a degrade-gracefully condition (§4.6/§4.7: a failure that is
// a warning, not fatal to the overall operation).
func Warn(field string, value any, msg string) {
	logrus.WithField(field, value).Warn(msg)
}

// WithFields is a thin re-export so callers don't need to import logrus
// directly for the common case.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}
