package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a logger scoped to one service. Every line carries the
// service field so the four binaries can share one log sink.
func New(service, level string) *logrus.Entry {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l.WithField("service", service)
}
