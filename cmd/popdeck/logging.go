package main

import (
	"context"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
)

// newLoggingContext installs a logrus-backed logger at level as the default
// and in the returned context. Output goes to stderr so stdio transports keep
// stdout to themselves.
func newLoggingContext(level string) context.Context {
	var lvl logger.Level
	if err := lvl.Set(level); err != nil {
		lvl = logger.LevelInfo
	}

	ll := xlogrus.DefaultLogrusLogger()
	ll.SetOutput(os.Stderr)
	ll.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l := xlogrus.New(ll).WithLevel(lvl)
	logrus.SetLevel(xlogrus.LevelToLogrus(lvl))

	logger.Default = func() logger.Logger {
		return l
	}
	return logger.CtxWithLogger(context.Background(), l)
}
