package whatsapp

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

// waLogger routes whatsmeow logs through logrus.
type waLogger struct {
	module string
	entry  *logrus.Entry
}

func newWALogger(sessionID string, module string) waLog.Logger {
	return &waLogger{
		module: module,
		entry:  log.Session(sessionID, "whatsmeow").WithField("module", module),
	}
}

func (l *waLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *waLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.entry.Debugf(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...interface{}) { l.entry.Tracef(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	sub := l.module + "/" + module
	return &waLogger{module: sub, entry: l.entry.WithField("module", sub)}
}
