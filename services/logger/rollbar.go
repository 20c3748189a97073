package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/student"
)

// RollbarLogger reports to rollbar and writes every entry to a zerolog logger.
type RollbarLogger struct {
	zl ZerologLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl zerolog.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zl: ZerologLogger{log: zl}}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, student.Student
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, logArgs []interface{}) {
	var stSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	logArgs = make([]interface{}, 0, len(args))
	for _, arg := range args {
		// set logged in Student
		if st, ok := arg.(student.Student); ok {
			if !stSet { // only set one Student
				rollbar.SetPerson(st.ID.String(), st.Username, st.Email.String)
				stSet = true
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
		logArgs = append(logArgs, arg)
	}
	if !stSet {
		rollbar.ClearPerson()
	}
	return rbArgs, logArgs
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, logArgs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debug(msg, logArgs...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, logArgs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Info(msg, logArgs...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, logArgs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warn(msg, logArgs...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, logArgs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Error(msg, logArgs...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, logArgs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Close()
	l.zl.Fatal(msg, logArgs...)
}
