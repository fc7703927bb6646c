package logsvc

import (
	"context"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/auth"
	"github.com/learnhub/backend/core/user"
)

// RollbarLogger prints every message to a std logger and reports it to Rollbar when enabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std}
}

// Enable toggles reporting to Rollbar; messages are always printed to the std logger.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for queued Rollbar reports to be sent.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// split sorts log args into what Rollbar reports as is, the caller, and the custom data.
// The caller is the first auth.Identity or user.User; its role goes to the custom data.
// Store failures are flagged retryable.
func split(args []interface{}) (rest []interface{}, person *rollbar.Person, extras map[string]interface{}) {
	extras = make(map[string]interface{})
	for _, arg := range args {
		switch a := arg.(type) {
		case auth.Identity:
			if person == nil && a.UserID != "" {
				person = &rollbar.Person{Id: a.UserID}
				extras["role"] = string(a.Role)
			}
		case user.User:
			if person == nil && a.ID != "" {
				person = &rollbar.Person{Id: a.ID, Username: a.Name, Email: a.Email}
				extras["role"] = string(a.Role)
			}
		case map[string]interface{}:
			for k, v := range a {
				extras[k] = v
			}
		case error:
			if core.IsPersistence(a) {
				extras["retryable"] = true
			}
			rest = append(rest, a)
		default:
			rest = append(rest, a)
		}
	}
	return rest, person, extras
}

// expected fmt: msg | error, map[string]interface{}, auth.Identity or user.User
func (l RollbarLogger) log(level, msg string, args []interface{}) {
	rest, person, extras := split(args)

	ctx := context.Background()
	if person != nil {
		ctx = rollbar.NewPersonContext(ctx, person)
	}
	payload := append([]interface{}{msg, ctx}, rest...)
	if len(extras) > 0 {
		payload = append(payload, extras)
	}
	rollbar.Log(level, payload...)

	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	l.std.Fatal(msg)
}
