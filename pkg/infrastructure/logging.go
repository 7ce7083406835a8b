// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx framework events through a zap.SugaredLogger so the
// dependency graph logs land in the same sink as application logs.
type FxLoggerAdapter struct {
	logger *zap.SugaredLogger
}

// NewFxLoggerAdapter creates a new Fx logger adapter that implements fxevent.Logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Sugar()}
}

// LogEvent implements fxevent.Logger. Lifecycle failures are logged at error
// level; everything else is debug noise.
func (a *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		a.hookResult("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuted:
		a.hookResult("OnStop", e.FunctionName, e.Err)
	case *fxevent.Provided:
		if e.Err != nil {
			a.logger.Errorf("PROVIDE failed: %v", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			a.logger.Errorf("INVOKE failed: %s: %v", e.FunctionName, e.Err)
		} else {
			a.logger.Debugf("INVOKE: %s", e.FunctionName)
		}
	case *fxevent.Stopping:
		a.logger.Infof("STOPPING: %s", e.Signal)
	case *fxevent.Started:
		if e.Err != nil {
			a.logger.Errorf("START failed: %v", e.Err)
		} else {
			a.logger.Info("STARTED")
		}
	case *fxevent.RollingBack:
		a.logger.Errorf("ROLLING BACK: %v", e.StartErr)
	default:
		a.logger.Debugf("fx event: %T", event)
	}
}

func (a *FxLoggerAdapter) hookResult(hook, function string, err error) {
	if err != nil {
		a.logger.Errorf("HOOK %s failed: %s: %v", hook, function, err)
	} else {
		a.logger.Debugf("HOOK %s executed: %s", hook, function)
	}
}
