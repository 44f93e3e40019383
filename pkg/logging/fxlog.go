package logging

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// UseLoggingInterface routes fx's own events to the Interface in the container.
var UseLoggingInterface fx.Option = fx.WithLogger(
	func(logger Interface) fxevent.Logger {
		return &fxLoggerAdapter{Interface: logger}
	},
)

type fxLoggerAdapter struct{ Interface }

// LogEvent logs lifecycle events at INFO and wiring chatter at DEBUG.
func (f fxLoggerAdapter) LogEvent(event fxevent.Event) {
	log := f.Interface.WithField("fx", "event")

	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		result("OnStart hook", e.Err, log.WithField("callee", e.FunctionName).
			WithField("runtime", e.Runtime.String()))
	case *fxevent.OnStopExecuted:
		result("OnStop hook", e.Err, log.WithField("callee", e.FunctionName).
			WithField("runtime", e.Runtime.String()))
	case *fxevent.Provided:
		for _, t := range e.OutputTypeNames {
			log.WithField("constructor", e.ConstructorName).WithField("type", t).Debug("Provided")
		}
		if e.Err != nil {
			log.WithError(e.Err).Error("error encountered while applying options")
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			log.WithError(e.Err).WithField("function", e.FunctionName).Error("Invoke failed")
		}
	case *fxevent.Stopping:
		log.WithField("signal", e.Signal.String()).Info("Stopping: received signal")
	case *fxevent.Stopped:
		result("App stop", e.Err, log)
	case *fxevent.RollingBack:
		result("Start failed, rolling back", e.StartErr, log)
	case *fxevent.Started:
		result("App start", e.Err, log)
	case *fxevent.LoggerInitialized:
		result("Custom logger initialization", e.Err, log)
	default:
		log.WithField("event", event).Debug("fx event")
	}
}

func result(msg string, err error, log Interface) {
	if err != nil {
		log.WithError(err).Error(msg + " failed")
		return
	}
	log.Debug(msg + " succeeded")
}
