// Restart wiring: server.restart.{period,times,crons} each install
// exactly one named timer/schedule, firing a server-wide restart signal
// rather than a handler.
package engine

import (
	"fmt"
	"time"
)

const (
	restartTimerPeriodName = "__pode_restart_period__"
	restartScheduleTimesName = "__pode_restart_times__"
	restartScheduleCronsName = "__pode_restart_crons__"
)

// RestartFunc is invoked when a restart trigger fires. The caller (the
// program embedding ServerContext, not cmd/pode) supplies this,
// since only it knows how to rebuild the ServerContext and swap
// listeners.
type RestartFunc func(reason string)

// wireRestarts installs the timers/schedules named by cfg.Server.Restart,
// each calling onRestart with a reason string identifying which trigger
// fired. Re-calling this (e.g. after a config reload) replaces any
// previously installed restart timers/schedules by name.
func (sc *ServerContext) wireRestarts(onRestart RestartFunc) error {
	restart := sc.Config.Server.Restart

	if restart.Period > 0 {
		interval := time.Duration(restart.Period) * time.Minute
		if _, err := sc.sched.AddTimer(restartTimerPeriodName, interval, func() {
			onRestart(fmt.Sprintf("period: %d minutes elapsed", restart.Period))
		}); err != nil {
			return err
		}
	}

	if len(restart.Times) > 0 {
		if _, err := sc.sched.AddWallClockSchedule(restartScheduleTimesName, restart.Times, func() {
			onRestart("times: scheduled wall-clock trigger")
		}); err != nil {
			return err
		}
	}

	if len(restart.Crons) > 0 {
		if _, err := sc.sched.AddMultiCronSchedule(restartScheduleCronsName, restart.Crons, func() {
			onRestart("crons: scheduled trigger matched")
		}); err != nil {
			return err
		}
	}

	return nil
}
