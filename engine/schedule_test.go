package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron_Wildcard(t *testing.T) {
	spec, err := parseCron("* * * * *")
	require.NoError(t, err)
	assert.Nil(t, spec.minute)
	assert.Nil(t, spec.hour)
	assert.True(t, spec.matches(time.Date(2026, 1, 1, 13, 45, 0, 0, time.UTC)))
}

func TestParseCron_Shortcuts(t *testing.T) {
	spec, err := parseCron("@hourly")
	require.NoError(t, err)
	assert.True(t, spec.matches(time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2026, 1, 1, 5, 30, 0, 0, time.UTC)))
}

func TestParseCron_StepAndRange(t *testing.T) {
	spec, err := parseCron("*/15 9-17 * * *")
	require.NoError(t, err)
	assert.True(t, spec.matches(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, spec.matches(time.Date(2026, 1, 1, 17, 45, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)))
	assert.False(t, spec.matches(time.Date(2026, 1, 1, 9, 7, 0, 0, time.UTC)))
}

func TestParseCron_DayOfWeekSevenMeansSunday(t *testing.T) {
	spec, err := parseCron("0 0 * * 7")
	require.NoError(t, err)
	sunday := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC) // a Sunday
	assert.Equal(t, time.Sunday, sunday.Weekday())
	assert.True(t, spec.matches(sunday))
}

func TestParseCron_WrongFieldCount(t *testing.T) {
	_, err := parseCron("* * *")
	assert.Error(t, err)
}

func TestParseCron_OutOfRangeValue(t *testing.T) {
	_, err := parseCron("60 * * * *")
	assert.Error(t, err)
}

func TestParseCron_BadRange(t *testing.T) {
	_, err := parseCron("10-5 * * * *")
	assert.Error(t, err)
}

func TestParseWallTime(t *testing.T) {
	wt, err := parseWallTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, wt.hour)
	assert.Equal(t, 30, wt.minute)

	_, err = parseWallTime("25:00")
	assert.Error(t, err)

	_, err = parseWallTime("not-a-time")
	assert.Error(t, err)
}

func TestMultiCronSchedule_MatchesAnyOfItsExpressions(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	sched, err := sc.sched.AddMultiCronSchedule("multi", []string{"@monthly", "@weekly"}, func() {})
	require.NoError(t, err)
	require.Len(t, sched.crons, 2)

	firstOfMonth := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, sched.matches(firstOfMonth))
}

func TestWireRestarts_InstallsOneTimerAndOneSchedule(t *testing.T) {
	cfg := LoadConfigDefault()
	cfg.Server.Restart = RestartSection{Period: 3, Crons: []string{"@minutely"}}
	sc := NewServerContext(cfg, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	require.NoError(t, sc.wireRestarts(func(reason string) {}))

	timers := sc.sched.snapshotTimers()
	require.Len(t, timers, 1)
	assert.Equal(t, restartTimerPeriodName, timers[0].Name)

	schedules := sc.sched.snapshotSchedules()
	require.Len(t, schedules, 1)
	assert.Equal(t, restartScheduleCronsName, schedules[0].Name)
}

func TestWireRestarts_NoConfigInstallsNothing(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	require.NoError(t, sc.wireRestarts(func(reason string) {}))
	assert.Empty(t, sc.sched.snapshotTimers())
	assert.Empty(t, sc.sched.snapshotSchedules())
}
