package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_FiresOnEveryTickByDefault(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	var fires int32
	_, err := sc.sched.AddTimer("t1", 10*time.Millisecond, func() { atomic.AddInt32(&fires, 1) })
	require.NoError(t, err)

	time.Sleep(45 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fires), int32(2))
}

func TestTimer_SkipFirstSuppressesLeadingTicks(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	var fires int32
	_, err := sc.sched.AddTimerOpts("t2", 10*time.Millisecond, 3, 0, func() { atomic.AddInt32(&fires, 1) })
	require.NoError(t, err)

	time.Sleep(35 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires), "first 3 ticks must be suppressed")

	time.Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fires), int32(1))
}

func TestTimer_LimitStopsAfterNFirings(t *testing.T) {
	sc := NewServerContext(nil, nil)
	sc.sched.Start()
	defer sc.sched.Stop()

	var fires int32
	_, err := sc.sched.AddTimerOpts("t3", 10*time.Millisecond, 0, 2, func() { atomic.AddInt32(&fires, 1) })
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fires), "timer must stop itself once Limit firings have run")
}
