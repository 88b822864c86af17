package limits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline_DisabledWhenUnarmed(t *testing.T) {
	var d Deadline
	for i := 0; i < CheckInterval*2; i++ {
		assert.False(t, d.Tick())
	}
	assert.False(t, d.Expired())
}

func TestDeadline_ZeroDurationDisablesWatcher(t *testing.T) {
	var d Deadline
	d.Arm(0)
	for i := 0; i < CheckInterval*2; i++ {
		assert.False(t, d.Tick())
	}
	assert.False(t, d.Expired())
}

func TestDeadline_FiresOnceAfterDeadline(t *testing.T) {
	var d Deadline
	d.Arm(1 * time.Nanosecond)
	time.Sleep(1 * time.Millisecond)

	fired := 0
	for i := 0; i < CheckInterval*3; i++ {
		if d.Tick() {
			fired++
		}
	}
	assert.Equal(t, 1, fired, "deadline must fire exactly once even across many subsequent ticks")
	assert.True(t, d.Expired())
}

func TestDeadline_DoesNotFireBeforeInterval(t *testing.T) {
	var d Deadline
	d.Arm(1 * time.Nanosecond)
	time.Sleep(1 * time.Millisecond)

	for i := 0; i < CheckInterval-1; i++ {
		assert.False(t, d.Tick())
	}
}

func TestDeadline_DisarmStopsFiring(t *testing.T) {
	var d Deadline
	d.Arm(1 * time.Nanosecond)
	time.Sleep(1 * time.Millisecond)
	d.Disarm()
	for i := 0; i < CheckInterval*2; i++ {
		assert.False(t, d.Tick())
	}
}

func TestDeadline_ReArmResetsExpired(t *testing.T) {
	var d Deadline
	d.Arm(1 * time.Nanosecond)
	time.Sleep(1 * time.Millisecond)
	for i := 0; i < CheckInterval; i++ {
		d.Tick()
	}
	assert.True(t, d.Expired())

	d.Arm(1 * time.Hour)
	assert.False(t, d.Expired())
	for i := 0; i < CheckInterval*2; i++ {
		assert.False(t, d.Tick())
	}
}
