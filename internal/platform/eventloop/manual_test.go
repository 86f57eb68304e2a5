package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_firesInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(9 * time.Millisecond)
	assert.Empty(t, got)
	assert.Equal(t, 3, m.Pending())

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)

	m.Advance(time.Hour)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, time.Hour+10*time.Millisecond, m.Now())
}

func TestManual_stop(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_nestedScheduling(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	m.AfterFunc(10*time.Millisecond, func() {
		at = append(at, m.Now())
		m.AfterFunc(5*time.Millisecond, func() { at = append(at, m.Now()) })
	})

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, at)
}

func TestManual_stopAfterFire(t *testing.T) {
	m := NewManual()
	tm := m.AfterFunc(0, func() {})
	m.Advance(0)
	assert.False(t, tm.Stop())
}
