package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(10*time.Minute, func() { fired++ })

	c.Advance(9 * time.Minute)
	assert.Equal(t, 0, fired)

	c.Advance(time.Minute)
	assert.Equal(t, 1, fired)

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired, "one-shot timer fired twice")
	assert.Equal(t, 0, c.Pending())
}

func TestFakeStopCancels(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	tm := c.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Hour)
	assert.False(t, fired)
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	c.AfterFunc(3*time.Minute, func() { order = append(order, "late") })
	c.AfterFunc(time.Minute, func() { order = append(order, "early") })

	c.Advance(5 * time.Minute)
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestFakeCallbackSeesItsDeadline(t *testing.T) {
	c := NewFake(epoch)
	var seen []time.Time
	c.AfterFunc(2*time.Minute, func() {
		seen = append(seen, c.Now())
		c.AfterFunc(time.Minute, func() { seen = append(seen, c.Now()) })
	})

	c.Advance(10 * time.Minute)
	assert.Equal(t, []time.Time{epoch.Add(2 * time.Minute), epoch.Add(3 * time.Minute)}, seen)
	assert.Equal(t, epoch.Add(10*time.Minute), c.Now())
}

func TestFakeTicker(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	c.Advance(time.Minute)
	select {
	case got := <-tk.C:
		assert.Equal(t, epoch.Add(time.Minute), got)
	default:
		t.Fatal("ticker did not tick")
	}
}
