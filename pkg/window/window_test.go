package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowPushAndOrder(t *testing.T) {
	w := New(3)
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0.0, w.Latest())

	w.Push(1)
	w.Push(2)
	assert.Equal(t, []float64{2, 1}, w.Values())
	assert.Equal(t, 2.0, w.Latest())
}

func TestWindowEvictsOldest(t *testing.T) {
	w := New(3)
	for i := 1; i <= 5; i++ {
		w.Push(float64(i))
	}
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{5, 4, 3}, w.Values())
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := New(50)
	for i := 0; i < 500; i++ {
		w.Push(float64(i))
	}
	assert.Equal(t, 50, w.Len())
	assert.Equal(t, 50, w.Cap())
	assert.Equal(t, 499.0, w.Values()[0])
	assert.Equal(t, 450.0, w.Values()[49])
}

func TestWindowRejectsZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
