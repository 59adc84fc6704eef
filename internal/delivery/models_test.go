package delivery

import (
	"testing"

	"github.com/leejamie-42/online-store/internal/shipping"
	"github.com/stretchr/testify/assert"
)

func TestAdvance_StatusFollowsProgressThresholds(t *testing.T) {
	st, p := advance(shipping.LegProcessing, 0, 25, false)
	assert.Equal(t, shipping.LegPickedUp, st)
	assert.Equal(t, 25, p)

	st, p = advance(st, p, 25, false)
	assert.Equal(t, shipping.LegInTransit, st)
	assert.Equal(t, 50, p)

	st, p = advance(st, p, 25, false)
	assert.Equal(t, shipping.LegInTransit, st)
	assert.Equal(t, 75, p)

	st, p = advance(st, p, 25, false)
	assert.Equal(t, shipping.LegDelivered, st)
	assert.Equal(t, 100, p)
}

func TestAdvance_ProgressCapsAtHundred(t *testing.T) {
	st, p := advance(shipping.LegInTransit, 90, 25, false)

	assert.Equal(t, shipping.LegDelivered, st)
	assert.Equal(t, 100, p)
}

func TestAdvance_TerminalLegsAreFrozen(t *testing.T) {
	st, p := advance(shipping.LegDelivered, 100, 25, false)
	assert.Equal(t, shipping.LegDelivered, st)
	assert.Equal(t, 100, p)

	st, p = advance(shipping.LegLost, 40, 25, false)
	assert.Equal(t, shipping.LegLost, st)
	assert.Equal(t, 40, p)

	// even a lost roll cannot resurrect or move a terminal leg
	st, p = advance(shipping.LegDelivered, 100, 25, true)
	assert.Equal(t, shipping.LegDelivered, st)
	assert.Equal(t, 100, p)
}

func TestAdvance_LostFreezesProgress(t *testing.T) {
	st, p := advance(shipping.LegInTransit, 60, 25, true)

	assert.Equal(t, shipping.LegLost, st)
	assert.Equal(t, 60, p)
}
