package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTracksPassProgress(t *testing.T) {
	status := NewStatus()

	snap := status.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 0, snap.Total)

	status.beginPass(3)
	status.recordResult(Result{URL: "a", Outcome: OutcomeSuccess})
	status.recordResult(Result{URL: "b", Outcome: OutcomeNoFacts})

	mid := status.Snapshot()
	assert.True(t, mid.Running)
	assert.Equal(t, 3, mid.Total)
	assert.Equal(t, 2, mid.Completed)
	assert.Equal(t, 1, mid.LastOutcomes[OutcomeSuccess])

	status.endPass()
	final := status.Snapshot()
	assert.False(t, final.Running)
	assert.NotNil(t, final.LastPassEnd)
}
