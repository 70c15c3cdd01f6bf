package nodeview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Scenario F — node view consistency.
func TestScenarioF_NodeViewConsistency(t *testing.T) {
	t.Parallel()

	u := NewUniverse(4)
	u.Add("0000")
	u.Add("1111")
	u.Remove("0000")

	assert.Equal(t, []string{"1111"}, u.Leaves())
}

func TestAddIsIdempotentPerBID(t *testing.T) {
	t.Parallel()

	u := NewUniverse(4)
	u.Add("1010")
	u.Add("1010")
	assert.Equal(t, []string{"1010"}, u.Leaves())
}

func TestPadsShortBIDs(t *testing.T) {
	t.Parallel()

	u := NewUniverse(4)
	u.Add("1")
	assert.Equal(t, []string{"0001"}, u.Leaves())
}
