package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorebill/productfetch/pkg/upstream"
)

func TestReassemble_RequestOrder(t *testing.T) {
	set := Normalize([]string{"A", "B", "A", "C"})
	outcomes := map[string]upstream.Outcome{
		"A": success("A"),
		"B": statusFailure("B", 401),
		"C": success("C"),
	}

	res := Reassemble(set, outcomes)

	require.Len(t, res.Items, 4)
	assert.Equal(t, "A", res.Items[0].Identifier)
	assert.Equal(t, "B", res.Items[1].Identifier)
	assert.Equal(t, "A", res.Items[2].Identifier)
	assert.Equal(t, "C", res.Items[3].Identifier)
	assert.Equal(t, res.Items[0], res.Items[2], "duplicates share one outcome")

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
	assert.Equal(t, 3, res.UniqueCount)
	assert.Equal(t, 1, res.DuplicatesRemoved)
}

func TestReassemble_CountsConsistent(t *testing.T) {
	set := Normalize([]string{"a", "b", "b", "c", "d", "a"})
	outcomes := map[string]upstream.Outcome{
		"a": transportFailure("a"),
		"b": success("b"),
		"c": statusFailure("c", 403),
		"d": success("d"),
	}

	res := Reassemble(set, outcomes)

	assert.Equal(t, len(res.Items), res.Total)
	assert.Equal(t, res.Total, res.SuccessCount+res.FailCount)
	assert.Equal(t, res.Total, res.UniqueCount+res.DuplicatesRemoved)
	assert.Equal(t, 3, res.SuccessCount)
}

func TestReassemble_Idempotent(t *testing.T) {
	set := Normalize([]string{"x", "y", "x"})
	outcomes := map[string]upstream.Outcome{
		"x": success("x"),
		"y": transportFailure("y"),
	}

	first := Reassemble(set, outcomes)
	second := Reassemble(set, outcomes)

	assert.Equal(t, first, second)
	assert.Len(t, outcomes, 2, "input map must not be modified")
}

func TestReassemble_MissingOutcome(t *testing.T) {
	set := Normalize([]string{"known", "lost"})
	outcomes := map[string]upstream.Outcome{"known": success("known")}

	res := Reassemble(set, outcomes)

	lost := res.Items[1]
	assert.Equal(t, "lost", lost.Identifier)
	require.NotNil(t, lost.Err)
	assert.Equal(t, upstream.KindTransport, lost.Err.Kind)
	assert.ErrorIs(t, lost.Err, errMissingOutcome)
	assert.Equal(t, 1, res.FailCount)
}
