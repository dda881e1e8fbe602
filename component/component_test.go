package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataCollectionConversions(t *testing.T) {
	dc := NewDataCollection(map[string]any{
		BusVoltageMag:     1,
		BusType:           3.0,
		"BRANCH_X:0":      0.1,
		"BRANCH_CKT:1":    2,
		"BRANCH_STATUS:0": 1,
	})
	dc.SetAt(GeneratorID, 0, "G1")

	v, ok := dc.GetFloat(BusVoltageMag)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	typ, ok := dc.GetInt(BusType)
	require.True(t, ok)
	assert.Equal(t, TypeReference, typ)

	x, ok := dc.GetFloatAt(BranchX, 0)
	require.True(t, ok)
	assert.Equal(t, 0.1, x)

	ckt, ok := dc.GetStringAt(BranchCircuit, 1)
	require.True(t, ok)
	assert.Equal(t, "2", ckt)

	st, ok := dc.GetBoolAt(BranchStatus, 0)
	require.True(t, ok)
	assert.True(t, st)

	id, ok := dc.GetStringAt(GeneratorID, 0)
	require.True(t, ok)
	assert.Equal(t, "G1", id)

	_, ok = dc.GetFloat(BusShuntGs)
	assert.False(t, ok)
	assert.Equal(t, 0.25, dc.FloatOr(BusShuntGs, 0.25))
	assert.Equal(t, 0.1, dc.FloatAtOr(BranchX, 0, 9))
	assert.True(t, dc.Has(BusType))
	assert.Contains(t, dc.Keys(), "GENERATOR_ID:0")
}

func TestNonIntegralFloatIsNotInt(t *testing.T) {
	dc := NewDataCollection(map[string]any{BusArea: 1.5})
	_, ok := dc.GetInt(BusArea)
	assert.False(t, ok)
}

func TestLooselyTypedValues(t *testing.T) {
	dc := NewDataCollection(map[string]any{
		BranchX:         "0.1",
		BusArea:         uint8(4),
		BusZone:         "7",
		BusNumber:       1e300,
		BranchStatus:    "true",
		GeneratorStatus: int8(0),
		BusShuntBs:      nil,
	})

	x, ok := dc.GetFloat(BranchX)
	require.True(t, ok)
	assert.Equal(t, 0.1, x)

	area, ok := dc.GetInt(BusArea)
	require.True(t, ok)
	assert.Equal(t, 4, area)

	zone, ok := dc.GetInt(BusZone)
	require.True(t, ok)
	assert.Equal(t, 7, zone)

	_, ok = dc.GetInt(BusNumber)
	assert.False(t, ok, "out of range float must not narrow")

	st, ok := dc.GetBool(BranchStatus)
	require.True(t, ok)
	assert.True(t, st)

	st, ok = dc.GetBool(GeneratorStatus)
	require.True(t, ok)
	assert.False(t, st)

	_, ok = dc.GetFloat(BusShuntBs)
	assert.False(t, ok)
	assert.Equal(t, -0.5, dc.FloatOr(BusShuntBs, -0.5))
}

func TestModeNames(t *testing.T) {
	for _, m := range []Mode{YBus, Jacobian, ResidualEval, FaultEval, Generator, DCFlow, XVecToBus, XDotVecToBus} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("SPARSE")
	assert.Error(t, err)
	assert.Equal(t, "Mode(42)", Mode(42).String())
}

func TestCheckBlockPanicsOnMismatch(t *testing.T) {
	assert.NotPanics(t, func() { CheckBlock(make([]complex128, 4), 2, 2) })
	assert.Panics(t, func() { CheckBlock(make([]complex128, 1), 2, 2) })
}
