package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInventory(t *testing.T) {
	input := strings.Join([]string{
		"1:0:d=2023060600:PRMSL:mean sea level:anl:",
		"2:1078710:d=2023060600:HGT:1000 mb:anl:",
		"",
		"591.1:401234567:d=2023060600:UGRD:850 mb:anl:",
		"591.2:401234567:d=2023060600:VGRD:850 mb:anl:",
	}, "\n")

	recs, err := ParseInventory(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, InvRecord{
		Record: 1, Sub: 0, Offset: 0, Var: "PRMSL", Layer: "mean sea level",
		Raw: "1:0:d=2023060600:PRMSL:mean sea level:anl:",
	}, recs[0])

	assert.Equal(t, 2, recs[1].Record)
	assert.Equal(t, int64(1078710), recs[1].Offset)
	assert.Equal(t, "HGT", recs[1].Var)
	assert.Equal(t, "1000 mb", recs[1].Layer)

	assert.Equal(t, 591, recs[2].Record)
	assert.Equal(t, 1, recs[2].Sub)
	assert.Equal(t, 591, recs[3].Record)
	assert.Equal(t, 2, recs[3].Sub)
	assert.Equal(t, recs[2].Offset, recs[3].Offset, "submessages share their parent's offset")
}

func TestParseInventoryRejectsGarbage(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "too few fields", input: "1:0:d=2023060600:PRMSL"},
		{name: "record not a number", input: "x:0:d=2023060600:PRMSL:mean sea level:anl:"},
		{name: "submessage not a number", input: "1.x:0:d=2023060600:PRMSL:mean sea level:anl:"},
		{name: "offset not a number", input: "1:zero:d=2023060600:PRMSL:mean sea level:anl:"},
		{name: "missing datestamp", input: "1:0:2023060600:PRMSL:mean sea level:anl:"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseInventory(strings.NewReader(tc.input))
			require.Error(t, err)
		})
	}
}

func TestInvRecordOrdering(t *testing.T) {
	a := InvRecord{Record: 591}
	b := InvRecord{Record: 591, Sub: 1}
	c := InvRecord{Record: 592}

	assert.True(t, a.before(b))
	assert.True(t, b.before(c))
	assert.True(t, a.before(c))
	assert.False(t, c.before(a))
	assert.False(t, a.before(a))
}
