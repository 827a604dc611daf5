package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCategories(t *testing.T) {
	t.Parallel()

	imported := []FormCategory{{ID: "a", Order: 0}, {ID: "b", Order: 1}}

	got := AppendCategories(nil, imported)
	assert.Equal(t, []int{0, 1}, []int{got[0].Order, got[1].Order})

	got = AppendCategories([]FormCategory{{ID: "x", Order: 2}}, imported)
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].Order, got[1].Order, got[2].Order})
	assert.Equal(t, 0, imported[0].Order, "input slice must not be modified")
}

func TestFieldCount(t *testing.T) {
	t.Parallel()

	assert.Zero(t, FieldCount(nil))
	assert.Equal(t, 3, FieldCount([]FormCategory{
		{Fields: []FormField{{ID: "a"}, {ID: "b"}}},
		{Fields: []FormField{{ID: "c"}}},
	}))
}
