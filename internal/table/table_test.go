package table

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	t := New("Name", "City")
	t.Append([]any{"Alice", "Towson"})
	t.Append([]any{"Bob", nil})
	return t
}

func TestSelect_CreatesMissingColumns(t *testing.T) {
	tbl := sample()

	out := tbl.Select("City", "Phone")
	require.Equal(t, []string{"City", "Phone"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "Towson", out.Rows[0][0])
	assert.Nil(t, out.Rows[0][1])
	assert.Nil(t, out.Rows[1][0])
}

func TestFilter(t *testing.T) {
	tbl := sample()
	out := tbl.Filter(func(r Row) bool { return !r.Missing("City") })
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "Alice", out.At(0).String("Name"))
}

func TestConcat_UnionsColumns(t *testing.T) {
	a := New("A", "B")
	a.Append([]any{"1", "2"})
	b := New("B", "C")
	b.Append([]any{"3", "4"})

	out := Concat(a, nil, b)
	assert.Equal(t, []string{"A", "B", "C"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []any{"1", "2", nil}, out.Rows[0])
	assert.Equal(t, []any{nil, "3", "4"}, out.Rows[1])
}

func TestNormalizeColumns(t *testing.T) {
	tbl := New("\ufeff Full Name ", "\tWork Phone", "")
	tbl.NormalizeColumns()
	assert.Equal(t, []string{"Full Name", "Work Phone", "column_3"}, tbl.Columns)
}

func TestAddColumnAndRename(t *testing.T) {
	tbl := sample()
	tbl.AddColumn("Phone")
	tbl.AddColumn("Phone")
	tbl.Rename(map[string]string{"Name": "Full Name"})

	assert.Equal(t, []string{"Full Name", "City", "Phone"}, tbl.Columns)
	assert.Len(t, tbl.Rows[1], 3)
	assert.Nil(t, tbl.Value(1, "Phone"))
}

func TestIsMissing(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty", "  ", true},
		{"nan string", "NaN", true},
		{"nan float", math.NaN(), true},
		{"zero time", time.Time{}, true},
		{"value", "x", false},
		{"zero float", 0.0, false},
		{"false", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMissing(tt.v))
		})
	}
}

func TestAsStringAndFloat(t *testing.T) {
	assert.Equal(t, "42", AsString(42.0))
	assert.Equal(t, "1.5", AsString(1.5))
	assert.Equal(t, "7", AsString(int64(7)))
	assert.Equal(t, "2024-03-01", AsString(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", AsString(nil))

	f, ok := AsFloat(" 39.29 ")
	require.True(t, ok)
	assert.InDelta(t, 39.29, f, 1e-9)

	_, ok = AsFloat("abc")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := sample()
	c := tbl.Clone()
	c.Rows[0][0] = "Zed"
	assert.Equal(t, "Alice", tbl.Rows[0][0])
}

func TestMissingCount(t *testing.T) {
	assert.Equal(t, 1, sample().MissingCount())
}
