package table

import (
	"errors"
	"testing"

	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := FromRecords(
		[]string{"id", "amount"},
		[][]string{{"1", "10"}, {"2", ""}, {"1", "10"}},
	)
	require.NoError(t, err)
	return tbl
}

func TestFromRecords_Kinds(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"name", "qty", "price", "active", "shipped"},
		[][]string{
			{"alice", "1", "2.5", "true", "2024-01-15"},
			{"bob", "", "3", "false", "2024-02-01"},
			{"", "3", "NA", "true", ""},
		},
	)
	require.NoError(t, err)

	tests := []struct {
		column   string
		expected Kind
	}{
		{"name", KindText},
		{"qty", KindNumeric},
		{"price", KindNumeric},
		{"active", KindBoolean},
		{"shipped", KindTemporal},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.expected, tbl.Kind(tt.column))
		})
	}

	assert.Equal(t, []string{"qty", "price"}, tbl.NumericColumns())
	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, 5, tbl.Cols())
}

func TestFromRecords_RaggedRows(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"a", "b", "c"},
		[][]string{{"1", "2"}, {"4", "5", "6", "7"}},
	)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"a", "b", "c"},
		{"1", "2", ""},
		{"4", "5", "6"},
	}, tbl.Records())
	assert.Nil(t, tbl.Value(0, 2))
}

func TestFromRecords_HeaderOnly(t *testing.T) {
	tbl, err := FromRecords([]string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Rows())
	assert.Equal(t, []string{"a", "b"}, tbl.Names())
}

func TestFromRecords_Empty(t *testing.T) {
	_, err := FromRecords(nil, nil)
	assert.True(t, errors.Is(err, types.ErrEmptyFile))
}

func TestValueTypes(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"i", "f", "b", "s"},
		[][]string{{"7", "1.25", "false", "x"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 7, tbl.Value(0, 0))
	assert.Equal(t, 1.25, tbl.Value(0, 1))
	assert.Equal(t, false, tbl.Value(0, 2))
	assert.Equal(t, "x", tbl.Value(0, 3))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{10, "10.0"},
		{0, "0.0"},
		{-3, "-3.0"},
		{2.5, "2.5"},
		{0.1, "0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFloat(tt.input))
		})
	}
}

func TestDeduplicate(t *testing.T) {
	tbl := salesTable(t)

	once := Deduplicate(tbl)
	assert.Equal(t, [][]string{{"id", "amount"}, {"1", "10"}, {"2", ""}}, once.Records())

	twice := Deduplicate(once)
	assert.True(t, once.Equal(twice))

	// the input is not modified
	assert.Equal(t, 3, tbl.Rows())
}

func TestDeduplicate_MissingDiffersFromValue(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"name", "note"},
		[][]string{{"a", ""}, {"a", "x"}, {"a", ""}},
	)
	require.NoError(t, err)

	out := Deduplicate(tbl)
	assert.Equal(t, 2, out.Rows())
	assert.Equal(t, []string{"a", "x"}, out.Row(1))
}

func TestDeduplicate_SeparatorInsideCells(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"a", "b"},
		[][]string{{"x\x1fy", "z"}, {"x", "y\x1fz"}, {"x,y", "z"}, {"x", "y,z"}},
	)
	require.NoError(t, err)

	out := Deduplicate(tbl)
	assert.Equal(t, 4, out.Rows())
	assert.True(t, out.Equal(tbl))
}

func TestEqual_SeparatorInsideCells(t *testing.T) {
	left, err := FromRecords([]string{"a", "b"}, [][]string{{"x\x1fy", "z"}})
	require.NoError(t, err)
	right, err := FromRecords([]string{"a", "b"}, [][]string{{"x", "y\x1fz"}})
	require.NoError(t, err)

	assert.False(t, left.Equal(right))
	assert.True(t, left.Equal(left.Copy()))
}

func TestFillMissingNumeric(t *testing.T) {
	tbl := Deduplicate(salesTable(t))

	filled, err := FillMissingNumeric(tbl)
	require.NoError(t, err)

	assert.Equal(t, 1, filled.Value(0, 0))
	assert.Equal(t, 10.0, filled.Value(1, 1))
	assert.Equal(t, [][]string{{"id", "amount"}, {"1", "10.0"}, {"2", "10.0"}}, filled.Records())
	assert.Equal(t, KindNumeric, filled.Kind("amount"))

	again, err := FillMissingNumeric(filled)
	require.NoError(t, err)
	assert.True(t, filled.Equal(again))
}

func TestFillMissingNumeric_MeanOfPresentValues(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"label", "x"},
		[][]string{{"a", "1"}, {"", ""}, {"c", "2"}, {"d", ""}, {"e", "6"}},
	)
	require.NoError(t, err)

	filled, err := FillMissingNumeric(tbl)
	require.NoError(t, err)

	x, err := filled.Floats("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2, 3, 6}, x)

	// text column left untouched, missing stays missing
	assert.Nil(t, filled.Value(1, 0))
	assert.Equal(t, KindText, filled.Kind("label"))
}

func TestFillMissingNumeric_NoNumericColumns(t *testing.T) {
	tbl, err := FromRecords([]string{"name"}, [][]string{{"a"}, {""}})
	require.NoError(t, err)

	out, err := FillMissingNumeric(tbl)
	assert.True(t, errors.Is(err, types.ErrNoNumericColumns))
	assert.True(t, types.IsWarning(err))
	require.NotNil(t, out)
	assert.True(t, tbl.Equal(out))
}

func TestFillMissingNumeric_AllMissingColumn(t *testing.T) {
	tbl, err := FromRecords([]string{"n", "empty"}, [][]string{{"1", ""}, {"", ""}})
	require.NoError(t, err)

	out, err := FillMissingNumeric(tbl)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Value(1, 0))
	assert.Nil(t, out.Value(0, 1))
}

func TestSelectColumns(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"a", "b", "c"},
		[][]string{{"1", "x", "true"}, {"2", "y", "false"}},
	)
	require.NoError(t, err)

	t.Run("keeps table order", func(t *testing.T) {
		out, err := SelectColumns(tbl, []string{"c", "a"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, out.Names())
		assert.Equal(t, tbl.Rows(), out.Rows())
		assert.Equal(t, []string{"2", "false"}, out.Row(1))
		assert.Equal(t, KindBoolean, out.Kind("c"))
	})

	t.Run("nil selects all", func(t *testing.T) {
		out, err := SelectColumns(tbl, nil)
		require.NoError(t, err)
		assert.True(t, tbl.Equal(out))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := SelectColumns(tbl, []string{"a", "zzz"})
		assert.True(t, errors.Is(err, types.ErrUnknownColumn))
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := SelectColumns(tbl, []string{})
		assert.True(t, errors.Is(err, types.ErrNoColumnsSelected))
	})
}

func TestDedupeAndFillCommute(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"k", "v"},
		[][]string{{"a", "1"}, {"b", ""}, {"a", "1"}, {"c", "4"}},
	)
	require.NoError(t, err)

	filledFirst, err := FillMissingNumeric(tbl)
	require.NoError(t, err)
	left := Deduplicate(filledFirst)

	right, err := FillMissingNumeric(Deduplicate(tbl))
	require.NoError(t, err)

	// both orders drop the repeated row; the fill value differs only through
	// the duplicate's weight in the mean
	assert.Equal(t, 3, left.Rows())
	assert.Equal(t, 3, right.Rows())
	assert.Equal(t, left.Names(), right.Names())
}
