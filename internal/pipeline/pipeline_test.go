package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nconklindev/datasweeper/internal/converter"
	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "id,amount\n1,10\n2,\n1,10\n"

func csvUpload(name, body string) types.Upload {
	return types.NewUpload("", name, []byte(body))
}

func TestLoad_AssignsSessions(t *testing.T) {
	progress := make(chan float64, 10)
	b := New().Load(context.Background(), []types.Upload{
		csvUpload("sales.csv", salesCSV),
		csvUpload("notes.md", "# hi"),
	}, progress)

	require.Len(t, b.Order, 2)
	files := b.Files()
	assert.Equal(t, "sales.csv", files[0].Upload.Name)
	assert.False(t, files[0].Failed())
	assert.Equal(t, 3, files[0].Details.Rows)
	assert.Equal(t, ".CSV", files[0].Details.Type)

	assert.True(t, files[1].Failed())
	assert.True(t, errors.Is(files[1].Err, types.ErrUnsupportedFileType))
	assert.Len(t, b.Failed(), 1)

	assert.Same(t, files[0], b.Sessions[files[0].Upload.ID])

	close(progress)
	var last float64
	for p := range progress {
		last = p
	}
	assert.Equal(t, 1.0, last)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New().Load(ctx, []types.Upload{csvUpload("a.csv", salesCSV)}, nil)
	files := b.Files()
	require.Len(t, files, 1)
	assert.True(t, errors.Is(files[0].Err, context.Canceled))
}

func TestSession_Edits(t *testing.T) {
	b := New().Load(context.Background(), []types.Upload{csvUpload("sales.csv", salesCSV)}, nil)
	s := b.Files()[0]

	require.NoError(t, s.RemoveDuplicates())
	assert.Equal(t, 2, s.Edited.Rows())
	assert.Equal(t, 3, s.Original.Rows())

	require.NoError(t, s.FillMissing())
	assert.Equal(t, 10.0, s.Edited.Value(1, 1))

	require.NoError(t, s.SelectColumns([]string{"amount"}))
	assert.Equal(t, []string{"amount"}, s.Edited.Names())
	assert.Equal(t, []Op{OpRemoveDuplicates, OpFillMissing, OpSelectColumns}, s.Applied)

	n, ok := s.LastNotice()
	require.True(t, ok)
	assert.Contains(t, n.Text, "1 of 2")

	// a dropped column can be chosen again and keeps its cleaned values
	require.NoError(t, s.SelectColumns([]string{"id", "amount"}))
	assert.Equal(t, [][]string{{"1", "10.0"}, {"2", "10.0"}}, s.Edited.Head(-1))

	err := s.SelectColumns([]string{"nope"})
	assert.True(t, errors.Is(err, types.ErrUnknownColumn))

	s.Reset()
	assert.True(t, s.Original.Equal(s.Edited))
	assert.Empty(t, s.Applied)
}

func TestSession_CellEdits(t *testing.T) {
	o := New(WithExportEdited(true))
	b := o.Load(context.Background(), []types.Upload{csvUpload("sales.csv", salesCSV)}, nil)
	s := b.Files()[0]

	require.NoError(t, s.SetCell(1, 1, "12.5"))
	assert.Equal(t, 12.5, s.Edited.Value(1, 1))
	assert.Equal(t, table.KindNumeric, s.Edited.Kind("amount"))
	assert.Nil(t, s.Original.Value(1, 1))

	err := s.SetCell(0, 1, "lots")
	assert.True(t, errors.Is(err, types.ErrInvalidValue))
	assert.Equal(t, 10.0, s.Edited.Value(0, 1))
	n, _ := s.LastNotice()
	assert.Contains(t, n.Text, "Edit rejected")

	require.NoError(t, s.AppendRow())
	assert.Equal(t, 4, s.Edited.Rows())
	require.NoError(t, s.DeleteRow(0))
	assert.Error(t, s.DeleteRow(10))

	art, err := o.Convert(s, types.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2,"amount":12.5},{"id":1,"amount":10.0},{"id":null,"amount":null}]`, string(art.Data))
}

func TestSession_EditsThroughColumnSelection(t *testing.T) {
	b := New().Load(context.Background(), []types.Upload{csvUpload("sales.csv", salesCSV)}, nil)
	s := b.Files()[0]

	require.NoError(t, s.SelectColumns([]string{"amount"}))
	require.NoError(t, s.SetCell(0, 0, "7"))
	assert.Equal(t, []string{"7"}, s.Edited.Row(0))
	assert.Error(t, s.SetCell(0, 1, "7"))

	require.NoError(t, s.SelectColumns([]string{"id", "amount"}))
	assert.Equal(t, []string{"1", "7"}, s.Edited.Row(0))
	assert.Equal(t, 3, s.Edited.Rows())
}

func TestSession_FillMissingWithoutNumeric(t *testing.T) {
	b := New().Load(context.Background(), []types.Upload{csvUpload("names.csv", "name\nann\n\n")}, nil)
	s := b.Files()[0]

	err := s.FillMissing()
	assert.True(t, types.IsWarning(err))
	assert.Empty(t, s.Applied)

	sel, err := s.Chart()
	assert.True(t, types.IsWarning(err))
	assert.True(t, sel.Empty())
}

func TestSession_SelectDropsChartColumns(t *testing.T) {
	b := New().Load(context.Background(), []types.Upload{csvUpload("m.csv", "a,b,c\n1,2,3\n")}, nil)
	s := b.Files()[0]
	s.ChartColumns = []string{"b", "c"}

	require.NoError(t, s.SelectColumns([]string{"a", "c"}))
	assert.Equal(t, []string{"c"}, s.ChartColumns)

	sel, err := s.Chart()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sel.Columns)
}

func TestConvert_UsesOriginalByDefault(t *testing.T) {
	o := New()
	b := o.Load(context.Background(), []types.Upload{csvUpload("sales.csv", salesCSV)}, nil)
	s := b.Files()[0]
	require.NoError(t, s.RemoveDuplicates())

	art, err := o.Convert(s, types.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, salesCSV, string(art.Data))
	assert.Equal(t, types.FormatCSV, s.Format)
}

func TestProcess_SalesScenario(t *testing.T) {
	o := New(WithExportEdited(true))
	results := o.Process(context.Background(),
		[]types.Upload{csvUpload("sales.csv", salesCSV)},
		Plan{
			Ops:    []Op{OpRemoveDuplicates, OpFillMissing},
			Format: types.FormatJSON,
		})

	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	assert.Equal(t, "sales.json", res.Artifact.FileName)
	assert.Equal(t, "application/json", res.Artifact.MIMEType)
	assert.Equal(t, `[{"id":1,"amount":10.0},{"id":2,"amount":10.0}]`, string(res.Artifact.Data))
	assert.Equal(t, []string{"id", "amount"}, res.Chart.Columns)
}

func TestProcess_BatchIndependence(t *testing.T) {
	failing := func(u types.Upload) (*table.Table, error) {
		if u.Name == "b.csv" {
			return nil, errors.New("injected failure")
		}
		return converter.Load(u)
	}

	uploads := []types.Upload{
		csvUpload("a.csv", salesCSV),
		csvUpload("b.csv", salesCSV),
		csvUpload("c.json", `[{"x":1},{"x":2}]`),
	}
	results := New(WithLoader(failing)).Process(context.Background(), uploads, Plan{
		Ops:    []Op{OpRemoveDuplicates},
		Format: types.FormatExcel,
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "a.xlsx", results[0].Artifact.FileName)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Artifact)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "c.xlsx", results[2].Artifact.FileName)

	assert.Equal(t, 2, Succeeded(results))
	var fe *types.FileError
	require.True(t, errors.As(Errors(results), &fe))
	assert.Equal(t, "b.csv", fe.File)
}

func TestProcess_SerializationFailureContinues(t *testing.T) {
	uploads := []types.Upload{
		csvUpload("ratios.csv", "x\ninf\n1.5\n"),
		csvUpload("sales.csv", salesCSV),
	}
	results := New().Process(context.Background(), uploads, Plan{Format: types.FormatExcel})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, types.ErrSerializationFailed)
	assert.Nil(t, results[0].Artifact)
	require.NoError(t, results[1].Err)
	assert.Equal(t, "sales.xlsx", results[1].Artifact.FileName)
	assert.Equal(t, 1, Succeeded(results))
}

func TestProcess_CorruptSpreadsheet(t *testing.T) {
	uploads := []types.Upload{
		csvUpload("sales.csv", salesCSV),
		types.NewUpload("", "data.xlsx", []byte("PK\x03\x04 this is not really a workbook")),
	}
	results := New().Process(context.Background(), uploads, Plan{Format: types.FormatCSV})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, types.ErrUnreadableSpreadsheet))

	var fe *types.FileError
	require.True(t, errors.As(results[1].Err, &fe))
	assert.Equal(t, types.CodeUnreadableSpreadsheet, fe.Code())
}

func TestProcess_WarningsAndChart(t *testing.T) {
	results := New().Process(context.Background(),
		[]types.Upload{
			csvUpload("names.csv", "name\nann\nbob\n"),
			csvUpload("nums.csv", "a,b\n1,2\n3,4\n"),
		},
		Plan{Ops: []Op{OpFillMissing}, Format: types.FormatTXT, Chart: true})

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Warnings, 2)
	assert.Nil(t, results[0].ChartPNG)

	assert.NoError(t, results[1].Err)
	assert.Empty(t, results[1].Warnings)
	assert.NotEmpty(t, results[1].ChartPNG)
	assert.Equal(t, "nums.txt", results[1].Artifact.FileName)
}

func TestProcess_UnknownColumn(t *testing.T) {
	results := New().Process(context.Background(),
		[]types.Upload{csvUpload("sales.csv", salesCSV)},
		Plan{Ops: []Op{OpSelectColumns}, Columns: []string{"price"}})

	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, types.ErrUnknownColumn))
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("fill_missing")
	require.NoError(t, err)
	assert.Equal(t, OpFillMissing, op)

	_, err = ParseOp("shuffle")
	assert.Error(t, err)
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(good, []byte(salesCSV), 0o644))

	uploads, readFailures := ReadFiles([]string{good, filepath.Join(dir, "missing.csv")})
	require.Len(t, uploads, 2)
	assert.Equal(t, "sales.csv", uploads[0].Name)
	assert.Equal(t, int64(len(salesCSV)), uploads[0].Size)

	results := New(readFailures).Process(context.Background(), uploads, Plan{Format: types.FormatJSON})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, os.ErrNotExist))
}
