package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/converter"
	"github.com/nconklindev/datasweeper/internal/logging"
	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/google/uuid"
)

// LoadFunc parses an upload into a table.
type LoadFunc func(types.Upload) (*table.Table, error)

// Orchestrator runs uploads through load, cleaning, charting and conversion.
type Orchestrator struct {
	load         LoadFunc
	exportEdited bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExportEdited makes conversions export the cleaned table instead of the
// table as loaded.
func WithExportEdited(edited bool) Option {
	return func(o *Orchestrator) { o.exportEdited = edited }
}

// WithLoader replaces the table loader.
func WithLoader(fn LoadFunc) Option {
	return func(o *Orchestrator) { o.load = fn }
}

// ReadFiles reads every path into an upload. A file that cannot be read still
// joins the batch: the returned option makes its load fail with the read
// error. Pass the option after any WithLoader.
func ReadFiles(paths []string) ([]types.Upload, Option) {
	uploads := make([]types.Upload, 0, len(paths))
	readErrs := make(map[string]error)
	for _, path := range paths {
		id := uuid.NewString()
		data, err := os.ReadFile(path)
		if err != nil {
			readErrs[id] = err
		}
		uploads = append(uploads, types.NewUpload(id, filepath.Base(path), data))
	}

	opt := func(o *Orchestrator) {
		next := o.load
		o.load = func(u types.Upload) (*table.Table, error) {
			if err, ok := readErrs[u.ID]; ok {
				return nil, err
			}
			return next(u)
		}
	}
	return uploads, opt
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{load: converter.Load}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Batch is the set of files uploaded together, keyed by upload id.
type Batch struct {
	ID       string
	Order    []string
	Sessions map[string]*Session
}

// Files returns the sessions in upload order.
func (b *Batch) Files() []*Session {
	out := make([]*Session, 0, len(b.Order))
	for _, id := range b.Order {
		out = append(out, b.Sessions[id])
	}
	return out
}

// Failed returns the sessions that could not be loaded.
func (b *Batch) Failed() []*Session {
	var out []*Session
	for _, s := range b.Files() {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Load parses every upload independently. A file that fails keeps its error
// in its session and does not affect the others. Progress, when non-nil,
// receives the completed fraction without blocking.
func (o *Orchestrator) Load(ctx context.Context, uploads []types.Upload, progress chan<- float64) *Batch {
	b := &Batch{
		ID:       uuid.NewString(),
		Order:    make([]string, 0, len(uploads)),
		Sessions: make(map[string]*Session, len(uploads)),
	}
	logger := logging.WithFields(ctx, "batch_id", b.ID)
	logger.Info("batch started", "files", len(uploads))

	for i, u := range uploads {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		s := &Session{
			Upload: u,
			logger: logger.With("file", u.Name),
		}
		b.Order = append(b.Order, u.ID)
		b.Sessions[u.ID] = s

		if err := ctx.Err(); err != nil {
			s.Err = types.ForFile(u.Name, err)
			continue
		}
		o.loadSession(s)

		if progress != nil {
			select {
			case progress <- float64(i+1) / float64(len(uploads)):
			default:
			}
		}
	}

	logger.Info("batch loaded", "files", len(uploads), "failed", len(b.Failed()))
	return b
}

func (o *Orchestrator) loadSession(s *Session) {
	tbl, err := o.load(s.Upload)
	if err != nil {
		s.Err = types.ForFile(s.Upload.Name, err)
		s.notify(slog.LevelError, "Error reading %s: %v", s.Upload.Name, err)
		return
	}
	s.Original = tbl
	s.Edited = tbl.Copy()
	s.Details = converter.Describe(s.Upload, tbl)
	s.logger.Debug("file loaded", "rows", s.Details.Rows, "columns", s.Details.Columns)
}

// Source returns the table a conversion exports.
func (o *Orchestrator) Source(s *Session) *table.Table {
	if o.exportEdited {
		return s.Edited
	}
	return s.Original
}

// Convert serializes a session's export table. The failure is reported
// against the file only.
func (o *Orchestrator) Convert(s *Session, format types.Format) (*types.Artifact, error) {
	if s.Failed() {
		return nil, s.Err
	}
	s.Format = format

	art, err := converter.Serialize(o.Source(s), s.Upload.Name, format)
	if err != nil {
		s.notify(slog.LevelError, "Conversion to %s failed: %v", format, err)
		return nil, types.ForFile(s.Upload.Name, err)
	}
	s.notify(slog.LevelInfo, "Converted to %s (%s)", format, art.FileName)
	return art, nil
}

// Plan is the set of steps the headless paths apply to every file.
type Plan struct {
	Ops          []Op
	Columns      []string
	ChartColumns []string
	Format       types.Format
	// Chart renders a PNG of the chart selection into Result.ChartPNG.
	Chart     bool
	ChartOpts chart.Options
}

// Result is the outcome for one file of a processed batch.
type Result struct {
	Upload   types.Upload
	Details  types.Details
	Chart    *chart.Selection
	ChartPNG []byte
	Artifact *types.Artifact
	Warnings []string
	Err      error
}

// Process runs every upload through plan, in upload order, and returns one
// result per upload. A failing file never stops the rest.
func (o *Orchestrator) Process(ctx context.Context, uploads []types.Upload, plan Plan) []Result {
	b := o.Load(ctx, uploads, nil)
	results := make([]Result, 0, len(b.Order))
	for _, s := range b.Files() {
		results = append(results, o.run(s, plan))
	}
	return results
}

func (o *Orchestrator) run(s *Session, plan Plan) Result {
	res := Result{Upload: s.Upload, Details: s.Details}
	if s.Failed() {
		res.Err = s.Err
		return res
	}

	s.Clean = len(plan.Ops) > 0
	for _, op := range plan.Ops {
		if err := s.Apply(op, plan.Columns); err != nil {
			if types.IsWarning(err) {
				res.Warnings = append(res.Warnings, err.Error())
				continue
			}
			res.Err = types.ForFile(s.Upload.Name, err)
			return res
		}
	}

	s.ChartColumns = plan.ChartColumns
	sel, err := s.Chart()
	switch {
	case types.IsWarning(err):
		res.Warnings = append(res.Warnings, fmt.Sprintf("no numeric columns found in %s for visualization", s.Upload.Name))
	case err != nil:
		res.Err = err
		return res
	}
	res.Chart = sel

	if plan.Chart && !sel.Empty() {
		png, err := renderPNG(sel, plan.ChartOpts)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		res.ChartPNG = png
	}

	res.Artifact, res.Err = o.Convert(s, plan.Format)
	return res
}

func renderPNG(sel *chart.Selection, opts chart.Options) ([]byte, error) {
	if opts == (chart.Options{}) {
		opts = chart.DefaultOptions()
	}
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, sel, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Succeeded counts results without an error.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Errors joins the failures in results; nil when every file succeeded.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
