package server

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/config"
	"github.com/nconklindev/datasweeper/internal/logging"
	"github.com/nconklindev/datasweeper/internal/pipeline"
	"github.com/nconklindev/datasweeper/internal/table"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ColumnReport names a column and the kind assigned to it at load.
type ColumnReport struct {
	Name string     `json:"name"`
	Kind table.Kind `json:"kind"`
}

// FileReport is what /api/inspect returns for one uploaded file.
type FileReport struct {
	ID             string         `json:"id"`
	Details        *types.Details `json:"details,omitempty"`
	Columns        []ColumnReport `json:"columns,omitempty"`
	NumericColumns []string       `json:"numeric_columns,omitempty"`
	ChartColumns   []string       `json:"chart_columns,omitempty"`
	Preview        [][]string     `json:"preview,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Error          *ErrorResponse `json:"error,omitempty"`
}

// InspectResponse is the body of /api/inspect.
type InspectResponse struct {
	BatchID string       `json:"batch_id"`
	Files   []FileReport `json:"files"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok", "version": s.version})
}

// handleInspect loads every file of the "files" field and reports its
// details, column kinds and a preview. One bad file does not fail the request.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondBadRequest(w, r, "no files provided")
		return
	}

	uploads := make([]types.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := readUpload(fh)
		if err != nil {
			respondBadRequest(w, r, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		uploads = append(uploads, u)
	}

	batch := s.orchestrator("").Load(r.Context(), uploads, nil)
	resp := InspectResponse{BatchID: batch.ID, Files: make([]FileReport, 0, len(uploads))}
	for _, sess := range batch.Files() {
		resp.Files = append(resp.Files, s.report(sess))
	}
	render.JSON(w, r, resp)
}

func (s *Server) report(sess *pipeline.Session) FileReport {
	rep := FileReport{ID: sess.Upload.ID}
	if sess.Failed() {
		rep.Error = newErrorResponse(sess.Err)
		return rep
	}

	details := sess.Details
	rep.Details = &details
	for _, name := range sess.Original.Names() {
		rep.Columns = append(rep.Columns, ColumnReport{Name: name, Kind: sess.Original.Kind(name)})
	}
	rep.Preview = append([][]string{sess.Original.Names()}, sess.Preview(s.cfg.Preview.Rows)...)

	sel, err := sess.Chart()
	if err != nil {
		rep.Warnings = append(rep.Warnings, err.Error())
		return rep
	}
	rep.NumericColumns = sel.Candidates
	rep.ChartColumns = sel.Columns
	return rep
}

// handleConvert runs one file through the requested cleaning and returns the
// converted file as a download.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	format, err := types.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		respondBadRequest(w, r, err.Error())
		return
	}

	q := r.URL.Query()
	source := q.Get("source")
	if source != "" && source != config.SourceOriginal && source != config.SourceEdited {
		respondBadRequest(w, r, fmt.Sprintf("unknown source %q", source))
		return
	}
	plan, err := planFromQuery(r)
	if err != nil {
		respondBadRequest(w, r, err.Error())
		return
	}
	plan.Format = format

	upload, ok := s.formUpload(w, r)
	if !ok {
		return
	}

	results := s.orchestrator(source).Process(r.Context(), []types.Upload{upload}, plan)
	res := results[0]
	if res.Err != nil {
		respondError(w, r, res.Err)
		return
	}

	logger := logging.WithFields(r.Context(), "file", upload.Name)
	for _, warning := range res.Warnings {
		logger.Warn("conversion warning", "warning", warning)
		w.Header().Add("X-Sweeper-Warning", warning)
	}
	writeDownload(w, res.Artifact.FileName, res.Artifact.MIMEType, res.Artifact.Data)
}

// handleChart renders the chart selection of one file as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	upload, ok := s.formUpload(w, r)
	if !ok {
		return
	}

	batch := s.orchestrator("").Load(r.Context(), []types.Upload{upload}, nil)
	sess := batch.Files()[0]
	if sess.Failed() {
		respondError(w, r, sess.Err)
		return
	}
	sess.ChartColumns = columnsParam(r)

	sel, err := sess.Chart()
	if err != nil {
		respondError(w, r, types.ForFile(upload.Name, err))
		return
	}
	if sel.Empty() {
		respondError(w, r, types.ForFile(upload.Name, types.ErrNoColumnsSelected))
		return
	}

	opts := chart.Options{
		Width:    s.cfg.Preview.ChartWidth,
		Height:   s.cfg.Preview.ChartHeight,
		BarWidth: chart.DefaultOptions().BarWidth,
		MaxBars:  s.cfg.Preview.ChartMaxBars,
	}
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, sel, opts); err != nil {
		respondError(w, r, types.ForFile(upload.Name, err))
		return
	}
	writeDownload(w, chart.FileName(upload.Name), chart.MIMEType, buf.Bytes())
}

// parseForm limits the body to the configured upload size and parses it.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	maxSize := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondBadRequest(w, r, "file too large or invalid form")
		return false
	}
	return true
}

// formUpload reads the single "file" field.
func (s *Server) formUpload(w http.ResponseWriter, r *http.Request) (types.Upload, bool) {
	if !s.parseForm(w, r) {
		return types.Upload{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondBadRequest(w, r, "no file provided")
		return types.Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(w, r, fmt.Sprintf("read %s: %v", header.Filename, err))
		return types.Upload{}, false
	}
	return types.NewUpload("", header.Filename, data), true
}

func readUpload(fh *multipart.FileHeader) (types.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return types.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return types.Upload{}, err
	}
	return types.NewUpload("", fh.Filename, data), nil
}

// planFromQuery builds the cleaning steps from the dedupe, fill and columns
// query parameters. Steps run in that order.
// planFromQuery reads the cleaning steps of a conversion. ops lists
// operations by name in the order they run; dedupe and fill are shorthands
// appended after it.
func planFromQuery(r *http.Request) (pipeline.Plan, error) {
	var plan pipeline.Plan
	q := r.URL.Query()

	if raw := q.Get("ops"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			op, err := pipeline.ParseOp(strings.TrimSpace(name))
			if err != nil {
				return plan, fmt.Errorf("ops: %w", err)
			}
			plan.Ops = append(plan.Ops, op)
		}
	}

	for _, step := range []struct {
		param string
		op    pipeline.Op
	}{
		{"dedupe", pipeline.OpRemoveDuplicates},
		{"fill", pipeline.OpFillMissing},
	} {
		raw := q.Get(step.param)
		if raw == "" {
			continue
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return plan, fmt.Errorf("%s: %w", step.param, err)
		}
		if on {
			plan.Ops = append(plan.Ops, step.op)
		}
	}

	plan.Columns = columnsParam(r)
	if plan.Columns != nil && !slices.Contains(plan.Ops, pipeline.OpSelectColumns) {
		plan.Ops = append(plan.Ops, pipeline.OpSelectColumns)
	}
	return plan, nil
}

// columnsParam splits the comma separated columns parameter. It returns nil
// when the parameter is absent and an empty slice when it is present but
// names nothing.
func columnsParam(r *http.Request) []string {
	q := r.URL.Query()
	if !q.Has("columns") {
		return nil
	}
	cols := []string{}
	for _, c := range strings.Split(q.Get("columns"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func writeDownload(w http.ResponseWriter, name, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
