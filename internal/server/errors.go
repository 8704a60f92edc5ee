package server

import (
	"errors"
	"net/http"

	"github.com/nconklindev/datasweeper/internal/logging"
	"github.com/nconklindev/datasweeper/internal/types"

	"github.com/go-chi/render"
)

// codeBadRequest is reported for malformed requests that never reach a file.
const codeBadRequest types.Code = "BAD_REQUEST"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    types.Code `json:"code"`
	Message string     `json:"message"`
	File    string     `json:"file,omitempty"`
}

// newErrorResponse describes err, naming the file when it is file scoped.
func newErrorResponse(err error) *ErrorResponse {
	resp := &ErrorResponse{Code: types.CodeOf(err), Message: err.Error()}
	var fe *types.FileError
	if errors.As(err, &fe) {
		resp.File = fe.File
		resp.Message = fe.Err.Error()
	}
	return resp
}

func statusFor(code types.Code) int {
	switch code {
	case types.CodeUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case types.CodeUnreadableSpreadsheet, types.CodeMalformedInput,
		types.CodeEmptyFile, types.CodeNoNumericColumns:
		return http.StatusUnprocessableEntity
	case types.CodeUnknownColumn, types.CodeNoColumnsSelected, types.CodeInvalidValue, codeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	resp := newErrorResponse(err)
	status := statusFor(resp.Code)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"status", status,
		"code", resp.Code,
		"file", resp.File,
		"error", err.Error(),
	)

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// respondBadRequest reports a request-level problem such as a missing form
// field.
func respondBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "reason", msg)
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, &ErrorResponse{Code: codeBadRequest, Message: msg})
}
