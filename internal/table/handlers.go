package table

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set.
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleIndex serves the HTML interface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleUploadDocuments accepts one or more files and runs them through the
// orchestrator as a single batch. The request blocks until the batch is done;
// per-item throttling means batches take several seconds per document.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	// ParseMultipartForm's argument is only a memory threshold; the actual
	// request-size cap comes from MaxBytesReader
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || err.Error() == "http: request body too large" {
			msg = "Upload is too large. Maximum size is 50MB."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	for _, field := range []string{"files", "file"} {
		if hs := r.MultipartForm.File[field]; len(hs) > 0 {
			headers = hs
			break
		}
	}
	if len(headers) == 0 {
		jsonError(w, "No files were selected. Please choose at least one document to upload.", http.StatusBadRequest)
		return
	}

	docs := make([]Document, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			slog.Error("Error opening uploaded file", "filename", header.Filename, "error", err)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("Error reading file data", "filename", header.Filename, "error", err)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		docs = append(docs, Document{
			Name:        header.Filename,
			Data:        data,
			ContentType: contentTypeFor(header),
		})
	}

	result := s.orchestrator.Process(docs)

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if len(result.Rows) == 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	response := map[string]any{
		"rows":    result.Rows,
		"failed":  result.Failed,
		"total":   result.Total,
		"summary": result.Summary(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// contentTypeFor determines a file's MIME type from the part header, falling
// back to the filename extension.
func contentTypeFor(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListRows returns all rows in submission order.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	rows := s.store.Rows()

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetRowFile returns the uploaded source document for a row.
func (s *Server) handleGetRowFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Row ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.store.SourceFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleStatus returns the orchestrator's current batch status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.orchestrator.Status()); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleColumns returns the fixed column set.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.orchestrator.Columns()); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleReset clears the whole table.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := ExportCSV(s.orchestrator.Columns(), s.store.Rows())
	if err != nil {
		slog.Error("Error exporting CSV", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.csv"`)
	w.Write(data)
}

func (s *Server) handleExportTSV(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	io.WriteString(w, ExportTSV(s.orchestrator.Columns(), s.store.Rows()))
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := ExportXLSX(s.orchestrator.Columns(), s.store.Rows())
	if err != nil {
		slog.Error("Error exporting XLSX", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.Write(data)
}

// handleStaticCSS serves the CSS file.
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file.
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
