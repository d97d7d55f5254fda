package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/parser"
	"github.com/dgallion1/bookchunk/internal/pipeline"
)

// maxSideFileBytes bounds the optional toc and info uploads.
const maxSideFileBytes = 1 << 20

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	in, err := bookOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	in.Filename = filename
	in.Data = data
	in.Title = r.FormValue("title")

	job, err := pipeline.NewJob(in)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.deps.Orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

// bookOptions reads the optional per-book form fields shared by single and
// batch ingestion: toc (file), info (info.yaml file), toc_pages, first_page
// and force.
func bookOptions(r *http.Request) (pipeline.Input, error) {
	var in pipeline.Input

	if data, name, err := sideFile(r, "toc"); err != nil {
		return in, err
	} else if data != nil {
		in.TOC = data
		in.TOCFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	if f := r.FormValue("toc_format"); f != "" {
		in.TOCFormat = f
	}

	if data, _, err := sideFile(r, "info"); err != nil {
		return in, err
	} else if data != nil {
		info, err := book.ParseInfo(data)
		if err != nil {
			return in, err
		}
		in.Info = &info
	}

	if v := r.FormValue("toc_pages"); v != "" {
		pages, err := book.ParsePageList(v)
		if err != nil {
			return in, fmt.Errorf("toc_pages: %w", err)
		}
		in.TOCPages = pages
	}
	if v := r.FormValue("first_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return in, fmt.Errorf("first_page must be a positive integer, got %q", v)
		}
		in.FirstPage = n
	}
	in.Force = r.FormValue("force") == "true"
	return in, nil
}

// sideFile reads an optional small multipart file.
func sideFile(r *http.Request, field string) ([]byte, string, error) {
	f, h, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	data, err := readLimited(f, maxSideFileBytes)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", field, err)
	}
	return data, h.Filename, nil
}

func readLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("exceeds max size (%d bytes)", limit)
	}
	return data, nil
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	shared, err := bookOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		data, err := readLimited(f, s.cfg.MaxUploadBytes)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}

		in := shared
		in.Filename = filename
		in.Data = data
		job, err := pipeline.NewJob(in)
		if err == nil {
			err = s.deps.Orchestrator.Submit(job)
		}
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
