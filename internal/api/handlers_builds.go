package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/mdbuild/internal/parser"
	"github.com/dgallion1/mdbuild/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// handleRender builds one uploaded document in memory and returns the output
// inline. Nothing is written to the out dir.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename, data, status, err := s.readUpload(fhs[0])
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	docname, err := requestDocname(r.FormValue("docname"), filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := s.cfg.Options
	if v, ok := formBool(r, "include_header"); ok {
		opts.IncludeHeader = v
	}
	if v, ok := formBool(r, "include_metadata"); ok {
		opts.IncludeMetadata = v
	}

	mem := pipeline.NewMemSink()
	worker := pipeline.NewWorker(
		pipeline.NewAssembler(opts, mem, s.log),
		parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext},
		s.log,
	)
	res, err := worker.Build(pipeline.Source{Docname: docname, Filename: filename, Data: data})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"docname": docname,
			"state":   res.State(),
			"error":   err.Error(),
		})
		return
	}

	body, _ := mem.File(res.BodyFile)
	resp := map[string]any{
		"docname":   docname,
		"body_file": res.BodyFile,
		"body":      string(body),
		"states":    res.States,
	}
	if opts.IncludeHeader && res.Header != nil {
		fm, err := res.Header.FrontMatter()
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["front_matter"] = string(fm)
	}
	if res.SidecarFile != "" {
		sidecar, _ := mem.File(res.SidecarFile)
		resp["sidecar_file"] = res.SidecarFile
		resp["sidecar"] = json.RawMessage(sidecar)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBuild queues every uploaded file for an asynchronous build into the
// out dir.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
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
	// Optional directory prefix for every docname in the batch.
	prefix := strings.Trim(r.FormValue("prefix"), "/")

	var results []map[string]any
	for _, fh := range files {
		filename, data, _, err := s.readUpload(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		docname, err := requestDocname(path.Join(prefix, parser.Docname(filename)), filename)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(docname, filename, data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"job_id":   job.ID,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"docname":  job.Docname,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/builds/%s", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// readUpload reads one multipart file, enforcing the supported extensions and
// the upload size limit. The returned status applies when err is non-nil.
func (s *Server) readUpload(fh *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(fh.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	f, err := fh.Open()
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, 0, nil
}

// requestDocname returns the docname for an upload: the explicit value when
// given, else the filename without its extension.
func requestDocname(explicit, filename string) (string, error) {
	docname := strings.TrimSpace(explicit)
	if docname == "" {
		docname = parser.Docname(filename)
	}
	return cleanDocname(docname)
}

// cleanDocname rejects docnames that would escape the out dir.
func cleanDocname(docname string) (string, error) {
	docname = strings.Trim(docname, "/")
	if docname == "" {
		return "", fmt.Errorf("docname is required")
	}
	for _, part := range strings.Split(docname, "/") {
		if part == "" || part == "." || part == ".." || strings.Contains(part, "\\") {
			return "", fmt.Errorf("invalid docname %q", docname)
		}
	}
	return docname, nil
}

func formBool(r *http.Request, key string) (bool, bool) {
	v := r.FormValue(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
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
