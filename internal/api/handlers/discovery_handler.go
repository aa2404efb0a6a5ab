package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Discovera/internal/config"
	"github.com/markdave123-py/Discovera/internal/core"
	"github.com/markdave123-py/Discovera/internal/core/discovery"
	"github.com/markdave123-py/Discovera/internal/models"
)

type DiscoveryHandler struct {
	pipeline     *discovery.Pipeline
	jobs         core.JobStore
	events       *discovery.CaseEvents
	objectclient core.ObjectClient // nil when archival is not configured
	cfg          *config.Config
}

func NewDiscoveryHandler(pipeline *discovery.Pipeline, jobs core.JobStore, events *discovery.CaseEvents, obj core.ObjectClient, cfg *config.Config) *DiscoveryHandler {
	return &DiscoveryHandler{pipeline: pipeline, jobs: jobs, events: events, objectclient: obj, cfg: cfg}
}

// ProcessProduction accepts a multipart submission of production files plus
// job metadata, archives the raw bytes, and schedules the pipeline. Returns
// the processing ID immediately; progress is reported via status polling and
// the case event stream.
func (h *DiscoveryHandler) ProcessProduction(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")
	if caseID == "" {
		http.Error(w, "case_id is required", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(256 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	req := &models.ProcessRequest{
		CaseID:                     caseID,
		CaseName:                   r.FormValue("case_name"),
		ProductionBatch:            r.FormValue("production_batch"),
		ProducingParty:             r.FormValue("producing_party"),
		ConfidentialityDesignation: r.FormValue("confidentiality_designation"),
		EnableFactExtraction:       r.FormValue("enable_fact_extraction") == "true",
	}
	if v := r.FormValue("responsive_to_requests"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				req.ResponsiveToRequests = append(req.ResponsiveToRequests, part)
			}
		}
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("open %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("read %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/pdf"
		}
		req.Files = append(req.Files, models.ProductionFile{
			FileName:    filepath.Base(header.Filename),
			ContentType: contentType,
			Data:        data,
		})
	}

	// Archive raw productions before processing; archival failure is logged,
	// not fatal, because the bytes are already in hand.
	if h.objectclient != nil {
		for _, f := range req.Files {
			key := archiveKey(caseID, req.ProductionBatch, f.FileName)
			if _, err := h.objectclient.UploadFile(r.Context(), h.cfg.BucketName, key, f.Data, f.ContentType); err != nil {
				log.Printf("DiscoveryHandler: archiving %s failed: %v", f.FileName, err)
			}
		}
	}

	jobID, err := h.pipeline.Submit(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"processing_id": jobID,
		"status":        "started",
	})
}

// archiveKey is the object-storage layout for archived production files.
func archiveKey(caseID, productionBatch, fileName string) string {
	return fmt.Sprintf("cases/%s/productions/%s/%s", caseID, productionBatch, fileName)
}

// ReprocessProduction rebuilds a job from previously archived production
// files, so a production can be re-run with different settings (or after a
// pipeline fix) without re-uploading the bytes.
func (h *DiscoveryHandler) ReprocessProduction(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")
	if h.objectclient == nil {
		http.Error(w, "archival is not configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		CaseName                   string   `json:"case_name"`
		ProductionBatch            string   `json:"production_batch"`
		ProducingParty             string   `json:"producing_party"`
		ResponsiveToRequests       []string `json:"responsive_to_requests"`
		ConfidentialityDesignation string   `json:"confidentiality_designation"`
		EnableFactExtraction       bool     `json:"enable_fact_extraction"`
		FileNames                  []string `json:"file_names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ProductionBatch == "" || len(body.FileNames) == 0 {
		http.Error(w, "production_batch and file_names are required", http.StatusBadRequest)
		return
	}

	req := &models.ProcessRequest{
		CaseID:                     caseID,
		CaseName:                   body.CaseName,
		ProductionBatch:            body.ProductionBatch,
		ProducingParty:             body.ProducingParty,
		ResponsiveToRequests:       body.ResponsiveToRequests,
		ConfidentialityDesignation: body.ConfidentialityDesignation,
		EnableFactExtraction:       body.EnableFactExtraction,
	}
	for _, name := range body.FileNames {
		name = filepath.Base(name)
		data, err := h.objectclient.GetFile(r.Context(), h.cfg.BucketName, archiveKey(caseID, body.ProductionBatch, name))
		if err != nil {
			http.Error(w, fmt.Sprintf("archived file %s not found", name), http.StatusNotFound)
			return
		}
		req.Files = append(req.Files, models.ProductionFile{
			FileName:    name,
			ContentType: "application/pdf",
			Data:        data,
		})
	}

	jobID, err := h.pipeline.Submit(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"processing_id": jobID,
		"status":        "started",
	})
}

// DownloadProduction streams an archived production file back to the caller.
func (h *DiscoveryHandler) DownloadProduction(w http.ResponseWriter, r *http.Request) {
	if h.objectclient == nil {
		http.Error(w, "archival is not configured", http.StatusServiceUnavailable)
		return
	}
	caseID := chi.URLParam(r, "case_id")
	batch := chi.URLParam(r, "production_batch")
	fileName := filepath.Base(chi.URLParam(r, "file_name"))

	body, err := h.objectclient.GetObjectReader(r.Context(), h.cfg.BucketName, archiveKey(caseID, batch, fileName))
	if err != nil {
		http.Error(w, fmt.Sprintf("archived file %s not found", fileName), http.StatusNotFound)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("DiscoveryHandler: streaming %s failed: %v", fileName, err)
	}
}

// DeleteProduction removes an archived production file, e.g. after a clawback.
func (h *DiscoveryHandler) DeleteProduction(w http.ResponseWriter, r *http.Request) {
	if h.objectclient == nil {
		http.Error(w, "archival is not configured", http.StatusServiceUnavailable)
		return
	}
	caseID := chi.URLParam(r, "case_id")
	batch := chi.URLParam(r, "production_batch")
	fileName := filepath.Base(chi.URLParam(r, "file_name"))

	if err := h.objectclient.DeleteFile(r.Context(), h.cfg.BucketName, archiveKey(caseID, batch, fileName)); err != nil {
		http.Error(w, fmt.Sprintf("delete %s: %v", fileName, err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status returns a snapshot of a job for polling. Pure read; never blocks on
// pipeline progress.
func (h *DiscoveryHandler) Status(w http.ResponseWriter, r *http.Request) {
	processingID := chi.URLParam(r, "processing_id")

	job, ok := h.jobs.Get(processingID)
	if !ok {
		http.Error(w, "processing job not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{
		"status":              job.Status,
		"total_documents":     job.TotalDocuments,
		"processed_documents": job.ProcessedDocuments,
		"total_facts":         job.TotalFacts,
	}
	if job.ErrorMessage != "" {
		resp["error_message"] = job.ErrorMessage
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Cancel requests an early stop for a running job.
func (h *DiscoveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	processingID := chi.URLParam(r, "processing_id")

	if !h.pipeline.Cancel(processingID) {
		http.Error(w, "processing job not running", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}

// Events streams case-scoped progress events over Server-Sent Events, one
// subscription per client connection.
func (h *DiscoveryHandler) Events(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")
	if caseID == "" {
		http.Error(w, "case_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, cancel := h.events.Subscribe(caseID)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(event.Data)
			if err != nil {
				log.Printf("DiscoveryHandler: marshal event %s: %v", event.Type, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
