//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-deepresearch-go/artifact"
	"trpc.group/trpc-go/trpc-deepresearch-go/document"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

// maxUploadBytes bounds one multipart upload request.
const maxUploadBytes = 64 << 20

// summaryInputLimit caps the extracted text fed to the summarizing model call.
const summaryInputLimit = 6000

const fileSummaryPrompt = `Summarize the following document in 1-2 sentences.
State what the document is about, not that it is a document.`

// uploadResult reports the per-file outcome of an upload request.
type uploadResult struct {
	Uploaded []string          `json:"uploaded"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// handleUpload ingests one or more multipart files: each file is saved as an
// artifact, its text extracted and indexed, and a model-written summary stored
// for the supervisor. Files are processed on the worker pool; a failure at any
// step rolls back that file's artifacts, index entries and summary row.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parse multipart form: " + err.Error()})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no files in request"})
		return
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = uploadResult{Failed: make(map[string]string)}
	)
	for _, header := range headers {
		header := header
		wg.Add(1)
		task := func() {
			defer wg.Done()
			err := s.ingestFile(r.Context(), sessionID, header)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warnf("upload of %s to session %s failed: %v", header.Filename, sessionID, err)
				result.Failed[header.Filename] = err.Error()
				return
			}
			result.Uploaded = append(result.Uploaded, header.Filename)
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool rejected the task; run it inline rather than dropping it.
			task()
		}
	}
	wg.Wait()

	sort.Strings(result.Uploaded)
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	status := http.StatusOK
	if len(result.Uploaded) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// ingestFile runs the full pipeline for one upload. On any failure the file's
// partial side effects are removed before the error is reported.
func (s *Server) ingestFile(ctx context.Context, sessionID string, header *multipart.FileHeader) (err error) {
	fileName := filepath.Base(header.Filename)

	var saved, indexed, summarized bool
	defer func() {
		if err == nil {
			return
		}
		if summarized {
			if rollbackErr := s.cfg.Summaries.Delete(ctx, sessionID, fileName); rollbackErr != nil {
				log.Warnf("rollback summary for %s: %v", fileName, rollbackErr)
			}
		}
		if indexed {
			s.cfg.Index.DeleteFile(sessionID, fileName)
		}
		if saved {
			if rollbackErr := s.cfg.Storage.Delete(sessionID, artifact.KindUploaded, fileName); rollbackErr != nil {
				log.Warnf("rollback artifact for %s: %v", fileName, rollbackErr)
			}
		}
	}()

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	if err = s.cfg.Storage.Save(sessionID, artifact.KindUploaded, fileName, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	saved = true

	text, err := document.Extract(fileName, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	s.cfg.Index.IndexFile(sessionID, fileName, text)
	indexed = true

	fileSummary, err := s.summarize(ctx, text)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if err = s.cfg.Summaries.Upsert(ctx, sessionID, fileName, fileSummary); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	summarized = true
	return nil
}

// summarize asks the model for the 1-2 sentence file summary the supervisor
// routes on.
func (s *Server) summarize(ctx context.Context, text string) (string, error) {
	if len(text) > summaryInputLimit {
		text = text[:summaryInputLimit]
	}
	response, err := s.cfg.Model.GenerateContent(ctx, &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage(fileSummaryPrompt),
			model.NewUserMessage(text),
		},
	})
	if err != nil {
		return "", err
	}
	return response.Message.Content, nil
}

// handleDownload serves an uploaded or generated file. Viewable MIME types
// are served inline, everything else as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, fileName := vars["sessionID"], vars["fileName"]

	reader, _, err := s.cfg.Storage.Open(sessionID, fileName)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// Compare the bare media type: TypeByExtension may or may not append
	// parameters like charset depending on the host's mime tables.
	disposition := "attachment"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if mediaType == "application/pdf" || strings.HasPrefix(mediaType, "text/") {
			disposition = "inline"
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, fileName))
	if _, err := io.Copy(w, reader); err != nil {
		log.Warnf("streaming %s/%s: %v", sessionID, fileName, err)
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("writing response: %v", err)
	}
}
