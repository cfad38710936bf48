package http

import (
	"errors"
	"io"
	"net/http"

	"bilant/internal/core"
	"bilant/internal/log"
)

func (s *Server) handleBackupStatus(w http.ResponseWriter, r *http.Request) {
	last, ok := s.ledger.LastBackup(r.Context())
	writeJSON(w, r, http.StatusOK, struct {
		LastBackupDate core.Day `json:"lastBackupDate,omitempty"`
		DoneToday      bool     `json:"doneToday"`
	}{last, ok && last == s.ledger.Today()})
}

// handleBackupExport exports immediately to every sink. With ?download=1
// the bundle itself is returned as a file.
func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.ExportBackup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("download") == "1" {
		writeDownload(w, "application/json", res.Filename, res.Data)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleBackupImport takes a bundle as the raw request body. Nothing is
// written unless the whole bundle validates.
func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequestf("read body: %v", err))
		return
	}
	keys, err := s.ledger.ImportBackup(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Backup imported over HTTP",
		log.FieldBytes, len(raw), log.FieldOperation, log.OpImport)
	writeJSON(w, r, http.StatusOK, struct {
		Keys []string `json:"keys"`
		Date dateView `json:"date"`
	}{keys, s.currentDate()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ResetToDefaults(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.currentDate())
}

func (s *Server) handleSheetsPush(w http.ResponseWriter, r *http.Request) {
	ranges, err := s.ledger.PushToSheets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		Ranges map[string]string `json:"ranges"`
	}{ranges})
}
