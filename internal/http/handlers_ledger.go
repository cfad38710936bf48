package http

import (
	"bytes"
	"net/http"

	"bilant/internal/compare"
	"bilant/internal/core"
)

type dateView struct {
	Date    core.Day `json:"date"`
	Today   core.Day `json:"today"`
	IsToday bool     `json:"isToday"`
}

func (s *Server) currentDate() dateView {
	d, today := s.ledger.Date(), s.ledger.Today()
	return dateView{Date: d, Today: today, IsToday: d == today}
}

func (s *Server) handleGetDate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.currentDate())
}

// handleSetDate moves the primary date. Every dataset is backfilled at the
// new date before the response is written.
func (s *Server) handleSetDate(w http.ResponseWriter, r *http.Request) {
	var body dayBody
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	day, err := body.day()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.ledger.SetDate(r.Context(), day); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.currentDate())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sheet, err := s.ledger.Balance(day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sheet)
}

func (s *Server) handleBalanceSeries(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		End    core.Day        `json:"end"`
		Points []compare.Point `json:"points"`
	}{s.ledger.Date(), s.ledger.BalanceSeries(days)})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Monthly())
}

func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.MonthlyTable().WriteCSV(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	writeDownload(w, "text/csv; charset=utf-8", "monthly_"+s.ledger.Date().String()+".csv", buf.Bytes())
}

func (s *Server) handleResetMonthlyDay(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.ResetMonthlyDay(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.ledger.Monthly())
}
