package http

import (
	"net/http"

	"bilant/internal/cashflow"
	"bilant/internal/core"
)

type configView struct {
	Config core.TaxConfig    `json:"config"`
	Tax    core.TaxBreakdown `json:"tax"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, configView{
		Config: s.ledger.Config(r.Context()),
		Tax:    s.ledger.Tax(r.Context()),
	})
}

// handleSetConfig replaces the whole configuration and answers with the
// recomputed taxes.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.TaxConfig
	if err := decodeJSON(w, r, maxBodyBytes, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	tax, err := s.ledger.SetConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, configView{Config: cfg, Tax: tax})
}

func (s *Server) handleTax(w http.ResponseWriter, r *http.Request) {
	tax := s.ledger.Tax(r.Context())
	writeJSON(w, r, http.StatusOK, struct {
		core.TaxBreakdown
		RoundedTotal string `json:"roundedTotal"`
	}{tax, core.RoundUnits(tax.Total).String()})
}

func (s *Server) handleGetInstallments(w http.ResponseWriter, r *http.Request) {
	schedule := s.ledger.Installments(r.Context())
	writeJSON(w, r, http.StatusOK, struct {
		Schedule cashflow.Schedule `json:"schedule"`
		Total    string            `json:"total"`
	}{schedule, schedule.Total().String()})
}

func (s *Server) handleSetInstallments(w http.ResponseWriter, r *http.Request) {
	var schedule cashflow.Schedule
	if err := decodeJSON(w, r, maxBodyBytes, &schedule); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetInstallments(r.Context(), schedule); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetInstallments(w, r)
}

func (s *Server) handleGetProjectionSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.ProjectionSettings(r.Context()))
}

func (s *Server) handleSetProjectionSettings(w http.ResponseWriter, r *http.Request) {
	var settings cashflow.Settings
	if err := decodeJSON(w, r, maxBodyBytes, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetProjectionSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Projection(r.Context()))
}

func (s *Server) handleProjectionCSV(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.ledger.ProjectionCSV(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeDownload(w, "text/csv; charset=utf-8", name, data)
}

func (s *Server) handleProjectionPDF(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.ledger.ProjectionPDF(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeDownload(w, "application/pdf", name, data)
}

type tabBody struct {
	Tab string `json:"tab"`
}

func (s *Server) handleGetTab(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, tabBody{Tab: s.ledger.SelectedTab(r.Context())})
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	var body tabBody
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetSelectedTab(r.Context(), body.Tab); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetTab(w, r)
}
