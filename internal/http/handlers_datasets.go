package http

import (
	"bytes"
	"net/http"

	"github.com/shopspring/decimal"

	"bilant/internal/compare"
	"bilant/internal/core"
)

// columnView describes a computed column to clients.
type columnView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// datasetView is the JSON form of a dataset descriptor.
type datasetView struct {
	ID          core.DatasetID `json:"id"`
	Title       string         `json:"title"`
	Fields      core.Schema    `json:"fields"`
	Computed    []columnView   `json:"computed,omitempty"`
	TotalColumn string         `json:"totalColumn"`
}

func newDatasetView(ds core.Dataset) datasetView {
	v := datasetView{
		ID:          ds.ID,
		Title:       ds.Title,
		Fields:      ds.Schema,
		TotalColumn: ds.TotalColumn,
	}
	for _, c := range ds.Computed {
		v.Computed = append(v.Computed, columnView{Name: c.Name, Label: c.Label})
	}
	return v
}

// rowsView is a snapshot with its column totals.
type rowsView struct {
	Dataset core.DatasetID             `json:"dataset"`
	Date    core.Day                   `json:"date"`
	Rows    []core.Row                 `json:"rows"`
	Totals  map[string]decimal.Decimal `json:"totals"`
	CanUndo bool                       `json:"canUndo"`
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := s.ledger.Datasets()
	out := make([]datasetView, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, newDatasetView(ds))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// writeRows responds with the snapshot of id at day after rows were read or
// changed there.
func (s *Server) writeRows(w http.ResponseWriter, r *http.Request, id core.DatasetID, day core.Day, rows []core.Row) {
	if day == "" {
		day = s.ledger.Date()
	}
	totals, err := s.ledger.Totals(id, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.Row{}
	}
	writeJSON(w, r, http.StatusOK, rowsView{
		Dataset: id,
		Date:    day,
		Rows:    rows,
		Totals:  totals,
		CanUndo: s.ledger.CanUndo(id),
	})
}

func (s *Server) handleGetRows(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := dayParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.ledger.Rows(id, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, day, rows)
}

func (s *Server) handleSetRows(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := dayParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Rows []core.Row `json:"rows"`
	}
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Rows == nil {
		writeError(w, r, badRequestf("rows is required"))
		return
	}
	rows, err := s.ledger.SetRows(r.Context(), id, day, body.Rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, day, rows)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.ledger.AddRow(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, "", rows)
}

func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Index *int   `json:"index"`
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Index == nil || body.Field == "" {
		writeError(w, r, badRequestf("index and field are required"))
		return
	}
	rows, err := s.ledger.UpdateCell(r.Context(), id, *body.Index, body.Field, body.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, "", rows)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Index *int `json:"index"`
	}
	if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Index == nil {
		writeError(w, r, badRequestf("index is required"))
		return
	}
	rows, err := s.ledger.DeleteRow(r.Context(), id, *body.Index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, "", rows)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.ledger.Undo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRows(w, r, id, "", rows)
}

func (s *Server) writeCompare(w http.ResponseWriter, r *http.Request, id core.DatasetID) {
	res, err := s.ledger.Compare(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		Dataset core.DatasetID `json:"dataset"`
		compare.Result
	}{id, res})
}

func (s *Server) handleGetCompare(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeCompare(w, r, id)
}

// handleSetCompare stores the compare date. A date equal to the primary
// date is moved to the day before, which the response reflects.
func (s *Server) handleSetCompare(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
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
	if _, err := s.ledger.SetCompareDate(id, day); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeCompare(w, r, id)
}

func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := dayParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if day == "" {
		day = s.ledger.Date()
	}
	table, err := s.ledger.DatasetTable(id, day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	writeDownload(w, "text/csv; charset=utf-8", string(id)+"_"+day.String()+".csv", buf.Bytes())
}
