package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bilant/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
	maxSeriesDays  = 366
)

// decodeJSON reads one JSON value from the body into v, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequestf("request body is empty")
		}
		return badRequestf("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequestf("request body must contain a single JSON value")
	}
	return nil
}

// datasetParam resolves the {id} path segment.
func datasetParam(r *http.Request) (core.DatasetID, error) {
	return core.ParseDatasetID(r.PathValue("id"))
}

// dayParam reads ?date=. Empty means the primary date.
func dayParam(r *http.Request) (core.Day, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return "", nil
	}
	return core.ParseDay(v)
}

// daysParam reads ?days= for the balance series; zero means the default.
func daysParam(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxSeriesDays {
		return 0, badRequestf("invalid days %q: must be between 1 and %d", v, maxSeriesDays)
	}
	return n, nil
}

// dayBody is the payload of the date and compare-date endpoints.
type dayBody struct {
	Date string `json:"date"`
}

func (b dayBody) day() (core.Day, error) {
	d, err := core.ParseDay(strings.TrimSpace(b.Date))
	if err != nil {
		return "", fmt.Errorf("date: %w", err)
	}
	return d, nil
}
