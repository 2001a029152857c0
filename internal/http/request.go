package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fintrack/internal/query"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// listParams copies the raw list query parameters; query.Builder decides
// what they mean.
func listParams(r *http.Request) query.Params {
	q := r.URL.Query()
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }
	return query.Params{
		Search:    get("search"),
		Category:  get("category"),
		Type:      get("type"),
		StartDate: get("startDate"),
		EndDate:   get("endDate"),
		MinAmount: get("minAmount"),
		MaxAmount: get("maxAmount"),
		SortBy:    get("sortBy"),
		SortOrder: get("sortOrder"),
		Page:      get("page"),
		Limit:     get("limit"),
	}
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

func (s *Server) badBody(w http.ResponseWriter, err error) {
	msg := "Invalid JSON body"
	if errors.Is(err, errEmptyBody) {
		msg = "Request body is required"
	}
	writeFailure(w, http.StatusBadRequest, msg)
}
