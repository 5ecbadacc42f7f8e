// export.go implements GET /carbon/sessions/{sessionID}/result.
// Supports content negotiation via ?format=csv (CSV) or default (JSON).

package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/grumeter/internal/domain"
)

// GetResult implements GET /carbon/sessions/{sessionID}/result.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.carbon.Result(r.Context(), owner(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err, "session")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		body := buildCSV(res)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// buildCSV encodes a result as a header row plus one data row.
func buildCSV(res domain.CalculationResult) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer writes never fail.
	w.Write(domain.CSVHeader)
	//nolint:errcheck
	w.Write(res.CSVRecord())
	w.Flush()

	return buf.Bytes()
}
