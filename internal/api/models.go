package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/model"
)

type startModelBody struct {
	Ticker        string                     `json:"ticker"`
	CompanyName   string                     `json:"companyName"`
	FiscalYearEnd string                     `json:"fiscalYearEnd"`
	Currency      string                     `json:"currency"`
	WorkflowID    string                     `json:"workflowId"`
	Assumptions   *model.AssumptionOverrides `json:"assumptions"`
	CSVContent    string                     `json:"csvContent"`
}

// startModel accepts JSON with csvContent, or a multipart form whose "file"
// part is a CSV or XLSX statement.
func (s *Server) startModel(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeStart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.Models.Start(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeStart(r *http.Request) (dcf.StartRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body startModelBody
		if err := json.NewDecoder(io.LimitReader(r.Body, s.opts.MaxBodyBytes)).Decode(&body); err != nil {
			return dcf.StartRequest{}, errBadBody
		}
		return dcf.StartRequest{
			Ticker:        body.Ticker,
			CompanyName:   body.CompanyName,
			FiscalYearEnd: body.FiscalYearEnd,
			Currency:      body.Currency,
			WorkflowID:    body.WorkflowID,
			Assumptions:   body.Assumptions,
			Statement:     []byte(body.CSVContent),
		}, nil
	}

	if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil {
		return dcf.StartRequest{}, errBadBody
	}
	req := dcf.StartRequest{
		Ticker:        r.FormValue("ticker"),
		CompanyName:   r.FormValue("companyName"),
		FiscalYearEnd: r.FormValue("fiscalYearEnd"),
		Currency:      r.FormValue("currency"),
		WorkflowID:    r.FormValue("workflowId"),
	}
	if raw := r.FormValue("assumptions"); raw != "" {
		var o model.AssumptionOverrides
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return dcf.StartRequest{}, errBadBody
		}
		req.Assumptions = &o
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		// Missing file is reported by the service as missing input.
		return req, nil
	}
	defer f.Close() //nolint:errcheck
	data, err := io.ReadAll(f)
	if err != nil {
		return dcf.StartRequest{}, eris.Wrap(err, "api: read upload")
	}
	req.Statement = data
	return req, nil
}

func (s *Server) modelStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.Models.Status(r.Context(), auth.UserID(r.Context()), chiParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) modelHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Models.History(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
