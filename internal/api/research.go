package api

import (
	"net/http"

	"github.com/sells-group/dealdesk/internal/auth"
)

type analyzeBody struct {
	Ticker string `json:"ticker"`
}

func (s *Server) analyzeCompany(w http.ResponseWriter, r *http.Request) {
	if s.Research == nil {
		writeError(w, r, errNotConfigured)
		return
	}
	var body analyzeBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Research.Analyze(r.Context(), auth.UserID(r.Context()), body.Ticker)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) researchUsage(w http.ResponseWriter, r *http.Request) {
	if s.Research == nil {
		writeError(w, r, errNotConfigured)
		return
	}
	u, err := s.Research.Usage(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
