package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/negotiation"
)

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errBadBody
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func (s *Server) createOrUpdateNegotiation(w http.ResponseWriter, r *http.Request) {
	var req negotiation.CreateOrUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.Negotiations.CreateOrUpdate(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listNegotiations(w http.ResponseWriter, r *http.Request) {
	list, err := s.Negotiations.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"negotiations": list})
}

func (s *Server) generateNegotiation(w http.ResponseWriter, r *http.Request) {
	var req negotiation.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errBadBody)
		return
	}
	req.NegotiationID = chiParam(r, "id")
	results, err := s.Negotiations.Generate(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) approveNegotiation(w http.ResponseWriter, r *http.Request) {
	var req negotiation.ApproveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.NegotiationID = chiParam(r, "id")
	resp, err := s.Negotiations.Approve(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) archiveNegotiation(w http.ResponseWriter, r *http.Request) {
	n, err := s.Negotiations.Archive(r.Context(), auth.UserID(r.Context()), chiParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) negotiationHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.Negotiations.History(r.Context(), auth.UserID(r.Context()), chiParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
