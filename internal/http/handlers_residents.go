package http

import (
	"net/http"
	"strings"

	"rwa/internal/core"
	"rwa/internal/log"
)

type residentRequest struct {
	Name    string `json:"name"`
	HouseNo string `json:"house_no"`
	Contact string `json:"contact"`
}

// handleListResidents lists the directory, filtered by q when present.
func (s *Server) handleListResidents(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		rs  []core.Resident
		err error
	)
	if q == "" {
		rs, err = s.reports.Residents(r.Context())
	} else {
		rs, err = s.reports.SearchResidents(r.Context(), q)
	}
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().JSON(toResidentsJSON(rs)).Write(w)
}

func (s *Server) handleRegisterResident(w http.ResponseWriter, r *http.Request) {
	var req residentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	res, err := s.ledger.RegisterResident(r.Context(), core.Resident{
		Name:    sanitizeInput(req.Name),
		HouseNo: sanitizeInput(req.HouseNo),
		Contact: sanitizeInput(req.Contact),
	})
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(toResidentJSON(res)).Write(w)
}

func (s *Server) handleResidentHistory(w http.ResponseWriter, r *http.Request) {
	res, entries, err := s.reports.ResidentHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(map[string]any{
		"resident":     toResidentJSON(res),
		"transactions": toTransactionsJSON(entries),
	}).Write(w)
}
