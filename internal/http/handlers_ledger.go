package http

import (
	"net/http"

	"rwa/internal/core"
	"rwa/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	entries, err := s.reports.Transactions(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().JSON(toTransactionsJSON(entries)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(toTransactionJSON(tx)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}

	saved, err := s.ledger.Record(r.Context(), tx)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.entriesRecorded.Add(1)
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogEntryRecorded(r.Context(), log.OpCreate, saved.ID, saved.ResidentName, saved.ReceiptNo, saved.Amount.Cents)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+saved.ID).
		JSON(toTransactionJSON(saved)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	tx.ID = r.PathValue("id")

	if err := s.ledger.Update(r.Context(), tx); err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	saved, err := s.ledger.Get(r.Context(), tx.ID)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(toTransactionJSON(saved)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleAllocate records a multi-month subscription payment. A repeated
// Idempotency-Key replays the stored response instead of writing again.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	key := idempotencyKey(r)
	fingerprint := requestFingerprint(req)
	if key != "" {
		held, claimed := s.idempotency.Add(key, idempotentResponse{pending: true, fingerprint: fingerprint})
		if !claimed {
			switch {
			case held.fingerprint != fingerprint:
				UnprocessableEntityError("Idempotency-Key was already used for a different request").Write(w)
			case held.pending:
				ErrorResponse(http.StatusConflict, "a request with this Idempotency-Key is still in progress").Write(w)
			default:
				s.appMetrics.idempotentReplays.Add(1)
				held.write(w)
			}
			return
		}
	}

	resp, err := s.allocate(r, req, fingerprint)
	if err != nil {
		if key != "" {
			s.idempotency.Delete(key)
		}
		s.writeServiceError(w, r, log.OpAllocate, err)
		return
	}
	if key != "" {
		s.idempotency.Set(key, resp)
	}
	resp.write(w)
}

func (s *Server) allocate(r *http.Request, req allocationRequest, fingerprint string) (idempotentResponse, error) {
	areq, err := req.toService()
	if err != nil {
		return idempotentResponse{}, err
	}
	result, err := s.ledger.Allocate(r.Context(), areq)
	if err != nil {
		return idempotentResponse{}, err
	}
	s.appMetrics.monthsAllocated.Add(int64(result.Count))
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogAllocation(r.Context(), areq.ResidentName, core.PeriodLabel(areq.From, areq.To), result.Count, result.Recorded.Cents)

	return newIdempotentResponse(http.StatusCreated, fingerprint, toAllocationJSON(result))
}

// handleSubscriptionStatus answers whether a resident already paid a month.
func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := core.ParseYearMonth(q.Get("month"))
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	who := ParseIdentity(q)
	if who.ResidentID == "" && who.Name == "" && who.HouseNo == "" {
		BadRequestError("one of name, house or resident_id is required").Write(w)
		return
	}

	tx, paid, err := s.ledger.SubscriptionStatus(r.Context(), who, month)
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	out := statusJSON{Paid: paid, Month: month.String()}
	if paid {
		entry := toTransactionJSON(tx)
		out.Entry = &entry
	}
	NewJSONResponse().JSON(out).Write(w)
}
