/**
 * @description
 * This file contains the HTTP handlers for the admin surface: settlement batch
 * management, bulk cup import, and cup loss/damage reporting. All endpoints in
 * this file sit behind the admin role middleware.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sipsmart/cup-service/internal/app"
	"github.com/sipsmart/cup-service/internal/domain"
	"github.com/sipsmart/cup-service/internal/store"
)

// SettlementActionHandler dispatches the admin settlement actions. One endpoint
// covers batch creation, approval, payout, the escrow snapshot, and inventory
// reconciliation so the admin console only needs a single integration point.
func (h *CupHandlers) SettlementActionHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.resolveUser(w, r, "settlements")
	if !ok {
		return
	}

	var req domain.SettlementActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=settlements outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log.Printf("level=info component=api endpoint=settlements outcome=accepted admin_id=%s action=%s", adminID, req.Action)

	switch req.Action {
	case "create":
		if req.StoreID == nil || req.PeriodStart == nil || req.PeriodEnd == nil {
			h.writeError(w, http.StatusBadRequest, "store_id, period_start and period_end are required")
			return
		}
		batch, err := h.service.CreateSettlementBatch(r.Context(), *req.StoreID, *req.PeriodStart, *req.PeriodEnd)
		if err != nil {
			h.writeSettlementError(w, adminID.String(), req.Action, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, batch)

	case "approve":
		if req.BatchID == nil {
			h.writeError(w, http.StatusBadRequest, "batch_id is required")
			return
		}
		batch, err := h.service.ApproveSettlementBatch(r.Context(), *req.BatchID, adminID)
		if err != nil {
			h.writeSettlementError(w, adminID.String(), req.Action, err)
			return
		}
		h.writeJSON(w, http.StatusOK, batch)

	case "payout":
		if req.BatchID == nil {
			h.writeError(w, http.StatusBadRequest, "batch_id is required")
			return
		}
		batch, err := h.service.PayoutSettlementBatch(r.Context(), *req.BatchID, req.PaymentReference)
		if err != nil {
			h.writeSettlementError(w, adminID.String(), req.Action, err)
			return
		}
		h.writeJSON(w, http.StatusOK, batch)

	case "escrow":
		summary, err := h.service.EscrowSummary(r.Context())
		if err != nil {
			h.writeSettlementError(w, adminID.String(), req.Action, err)
			return
		}
		h.writeJSON(w, http.StatusOK, summary)

	case "reconciliation":
		if req.StoreID == nil {
			h.writeError(w, http.StatusBadRequest, "store_id is required")
			return
		}
		drifts, err := h.service.ReconcileInventory(r.Context(), *req.StoreID)
		if err != nil {
			h.writeSettlementError(w, adminID.String(), req.Action, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"store_id": req.StoreID.String(),
			"drifts":   drifts,
		})

	default:
		h.writeError(w, http.StatusBadRequest, "Unknown settlement action")
	}
}

func (h *CupHandlers) writeSettlementError(w http.ResponseWriter, adminID, action string, err error) {
	log.Printf("level=warn component=api endpoint=settlements outcome=failed admin_id=%s action=%s err=%v", adminID, action, err)
	switch {
	case errors.Is(err, store.ErrSettlementNotFound), errors.Is(err, store.ErrStoreNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrBatchNotPending), errors.Is(err, app.ErrBatchNotApproved):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidPeriod),
		errors.Is(err, app.ErrMissingPaymentRef),
		errors.Is(err, app.ErrInvalidSettlementInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ImportCupsHandler handles bulk cup registration for a store.
func (h *CupHandlers) ImportCupsHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.resolveUser(w, r, "import_cups")
	if !ok {
		return
	}

	var req domain.BulkCupImport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=import_cups outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.ImportCups(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=import_cups outcome=failed admin_id=%s store_id=%s err=%v", adminID, req.StoreID, err)
		switch {
		case errors.Is(err, store.ErrStoreNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrEmptyCupImport), errors.Is(err, app.ErrInvalidStoreID):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=import_cups outcome=success admin_id=%s store_id=%s created=%d", adminID, req.StoreID, created)
	h.writeJSON(w, http.StatusCreated, map[string]int{"created": created})
}

// ReportCupHandler handles loss/damage reports and lifecycle overrides for a cup.
func (h *CupHandlers) ReportCupHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.resolveUser(w, r, "report_cup")
	if !ok {
		return
	}

	var req domain.CupReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=report_cup outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ReportCup(r.Context(), req); err != nil {
		log.Printf("level=warn component=api endpoint=report_cup outcome=failed admin_id=%s cup_id=%s action=%s err=%v", adminID, req.CupID, req.Action, err)
		switch {
		case errors.Is(err, store.ErrCupNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrCupNotRetired), errors.Is(err, store.ErrCupNotCleaning):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, app.ErrInvalidCupID), errors.Is(err, app.ErrInvalidReportAction):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=report_cup outcome=success admin_id=%s cup_id=%s action=%s", adminID, req.CupID, req.Action)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Cup updated"})
}
