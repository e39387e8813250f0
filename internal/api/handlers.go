/**
 * @description
 * This file contains the HTTP handlers for the cup-service's customer-facing API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/app"
	"github.com/sipsmart/cup-service/internal/domain"
	"github.com/sipsmart/cup-service/internal/store"
)

// CupHandlers holds the application service that handlers will use.
type CupHandlers struct {
	service *app.Service
}

// NewCupHandlers creates a new instance of CupHandlers.
func NewCupHandlers(service *app.Service) *CupHandlers {
	return &CupHandlers{service: service}
}

// resolveUser maps the authenticated principal to the internal user UUID. It
// writes the error response itself and returns false when resolution fails.
func (h *CupHandlers) resolveUser(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get principal from context")
		return uuid.Nil, false
	}

	userID, err := h.service.ResolveInternalUserID(r.Context(), principal.Subject)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=user_resolution_failed subject=%s err=%v", endpoint, principal.Subject, err)
		h.writeError(w, http.StatusBadRequest, "User not found")
		return uuid.Nil, false
	}
	return userID, true
}

// BorrowHandler handles requests to borrow a cup.
func (h *CupHandlers) BorrowHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "borrow")
	if !ok {
		return
	}

	var req domain.BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=borrow outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=borrow outcome=accepted user_id=%s cup_id=%s store_id=%s", userID, req.CupID, req.StoreID)

	result, err := h.service.Borrow(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=borrow outcome=failed user_id=%s cup_id=%s err=%v", userID, req.CupID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrUserBlacklisted), errors.Is(err, store.ErrWalletFrozen):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, store.ErrCupNotFound), errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrCupNotAvailable), errors.Is(err, store.ErrCupStoreMismatch), errors.Is(err, store.ErrStoreOutOfStock):
			var unavailable *app.CupUnavailableError
			if errors.As(err, &unavailable) {
				h.writeJSON(w, http.StatusConflict, map[string]string{
					"error":          err.Error(),
					"current_status": string(unavailable.Status),
				})
			} else {
				h.writeError(w, http.StatusConflict, err.Error())
			}
		case errors.Is(err, app.ErrInvalidCupID), errors.Is(err, app.ErrInvalidStoreID):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// ReturnHandler handles requests to return a borrowed cup.
func (h *CupHandlers) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "return")
	if !ok {
		return
	}

	var req domain.ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=return outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=return outcome=accepted user_id=%s cup_id=%s store_id=%s", userID, req.CupID, req.StoreID)

	result, err := h.service.Return(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=return outcome=failed user_id=%s cup_id=%s err=%v", userID, req.CupID, err)
		switch {
		case errors.Is(err, store.ErrCupNotFound), errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrNoActiveTransaction), errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrCupNotBorrowedByUser):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, store.ErrTransactionAlreadyClosed):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, app.ErrInvalidCupID), errors.Is(err, app.ErrInvalidStoreID):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// TransactionHandler returns one of the caller's borrow records by id.
func (h *CupHandlers) TransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "transaction")
	if !ok {
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=transaction outcome=failed user_id=%s transaction_id=%s err=%v", userID, transactionID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, txn)
}

// TripHandler handles requests to pay a public transport trip from the wallet.
func (h *CupHandlers) TripHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "trip")
	if !ok {
		return
	}

	var req domain.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=trip outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.PayTrip(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=trip outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrWalletFrozen), errors.Is(err, store.ErrUserBlacklisted):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, store.ErrRateNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidDistance), errors.Is(err, app.ErrInvalidVehicleType):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ApplyVoucherHandler handles requests to price a voucher against an order.
func (h *CupHandlers) ApplyVoucherHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "apply_voucher")
	if !ok {
		return
	}

	var req domain.ApplyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=apply_voucher outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.ApplyVoucher(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=apply_voucher outcome=failed user_id=%s code=%s err=%v", userID, req.VoucherCode, err)
		switch {
		case errors.Is(err, store.ErrVoucherNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case app.IsVoucherValidationError(err),
			errors.Is(err, app.ErrInvalidVoucherCode),
			errors.Is(err, app.ErrInvalidOrderAmount):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ImpactHandler returns the caller's environmental impact summary.
func (h *CupHandlers) ImpactHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "impact")
	if !ok {
		return
	}

	summary, err := h.service.ImpactSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api endpoint=impact outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// writeJSON is a helper for writing JSON responses.
func (h *CupHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *CupHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
