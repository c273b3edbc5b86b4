// internal/handlers/trip/trip_handler.go
package trip

import (
	"net/http"
	"strconv"

	"mileage-service/internal/domain/audit"
	"mileage-service/internal/domain/trip"
	"mileage-service/internal/middleware"
	"mileage-service/internal/pkg/response"
	"mileage-service/internal/service/mileage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TripHandler struct {
	mileageService *mileage.Service
	audits         audit.Reader
	logger         *zap.Logger
}

func NewTripHandler(mileageService *mileage.Service, audits audit.Reader, logger *zap.Logger) *TripHandler {
	return &TripHandler{
		mileageService: mileageService,
		audits:         audits,
		logger:         logger,
	}
}

// InsertTrip records a new trip after the continuity checks
func (h *TripHandler) InsertTrip(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)

	var req trip.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.mileageService.InsertTrip(c.Request.Context(), tc, &req)
	if err != nil {
		fail(c, h.logger, "trip rejected", err)
		return
	}

	response.Success(c, http.StatusCreated, "trip recorded", result)
}

// GetTrip returns one trip, including a soft-deleted one
func (h *TripHandler) GetTrip(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	t, err := h.mileageService.GetTrip(c.Request.Context(), tc, id)
	if err != nil {
		fail(c, h.logger, "trip not found", err)
		return
	}

	response.Success(c, http.StatusOK, "trip retrieved", t)
}

// UpdateTrip edits a trip; nil fields are left unchanged
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req trip.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.mileageService.UpdateTrip(c.Request.Context(), tc, id, &req)
	if err != nil {
		fail(c, h.logger, "update rejected", err)
		return
	}

	response.Success(c, http.StatusOK, "trip updated", result)
}

// DeleteTrip hard- or soft-deletes a trip depending on its dependents
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.mileageService.DeleteTrip(c.Request.Context(), tc, id)
	if err != nil {
		fail(c, h.logger, "delete failed", err)
		return
	}

	response.Success(c, http.StatusOK, result.Impact.Message, result)
}

// RecalculateMileage recomputes km/l of a refueling trip. Failures are
// reported in the result, not as HTTP errors.
func (h *TripHandler) RecalculateMileage(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	force, err := queryBool(c, "force")
	if err != nil {
		response.ValidationError(c, "invalid force flag", err)
		return
	}

	result, err := h.mileageService.RecalculateMileage(c.Request.Context(), tc, id, force)
	if err != nil {
		fail(c, h.logger, "recalculation failed", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// RecoverTrip returns a soft-deleted trip to the chain
func (h *TripHandler) RecoverTrip(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req trip.RecoverTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.mileageService.RecoverTrip(c.Request.Context(), tc, id, req.Reason)
	if err != nil {
		fail(c, h.logger, "recovery failed", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// CorrectOdometer changes end_km and shifts overlapping later trips
func (h *TripHandler) CorrectOdometer(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req trip.CorrectOdometerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.mileageService.CorrectOdometer(c.Request.Context(), tc, id, req.EndKm)
	if err != nil {
		fail(c, h.logger, "correction rejected", err)
		return
	}

	response.Success(c, http.StatusOK, "odometer corrected", result)
}

// GetTripAudit lists the audit history of a trip, newest first
func (h *TripHandler) GetTripAudit(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		response.ValidationError(c, "invalid limit", err)
		return
	}

	entries, err := h.audits.ListByTrip(c.Request.Context(), tc.TenantID, id, limit)
	if err != nil {
		fail(c, h.logger, "failed to load audit history", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	response.Success(c, http.StatusOK, "audit history retrieved", entries)
}
