// internal/handlers/trip/chain_handler.go
package trip

import (
	"net/http"

	"mileage-service/internal/domain/trip"
	"mileage-service/internal/middleware"
	"mileage-service/internal/pkg/response"
	"mileage-service/internal/service/mileage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChainHandler struct {
	mileageService *mileage.Service
	logger         *zap.Logger
}

func NewChainHandler(mileageService *mileage.Service, logger *zap.Logger) *ChainHandler {
	return &ChainHandler{
		mileageService: mileageService,
		logger:         logger,
	}
}

type FleetAuditRequest struct {
	VehicleIDs []int64 `json:"vehicle_ids"`
	AutoFix    bool    `json:"auto_fix"`
}

// ListChain returns a vehicle's active trips in chain order
func (h *ChainHandler) ListChain(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	vehicleID, ok := paramID(c, "vehicle_id")
	if !ok {
		return
	}

	trips, err := h.mileageService.ListChain(c.Request.Context(), tc, vehicleID)
	if err != nil {
		fail(c, h.logger, "failed to list trips", err)
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}

	response.Success(c, http.StatusOK, "trips retrieved", gin.H{
		"vehicle_id": vehicleID,
		"trips":      trips,
		"count":      len(trips),
	})
}

// ValidateChain audits a vehicle chain, optionally fixing what it can
func (h *ChainHandler) ValidateChain(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	vehicleID, ok := paramID(c, "vehicle_id")
	if !ok {
		return
	}

	autoFix, err := queryBool(c, "auto_fix")
	if err != nil {
		response.ValidationError(c, "invalid auto_fix flag", err)
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		response.ValidationError(c, "invalid date range", err)
		return
	}

	issues, err := h.mileageService.ValidateChain(c.Request.Context(), tc, vehicleID, trip.ValidateOptions{
		AutoFix: autoFix,
		Range:   rng,
	})
	if err != nil {
		fail(c, h.logger, "chain validation failed", err)
		return
	}

	response.Success(c, http.StatusOK, "chain validated", gin.H{
		"vehicle_id": vehicleID,
		"issues":     issues,
	})
}

// AnalyzeContinuity scores the odometer continuity of a vehicle
func (h *ChainHandler) AnalyzeContinuity(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	vehicleID, ok := paramID(c, "vehicle_id")
	if !ok {
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		response.ValidationError(c, "invalid date range", err)
		return
	}

	report, err := h.mileageService.AnalyzeContinuity(c.Request.Context(), tc, vehicleID, rng)
	if err != nil {
		fail(c, h.logger, "continuity analysis failed", err)
		return
	}

	response.Success(c, http.StatusOK, "continuity analyzed", report)
}

// DetectChainBreaks lists every non-zero gap between adjacent trips
func (h *ChainHandler) DetectChainBreaks(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)
	vehicleID, ok := paramID(c, "vehicle_id")
	if !ok {
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		response.ValidationError(c, "invalid date range", err)
		return
	}

	breaks, err := h.mileageService.DetectChainBreaks(c.Request.Context(), tc, vehicleID, rng)
	if err != nil {
		fail(c, h.logger, "break detection failed", err)
		return
	}

	response.Success(c, http.StatusOK, "chain breaks detected", gin.H{
		"vehicle_id": vehicleID,
		"breaks":     breaks,
		"count":      len(breaks),
	})
}

// ValidateFleet audits many vehicles at once (admin only). An empty list
// audits every vehicle of the tenant.
func (h *ChainHandler) ValidateFleet(c *gin.Context) {
	tc := middleware.MustGetTenantContext(c)

	var req FleetAuditRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", err)
			return
		}
	}

	results, err := h.mileageService.ValidateFleet(c.Request.Context(), tc, req.VehicleIDs, req.AutoFix)
	if err != nil {
		fail(c, h.logger, "fleet audit failed", err)
		return
	}

	response.Success(c, http.StatusOK, "fleet audited", gin.H{
		"vehicles": results,
		"count":    len(results),
	})
}
