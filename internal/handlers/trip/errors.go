// internal/handlers/trip/errors.go
package trip

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mileage-service/internal/domain/trip"
	xerrors "mileage-service/internal/pkg/errors"
	"mileage-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail maps a service error onto the response envelope. Invariant violations
// carry their remediation context in data.
func fail(c *gin.Context, logger *zap.Logger, message string, err error) {
	var cerr *trip.ContinuityError
	switch {
	case errors.As(err, &cerr):
		response.Unprocessable(c, message, err, cerr.Context())
	case xerrors.Is(err, xerrors.ErrInvalidInput), xerrors.Is(err, xerrors.ErrBadRequest):
		response.ValidationError(c, message, err)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, message, err)
	case xerrors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, message, err)
	case xerrors.Is(err, xerrors.ErrAlreadyDeleted), xerrors.Is(err, xerrors.ErrConflict):
		response.Error(c, http.StatusConflict, message, err)
	case xerrors.Is(err, xerrors.ErrLockTimeout):
		response.Unavailable(c, message, err, time.Second)
	default:
		logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, message)
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", xerrors.ErrInvalidInput, name)
	}
	return v, nil
}

func parseRange(c *gin.Context) (*trip.DateRange, error) {
	return trip.ParseDateRange(c.Query("from"), c.Query("to"))
}
