package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
	errForbidden            = errors.New("tasks belong to another user")
	errInvalidBody          = errors.New("invalid body")
)

// statusFor maps a store error to its HTTP status and the stage recorded in
// request metrics.
func statusFor(err error) (int, string) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		transition *domain.TransitionError
		transport  *domain.TransportError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &transition):
		return http.StatusConflict, "transition"
	case errors.As(err, &transport):
		return http.StatusBadGateway, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err as a JSON body. Server side failures are logged.
func writeError(c echo.Context, logger *log.Logger, err error) error {
	status, stage := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithFields(log.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"stage":  stage,
		}).WithError(err).Error("request failed")
	}
	return c.JSON(status, body)
}

func writeMessage(c echo.Context, status int, err error) error {
	return c.JSON(status, errorResponse{Error: err.Error()})
}
