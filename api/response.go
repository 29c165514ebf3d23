package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

var (
	errDuplicateRequest = errors.New("duplicate request")
	errInvalidBody      = errors.New("invalid body")
)

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: true, Message: msg})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Message: msg})
}

// writeError maps err to a status code and failure envelope. notFound is the
// message used for domain.ErrNotFound. Unexpected errors are logged and
// reported without detail.
func writeError(c echo.Context, logger *log.Logger, err error, notFound string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, envelope{Success: false, Message: verr.Error(), Errors: verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrUserExists):
		return fail(c, http.StatusConflict, "User with this email or username already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, errDuplicateRequest):
		return fail(c, http.StatusConflict, "Duplicate request")
	case errors.Is(err, errInvalidBody):
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return fail(c, http.StatusInternalServerError, "Internal server error")
}

// HTTPErrorHandler renders framework errors, such as unknown routes or
// rejected bodies, with the API envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		log.WithError(err).Error("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = fail(c, status, msg)
	}
	if err != nil {
		log.WithError(err).Error("write error response")
	}
}
