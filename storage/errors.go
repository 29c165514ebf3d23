package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"todo-api/domain"
)

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusConflict || respErr.ErrorCode == "EntityAlreadyExists"
	}
	// Failed transactions do not always surface a response error.
	return err != nil && strings.Contains(err.Error(), "EntityAlreadyExists")
}

func isPreconditionFailed(err error) bool {
	return statusCode(err) == http.StatusPreconditionFailed
}

// mapTodoError translates table errors into domain errors.
func mapTodoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return domain.ErrNotFound
	case isPreconditionFailed(err):
		return domain.ErrConcurrencyConflict
	}
	return err
}
