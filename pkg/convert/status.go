package convert

import (
	"context"
	"errors"
	"net/http"

	"github.com/chazu/facet/pkg/geomerr"
)

// Error classes reported in metrics and logs.
const (
	ClassOK        = "ok"
	ClassInput     = "input"
	ClassGeometry  = "geometry"
	ClassCancelled = "cancelled"
	ClassTimeout   = "timeout"
	ClassInternal  = "internal"
)

// StatusClientClosed is the non-standard status for a request the client
// abandoned.
const StatusClientClosed = 499

// Class names the kind of failure err is, or ClassOK for nil.
func Class(err error) string {
	var bp *badParameterError
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case geomerr.IsInput(err), errors.As(err, &bp), errors.Is(err, ErrNoEncoder):
		return ClassInput
	case geomerr.IsGeometry(err):
		return ClassGeometry
	}
	return ClassInternal
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch Class(err) {
	case ClassOK:
		return http.StatusOK
	case ClassInput:
		return http.StatusBadRequest
	case ClassGeometry:
		return http.StatusUnprocessableEntity
	case ClassCancelled:
		return StatusClientClosed
	case ClassTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
