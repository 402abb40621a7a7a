// Package failure maps the typed failures of the gateway stack to stable
// codes and HTTP statuses for API responses and batch error lists.
package failure

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
)

// Codes reported next to each failure.
const (
	CodeConfiguration  = "configuration"
	CodeBudgetExceeded = "budget_exceeded"
	CodeRateLimited    = "rate_limited"
	CodeNotWarmed      = "not_warmed"
	CodeTransport      = "transport"
	CodeHTTP           = "http"
	CodeApplication    = "application"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

// ErrInvalidRequest marks caller mistakes such as a malformed date.
var ErrInvalidRequest = errors.New("invalid request")

// Code classifies err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, upstream.ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, gateway.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, gateway.ErrBudgetExceeded):
		return CodeBudgetExceeded
	case errors.Is(err, fixtures.ErrNotWarmed):
		return CodeNotWarmed
	case errors.Is(err, upstream.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return CodeTransport
	case errors.Is(err, upstream.ErrHTTP):
		return CodeHTTP
	case errors.Is(err, upstream.ErrApplication):
		return CodeApplication
	default:
		return CodeInternal
	}
}

// Status returns the HTTP status that represents err.
func Status(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeConfiguration:
		return http.StatusUnauthorized
	case CodeRateLimited, CodeBudgetExceeded:
		return http.StatusTooManyRequests
	case CodeNotWarmed:
		return http.StatusPreconditionRequired
	case CodeTransport:
		var ue *upstream.UpstreamError
		if (errors.As(err, &ue) && ue.Timeout) || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case CodeHTTP:
		var ue *upstream.UpstreamError
		if errors.As(err, &ue) && ue.StatusCode >= 400 {
			return ue.StatusCode
		}
		return http.StatusBadGateway
	case CodeApplication:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
