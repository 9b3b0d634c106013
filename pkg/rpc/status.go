package rpc

import (
	"net/http"

	"github.com/aretw0/mesa/pkg/domain"
)

// HTTPStatus maps a response to the status code a transport should send.
func HTTPStatus(resp domain.Response) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	switch resp.Error.Code {
	case domain.CodeMethodNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidParams, domain.CodeParseError:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
