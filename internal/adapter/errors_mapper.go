package adapter

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// mapHTTPError converts a non-2xx response into one of the package sentinel
// errors, preserving the response body for diagnostics.
func mapHTTPError(response *resty.Response) error {
	status := response.StatusCode()
	body := string(response.Body())

	switch {
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, body)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrNotAMember, body)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrCircleNotFound, body)
	case status == http.StatusConflict, status == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrInvitationInvalid, body)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", ErrServerFailure, status, body)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, body)
	}
}
