package bedrock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// errorTypeHeader carries the service exception name on Converse failures.
const errorTypeHeader = "X-Amzn-Errortype"

// Converse exceptions that clear up on their own.
var temporaryErrorTypes = map[string]bool{
	"ThrottlingException":         true,
	"ModelNotReadyException":      true,
	"ModelTimeoutException":       true,
	"ServiceUnavailableException": true,
	"InternalServerException":     true,
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	// ErrorType is the exception name without the ":http://..." suffix.
	ErrorType string
	Body      string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "bedrock status error"
	}
	msg := fmt.Sprintf("bedrock %s status: %s", e.Operation, e.Status)
	if e.ErrorType != "" {
		msg += " (" + e.ErrorType + ")"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func errorTypeFrom(header http.Header) string {
	name, _, _ := strings.Cut(header.Get(errorTypeHeader), ":")
	return strings.TrimSpace(name)
}

// isTemporary reports whether a failed Converse call may succeed unchanged
// on a later attempt.
func isTemporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if temporaryErrorTypes[statusErr.ErrorType] {
			return true
		}
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return statusErr.StatusCode >= http.StatusInternalServerError && statusErr.StatusCode != http.StatusNotImplemented
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || !isTemporary(err) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
