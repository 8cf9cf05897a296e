package httpadapter

import (
	"net/http"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrLocationMissing):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrNoAttachment):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrFetchFailure),
		domain.IsKind(err, domain.ErrInvocationFailure),
		domain.IsKind(err, domain.ErrPublishFailure),
		domain.IsKind(err, domain.ErrNoOutput),
		domain.IsKind(err, domain.ErrUnsupportedOutputVariant),
		domain.IsKind(err, domain.ErrEmptyContent),
		domain.IsKind(err, domain.ErrUnsupportedContentVariant),
		domain.IsKind(err, domain.ErrInvalidPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
