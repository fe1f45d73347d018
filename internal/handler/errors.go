package handler

import (
	"errors"
	"net/http"

	"crm-backend/internal/domain"
	"crm-backend/internal/service"
)

// writeServiceError maps service and domain errors onto the response envelope.
// Store failures fall through to 500 with their message.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		authErr *domain.AuthorizationError
		valErr  *domain.ValidationError
		extErr  *domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &authErr):
		if authErr.Unauthenticated {
			writeError(w, http.StatusUnauthorized, authErr.Error())
			return
		}
		writeError(w, http.StatusForbidden, authErr.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountBanned):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrLocationUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &extErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
