package handlers

import (
	"net/http"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
)

type errorResponder func(http.ResponseWriter, *http.Request, error)

var httpErrorResponder errorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder lets the server route handler errors through its
// own error handler. nil restores the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
