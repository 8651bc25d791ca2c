package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

const (
	ContentType = "application/json"

	LiveKey = "live"
)

type errorRes struct {
	Error string `json:"error"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

// StatusCode maps the shared sentinel errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, apiutil.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, pkgerrors.ErrInvalidData),
		errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, apiutil.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrEntityExists):
		return http.StatusConflict
	case errors.Is(err, pkgerrors.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	WriteError(w, StatusCode(err), err)
}

func WriteError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(errorRes{Error: err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
