package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/wwppc/contestd/manager"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

var (
	ErrMissingToken = errors.New("missing operator token")
	ErrInvalidToken = errors.New("invalid operator token")
	ErrLiveDisabled = errors.New("live scoreboard is disabled")
)

const bearerPrefix = "Bearer "

func authorizeOperator(r *http.Request, token string) error {
	if token == "" {
		return ErrLiveDisabled
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, bearerPrefix) {
		return ErrMissingToken
	}
	got := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return ErrInvalidToken
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type scoreboardReq struct {
	id   string
	live bool
}

func (s *scoreboardReq) validate() error {
	if s.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type submitReq struct {
	id string
	manager.SubmitRequest
}

func (s *submitReq) validate() error {
	if s.id == "" {
		return apiutil.ErrMissingID
	}
	if s.Username == "" || s.ProblemID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return nil
}

type endReq struct {
	id       string
	complete bool
}

func (e *endReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
