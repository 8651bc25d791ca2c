package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/wwppc/contestd/grader"
)

var (
	ErrMissingCredentials   = errors.New("missing authorization header")
	ErrMalformedCredentials = errors.New("malformed authorization header")
	ErrInvalidSecret        = errors.New("invalid judgehost secret")
)

// authenticate decodes an Authorization header holding base64(username:secret)
// and returns the judgehost name. A leading "Basic " is accepted.
func authenticate(r *http.Request, secret string) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredentials
	}
	header = strings.TrimPrefix(strings.TrimSpace(header), "Basic ")

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return "", ErrMalformedCredentials
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return "", ErrMalformedCredentials
	}
	if subtle.ConstantTimeCompare([]byte(pass), []byte(secret)) != 1 {
		return "", ErrInvalidSecret
	}

	return user, nil
}

type nodeReq struct {
	node string
}

func (req nodeReq) validate() error {
	if req.node == "" {
		return ErrMalformedCredentials
	}

	return nil
}

type finishWorkReq struct {
	node   string
	report grader.Report
}

func (req finishWorkReq) validate() error {
	if req.node == "" {
		return ErrMalformedCredentials
	}

	return nil
}
