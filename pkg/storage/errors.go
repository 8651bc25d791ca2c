package storage

import "errors"

var ErrUnknownType = errors.New("unsupported storage type")
