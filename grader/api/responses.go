package api

import (
	"encoding/json"
	"net/http"

	"github.com/absmach/supermq"
	"github.com/wwppc/contestd/grader"
)

var (
	_ supermq.Response = (*workRes)(nil)
	_ supermq.Response = (*ackRes)(nil)
)

// workRes encodes as the bare work object, or null when there is none.
type workRes struct {
	work *grader.Work
}

func (res workRes) MarshalJSON() ([]byte, error) {
	return json.Marshal(res.work)
}

func (res workRes) Code() int {
	return http.StatusOK
}

func (res workRes) Headers() map[string]string {
	return map[string]string{}
}

func (res workRes) Empty() bool {
	return false
}

type ackRes struct{}

func (res ackRes) Code() int {
	return http.StatusOK
}

func (res ackRes) Headers() map[string]string {
	return map[string]string{}
}

func (res ackRes) Empty() bool {
	return true
}
