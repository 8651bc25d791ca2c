package api

import (
	"net/http"

	"github.com/absmach/supermq"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/scorer"
)

var (
	_ supermq.Response = (*contestResponse)(nil)
	_ supermq.Response = (*listContestsResponse)(nil)
	_ supermq.Response = (*scoreboardResponse)(nil)
	_ supermq.Response = (*submitResponse)(nil)
	_ supermq.Response = (*endResponse)(nil)
	_ supermq.Response = (*judgeStatsResponse)(nil)
)

type contestResponse struct {
	manager.HostState
}

func (c contestResponse) Code() int {
	return http.StatusOK
}

func (c contestResponse) Headers() map[string]string {
	return map[string]string{}
}

func (c contestResponse) Empty() bool {
	return false
}

type listContestsResponse struct {
	Total    int                 `json:"total"`
	Contests []manager.HostState `json:"contests"`
}

func (l listContestsResponse) Code() int {
	return http.StatusOK
}

func (l listContestsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listContestsResponse) Empty() bool {
	return false
}

type scoreboardResponse struct {
	Contest string         `json:"contest"`
	Live    bool           `json:"live"`
	Entries []scorer.Entry `json:"entries"`
}

func (s scoreboardResponse) Code() int {
	return http.StatusOK
}

func (s scoreboardResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s scoreboardResponse) Empty() bool {
	return false
}

type submitResponse struct {
	Result manager.SubmitResult `json:"result"`
}

func (s submitResponse) Code() int {
	if s.Result == manager.Success {
		return http.StatusAccepted
	}

	return http.StatusOK
}

func (s submitResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s submitResponse) Empty() bool {
	return false
}

type endResponse struct{}

func (e endResponse) Code() int {
	return http.StatusNoContent
}

func (e endResponse) Headers() map[string]string {
	return map[string]string{}
}

func (e endResponse) Empty() bool {
	return true
}

type judgeStatsResponse struct {
	grader.Stats
}

func (j judgeStatsResponse) Code() int {
	return http.StatusOK
}

func (j judgeStatsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (j judgeStatsResponse) Empty() bool {
	return false
}
