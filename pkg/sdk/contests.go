package sdk

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
	"github.com/wwppc/contestd/pkg/scorer"
)

const contestsEndpoint = "/contests"

type Contest struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Session      string          `json:"session"`
	Rounds       []contest.Round `json:"rounds"`
	Index        int             `json:"index"`
	Active       bool            `json:"active"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	FreezeCutoff time.Time       `json:"freeze_cutoff"`
	Frozen       bool            `json:"frozen"`
	Ended        bool            `json:"ended"`
}

type ContestPage struct {
	Total    int       `json:"total"`
	Contests []Contest `json:"contests"`
}

type Scoreboard struct {
	Contest string         `json:"contest"`
	Live    bool           `json:"live"`
	Entries []scorer.Entry `json:"entries"`
}

type Submission struct {
	Username  string `json:"username"`
	ProblemID string `json:"problem_id"`
	File      string `json:"file"`
	Language  string `json:"language"`
}

func (sdk *contestSDK) contestURL(id string, parts ...string) string {
	u := sdk.managerURL + contestsEndpoint + "/" + url.PathEscape(id)
	for _, p := range parts {
		u += "/" + p
	}

	return u
}

func (sdk *contestSDK) ListContests() (ContestPage, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.managerURL+contestsEndpoint, nil, nil, http.StatusOK)
	if err != nil {
		return ContestPage{}, err
	}

	var page ContestPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ContestPage{}, err
	}

	return page, nil
}

func (sdk *contestSDK) GetContest(id string) (Contest, error) {
	return sdk.contest(http.MethodGet, sdk.contestURL(id))
}

func (sdk *contestSDK) Reload(id string) (Contest, error) {
	return sdk.contest(http.MethodPost, sdk.contestURL(id, "reload"))
}

func (sdk *contestSDK) contest(method, reqURL string) (Contest, error) {
	body, err := sdk.processRequest(method, reqURL, nil, nil, http.StatusOK)
	if err != nil {
		return Contest{}, err
	}

	var c Contest
	if err := json.Unmarshal(body, &c); err != nil {
		return Contest{}, err
	}

	return c, nil
}

func (sdk *contestSDK) Scoreboard(id string, live bool) (Scoreboard, error) {
	reqURL := sdk.contestURL(id, "scoreboard") + "?live=" + strconv.FormatBool(live)

	var headers map[string]string
	if live && sdk.operator != "" {
		headers = map[string]string{"Authorization": "Bearer " + sdk.operator}
	}

	body, err := sdk.processRequest(http.MethodGet, reqURL, nil, headers, http.StatusOK)
	if err != nil {
		return Scoreboard{}, err
	}

	var board Scoreboard
	if err := json.Unmarshal(body, &board); err != nil {
		return Scoreboard{}, err
	}

	return board, nil
}

func (sdk *contestSDK) Submit(id string, sub Submission) (string, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.contestURL(id, "submissions"), data, nil, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return "", err
	}

	var res struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", err
	}

	return res.Result, nil
}

func (sdk *contestSDK) EndContest(id string, complete bool) error {
	reqURL := sdk.contestURL(id, "end") + "?complete=" + strconv.FormatBool(complete)
	_, err := sdk.processRequest(http.MethodPost, reqURL, nil, nil, http.StatusNoContent)

	return err
}

func (sdk *contestSDK) Discover() (ContestPage, error) {
	body, err := sdk.processRequest(http.MethodPost, sdk.managerURL+"/discover", nil, nil, http.StatusOK)
	if err != nil {
		return ContestPage{}, err
	}

	var page ContestPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ContestPage{}, err
	}

	return page, nil
}

func (sdk *contestSDK) JudgeStats() (grader.Stats, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.managerURL+"/judge-stats", nil, nil, http.StatusOK)
	if err != nil {
		return grader.Stats{}, err
	}

	var stats grader.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return grader.Stats{}, err
	}

	return stats, nil
}
