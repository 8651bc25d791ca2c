package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/manager/api"
	"github.com/wwppc/contestd/manager/mocks"
	"github.com/wwppc/contestd/pkg/scorer"
)

const operatorToken = "operator-token"

func newServer(t *testing.T) (*httptest.Server, *mocks.MockService) {
	t.Helper()

	return newServerWithConfig(t, api.Config{GraderPath: "/judge", OperatorToken: operatorToken})
}

func newServerWithConfig(t *testing.T, cfg api.Config) (*httptest.Server, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	judge := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, r.URL.Path)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(api.MakeHandler(svc, judge, cfg, logger, "test-instance"))
	t.Cleanup(ts.Close)

	return ts, svc
}

type response struct {
	code int
	body string
}

func do(t *testing.T, ts *httptest.Server, method, path, contentType, body string) response {
	t.Helper()

	return doAuth(t, ts, method, path, contentType, body, "")
}

func doAuth(t *testing.T, ts *httptest.Server, method, path, contentType, body, token string) response {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return response{code: res.StatusCode, body: strings.TrimSpace(string(data))}
}

func TestListContests(t *testing.T) {
	t.Parallel()

	ts, svc := newServer(t)
	states := []manager.HostState{{ID: "c1", Type: "standard", Index: 0, Active: true}}
	svc.On("ListContests", mock.Anything).Return(states, nil).Once()

	res := do(t, ts, http.MethodGet, "/contests", "", "")
	require.Equal(t, http.StatusOK, res.code)

	var body struct {
		Total    int                 `json:"total"`
		Contests []manager.HostState `json:"contests"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.body), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "c1", body.Contests[0].ID)
	assert.True(t, body.Contests[0].Active)
}

func TestGetContest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		state manager.HostState
		err   error
		code  int
	}{
		{desc: "running", state: manager.HostState{ID: "c1", Index: 1}, code: http.StatusOK},
		{desc: "not running", err: manager.ErrContestNotRunning, code: http.StatusNotFound},
		{desc: "internal", err: errors.New("boom"), code: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			ts, svc := newServer(t)
			svc.On("GetContest", mock.Anything, "c1").Return(tc.state, tc.err).Once()

			res := do(t, ts, http.MethodGet, "/contests/c1", "", "")
			assert.Equal(t, tc.code, res.code)
			if tc.err == nil {
				assert.Contains(t, res.body, `"index":1`)
			}
		})
	}
}

func TestScoreboard(t *testing.T) {
	t.Parallel()

	entries := []scorer.Entry{{Team: "t1", Standing: scorer.Standing{Score: 2, Penalty: 90 * time.Second}}}

	cases := []struct {
		desc  string
		query string
		token string
		live  bool
		code  int
	}{
		{desc: "public by default", query: "", live: false, code: http.StatusOK},
		{desc: "public ignores token", query: "?live=false", token: "wrong", live: false, code: http.StatusOK},
		{desc: "live", query: "?live=true", token: operatorToken, live: true, code: http.StatusOK},
		{desc: "live without token", query: "?live=true", code: http.StatusUnauthorized},
		{desc: "live with wrong token", query: "?live=true", token: "wrong", code: http.StatusForbidden},
		{desc: "invalid flag", query: "?live=maybe", code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			ts, svc := newServer(t)
			svc.On("Scoreboard", mock.Anything, "c1", tc.live).Return(entries, nil).Maybe()

			res := doAuth(t, ts, http.MethodGet, "/contests/c1/scoreboard"+tc.query, "", "", tc.token)
			require.Equal(t, tc.code, res.code)
			if tc.code == http.StatusOK {
				assert.JSONEq(t, `{"contest":"c1","live":`+map[bool]string{true: "true", false: "false"}[tc.live]+`,"entries":[{"team":"t1","score":2,"penalty":90000}]}`, res.body)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	req := manager.SubmitRequest{Username: "alice", ProblemID: "p1", File: "print(1)", Language: "python"}
	body := `{"username":"alice","problem_id":"p1","file":"print(1)","language":"python"}`

	cases := []struct {
		desc        string
		contentType string
		body        string
		result      manager.SubmitResult
		err         error
		call        bool
		code        int
		want        string
	}{
		{desc: "accepted", contentType: "application/json", body: body, result: manager.Success, call: true, code: http.StatusAccepted, want: "SUCCESS"},
		{desc: "rejected", contentType: "application/json", body: body, result: manager.FileTooLarge, call: true, code: http.StatusOK, want: "FILE_TOO_LARGE"},
		{desc: "not running", contentType: "application/json", body: body, err: manager.ErrContestNotRunning, call: true, code: http.StatusNotFound},
		{desc: "wrong content type", contentType: "text/plain", body: body, code: http.StatusUnsupportedMediaType},
		{desc: "malformed body", contentType: "application/json", body: "{", code: http.StatusBadRequest},
		{desc: "missing problem", contentType: "application/json", body: `{"username":"alice"}`, code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			ts, svc := newServer(t)
			if tc.call {
				svc.On("Submit", mock.Anything, "c1", req).Return(tc.result, tc.err).Once()
			}

			res := do(t, ts, http.MethodPost, "/contests/c1/submissions", tc.contentType, tc.body)
			assert.Equal(t, tc.code, res.code)
			if tc.want != "" {
				assert.JSONEq(t, `{"result":"`+tc.want+`"}`, res.body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLiveScoreboardDisabledWithoutToken(t *testing.T) {
	t.Parallel()

	ts, svc := newServerWithConfig(t, api.Config{GraderPath: "/judge"})
	svc.On("Scoreboard", mock.Anything, "c1", false).Return([]scorer.Entry{}, nil).Once()

	assert.Equal(t, http.StatusForbidden, doAuth(t, ts, http.MethodGet, "/contests/c1/scoreboard?live=true", "", "", "anything").code)
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/contests/c1/scoreboard", "", "").code)
	svc.AssertNotCalled(t, "Scoreboard", mock.Anything, "c1", true)
}

func TestSubmitLargeFileReachesService(t *testing.T) {
	t.Parallel()

	const size = 3 << 20
	file := strings.Repeat("a", size)
	req := manager.SubmitRequest{Username: "alice", ProblemID: "p1", File: file, Language: "python"}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	cases := []struct {
		desc  string
		limit int64
		call  bool
		code  int
	}{
		{desc: "limit from configured size", limit: api.SubmitBodyLimit(size), call: true, code: http.StatusOK},
		{desc: "default limit", limit: 0, code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			ts, svc := newServerWithConfig(t, api.Config{MaxSubmitBody: tc.limit})
			if tc.call {
				svc.On("Submit", mock.Anything, "c1", req).Return(manager.FileTooLarge, nil).Once()
			}

			res := do(t, ts, http.MethodPost, "/contests/c1/submissions", "application/json", string(data))
			assert.Equal(t, tc.code, res.code)
			if tc.call {
				assert.JSONEq(t, `{"result":"FILE_TOO_LARGE"}`, res.body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSubmitBodyLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1<<20), api.SubmitBodyLimit(0))
	assert.Equal(t, int64(1<<20), api.SubmitBodyLimit(10240))
	assert.Greater(t, api.SubmitBodyLimit(1<<20), int64(6<<20))
}

func TestReloadAndEnd(t *testing.T) {
	t.Parallel()

	ts, svc := newServer(t)
	svc.On("Reload", mock.Anything, "c1").Return(manager.HostState{ID: "c1"}, nil).Once()
	svc.On("EndContest", mock.Anything, "c1", true).Return(nil).Once()
	svc.On("EndContest", mock.Anything, "c1", false).Return(nil).Once()

	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/contests/c1/reload", "", "").code)
	assert.Equal(t, http.StatusNoContent, do(t, ts, http.MethodPost, "/contests/c1/end", "", "").code)
	assert.Equal(t, http.StatusNoContent, do(t, ts, http.MethodPost, "/contests/c1/end?complete=false", "", "").code)
	svc.AssertExpectations(t)
}

func TestDiscoverAndJudgeStats(t *testing.T) {
	t.Parallel()

	ts, svc := newServer(t)
	svc.On("Discover", mock.Anything).Return(nil).Once()
	svc.On("ListContests", mock.Anything).Return([]manager.HostState{}, nil).Once()
	svc.On("JudgeStats", mock.Anything).Return(grader.Stats{Queued: 4, Open: true}).Once()

	res := do(t, ts, http.MethodPost, "/discover", "", "")
	assert.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"total":0,"contests":[]}`, res.body)

	res = do(t, ts, http.MethodGet, "/judge-stats", "", "")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `"queued":4`)
}

func TestMountsJudgeHandler(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)

	res := do(t, ts, http.MethodGet, "/judge/get-work", "", "")
	assert.Equal(t, http.StatusTeapot, res.code)
	assert.Equal(t, "/judge/get-work", res.body)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)

	res := do(t, ts, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "test-instance")
}
