package sdk_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwppc/contestd/pkg/contest"
	"github.com/wwppc/contestd/pkg/sdk"
)

type call struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

func newServer(t *testing.T, code int, body string) (*httptest.Server, *call) {
	t.Helper()

	got := &call{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		*got = call{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   string(data),
		}
		w.Header().Set("Content-Type", sdk.CTJSON)
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	return ts, got
}

func newSDK(url string) sdk.SDK {
	return sdk.NewSDK(sdk.Config{
		ManagerURL:    url,
		JudgeName:     "judge-1",
		JudgeSecret:   "s3cret",
		OperatorToken: "op",
	})
}

func TestContestCalls(t *testing.T) {
	t.Parallel()

	contestBody := `{"id":"c1","type":"standard","index":1,"active":true,"start_time":"2026-01-01T10:00:00Z"}`

	cases := []struct {
		desc   string
		code   int
		body   string
		method string
		path   string
		query  string
		auth   string
		call   func(s sdk.SDK) (any, error)
		want   any
		err    bool
	}{
		{
			desc:   "list contests",
			code:   http.StatusOK,
			body:   `{"total":1,"contests":[` + contestBody + `]}`,
			method: http.MethodGet,
			path:   "/contests",
			call:   func(s sdk.SDK) (any, error) { p, err := s.ListContests(); return p.Total, err },
			want:   1,
		},
		{
			desc:   "get contest",
			code:   http.StatusOK,
			body:   contestBody,
			method: http.MethodGet,
			path:   "/contests/c1",
			call:   func(s sdk.SDK) (any, error) { c, err := s.GetContest("c1"); return c.Index, err },
			want:   1,
		},
		{
			desc:   "get missing contest",
			code:   http.StatusNotFound,
			body:   `{"error":"contest not running"}`,
			method: http.MethodGet,
			path:   "/contests/c1",
			call:   func(s sdk.SDK) (any, error) { c, err := s.GetContest("c1"); return c.ID, err },
			want:   "",
			err:    true,
		},
		{
			desc:   "live scoreboard",
			code:   http.StatusOK,
			body:   `{"contest":"c1","live":true,"entries":[{"team":"t1","score":2,"penalty":90000}]}`,
			method: http.MethodGet,
			path:   "/contests/c1/scoreboard",
			query:  "live=true",
			auth:   "Bearer op",
			call: func(s sdk.SDK) (any, error) {
				b, err := s.Scoreboard("c1", true)
				if err != nil {
					return nil, err
				}
				return b.Entries[0].Penalty, nil
			},
			want: 90 * time.Second,
		},
		{
			desc:   "accepted submission",
			code:   http.StatusAccepted,
			body:   `{"result":"SUCCESS"}`,
			method: http.MethodPost,
			path:   "/contests/c1/submissions",
			call: func(s sdk.SDK) (any, error) {
				return s.Submit("c1", sdk.Submission{Username: "alice", ProblemID: "p1", File: "x", Language: "python"})
			},
			want: "SUCCESS",
		},
		{
			desc:   "rejected submission",
			code:   http.StatusOK,
			body:   `{"result":"FILE_TOO_LARGE"}`,
			method: http.MethodPost,
			path:   "/contests/c1/submissions",
			call: func(s sdk.SDK) (any, error) {
				return s.Submit("c1", sdk.Submission{Username: "alice", ProblemID: "p1"})
			},
			want: "FILE_TOO_LARGE",
		},
		{
			desc:   "reload",
			code:   http.StatusOK,
			body:   contestBody,
			method: http.MethodPost,
			path:   "/contests/c1/reload",
			call:   func(s sdk.SDK) (any, error) { c, err := s.Reload("c1"); return c.Type, err },
			want:   "standard",
		},
		{
			desc:   "end incomplete",
			code:   http.StatusNoContent,
			method: http.MethodPost,
			path:   "/contests/c1/end",
			query:  "complete=false",
			call:   func(s sdk.SDK) (any, error) { return nil, s.EndContest("c1", false) },
		},
		{
			desc:   "discover",
			code:   http.StatusOK,
			body:   `{"total":0,"contests":[]}`,
			method: http.MethodPost,
			path:   "/discover",
			call:   func(s sdk.SDK) (any, error) { p, err := s.Discover(); return p.Total, err },
			want:   0,
		},
		{
			desc:   "judge stats",
			code:   http.StatusOK,
			body:   `{"queued":3,"leased":1,"cancelled":0,"open":true,"nodes":[]}`,
			method: http.MethodGet,
			path:   "/judge-stats",
			call:   func(s sdk.SDK) (any, error) { st, err := s.JudgeStats(); return st.Queued, err },
			want:   3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			ts, got := newServer(t, tc.code, tc.body)
			res, err := tc.call(newSDK(ts.URL))
			if tc.err {
				var se *sdk.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tc.code, se.Code)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, res)
			}
			assert.Equal(t, tc.method, got.method)
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, tc.query, got.query)
			assert.Equal(t, tc.auth, got.auth)
		})
	}
}

func TestJudgeCalls(t *testing.T) {
	t.Parallel()

	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte("judge-1:s3cret"))

	t.Run("get work", func(t *testing.T) {
		t.Parallel()

		ts, got := newServer(t, http.StatusOK, `{"problemId":"p1","file":"x","lang":"python","constraints":{"time":1000,"memory":256}}`)
		work, err := newSDK(ts.URL).GetWork()
		require.NoError(t, err)
		require.NotNil(t, work)
		assert.Equal(t, "p1", work.ProblemID)
		assert.Equal(t, 256, work.Constraints.Memory)
		assert.Equal(t, "/judge/get-work", got.path)
		assert.Equal(t, auth, got.auth)
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()

		ts, _ := newServer(t, http.StatusOK, "null\n")
		work, err := newSDK(ts.URL).GetWork()
		require.NoError(t, err)
		assert.Nil(t, work)
	})

	t.Run("return work conflict", func(t *testing.T) {
		t.Parallel()

		ts, got := newServer(t, http.StatusConflict, "")
		err := newSDK(ts.URL).ReturnWork()
		var se *sdk.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusConflict, se.Code)
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "/judge/return-work", got.path)
	})

	t.Run("finish work", func(t *testing.T) {
		t.Parallel()

		ts, got := newServer(t, http.StatusOK, "")
		scores := []contest.Score{{State: contest.Correct, Time: 12, Memory: 3}, {State: contest.TimeLimitExceeded, Subtask: 1}}
		require.NoError(t, newSDK(ts.URL).FinishWork(scores))
		assert.Equal(t, "/judge/finish-work", got.path)
		assert.Equal(t, auth, got.auth)

		var body struct {
			Scores []contest.Score `json:"scores"`
		}
		require.NoError(t, json.Unmarshal([]byte(got.body), &body))
		assert.Equal(t, scores, body.Scores)
	})

	t.Run("custom judge url", func(t *testing.T) {
		t.Parallel()

		ts, got := newServer(t, http.StatusOK, "null")
		s := sdk.NewSDK(sdk.Config{ManagerURL: "http://unused.invalid", JudgeURL: ts.URL + "/grader", JudgeName: "n", JudgeSecret: "s"})
		_, err := s.GetWork()
		require.NoError(t, err)
		assert.Equal(t, "/grader/get-work", got.path)
	})
}
