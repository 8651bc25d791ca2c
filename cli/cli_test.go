package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwppc/contestd"
	"github.com/wwppc/contestd/pkg/sdk"
)

func TestWaitForWork(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc    string
		answers []int
		calls   int32
		err     bool
	}{
		{desc: "work after empty polls", answers: []int{http.StatusOK, http.StatusOK, http.StatusOK}, calls: 3},
		{desc: "server error is retried", answers: []int{http.StatusInternalServerError, http.StatusOK}, calls: 2},
		{desc: "bad secret stops polling", answers: []int{http.StatusForbidden}, calls: 1, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := int(calls.Add(1))
				code := tc.answers[min(n, len(tc.answers))-1]
				w.WriteHeader(code)
				if code == http.StatusOK {
					if n == len(tc.answers) {
						_, _ = io.WriteString(w, `{"problemId":"p1","file":"x","lang":"python","constraints":{"time":1,"memory":1}}`)
					} else {
						_, _ = io.WriteString(w, "null")
					}
				}
			}))
			t.Cleanup(ts.Close)

			s := sdk.NewSDK(sdk.Config{ManagerURL: ts.URL, JudgeName: "j", JudgeSecret: "s"})
			work, err := waitForWork(s, 10*time.Second)
			assert.Equal(t, tc.calls, calls.Load())
			if tc.err {
				assert.Error(t, err)
				assert.Nil(t, work)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, "p1", work.ProblemID)
		})
	}
}

func TestWriteContestType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "contests.toml")

	std := contestd.DefaultContestConfig()
	require.NoError(t, writeContestType(path, "standard", std))

	direct := contestd.DefaultContestConfig()
	direct.SubmitSolver = false
	direct.DirectSubmissionDelay = 3
	direct.AcceptedSolverLanguages = []string{"txt"}
	require.NoError(t, writeContestType(path, "answers", direct))

	cfg, err := contestd.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, contestd.DefaultMaxSubmissionHistory, cfg.MaxSubmissionHistory)
	assert.Equal(t, []string{"answers", "standard"}, cfg.ContestTypes())
	assert.Equal(t, std, cfg.Contests["standard"])
	assert.Equal(t, direct, cfg.Contests["answers"])

	assert.Error(t, writeContestType(path, "", std))
}

func TestNonNegative(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		input string
		err   bool
	}{
		{desc: "zero", input: "0"},
		{desc: "positive", input: "60"},
		{desc: "negative", input: "-1", err: true},
		{desc: "not a number", input: "sixty", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			err := nonNegative(tc.input)
			assert.Equal(t, tc.err, err != nil)
		})
	}
}

func TestContestsListCmd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contests" {
			w.WriteHeader(http.StatusNotFound)

			return
		}
		_, _ = io.WriteString(w, `{"total":1,"contests":[{"id":"spring-open"}]}`)
	}))
	t.Cleanup(ts.Close)
	SetSDK(sdk.NewSDK(sdk.Config{ManagerURL: ts.URL}))

	var out, errOut bytes.Buffer
	cmd := NewContestsCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "spring-open")
	assert.Empty(t, strings.TrimSpace(errOut.String()))

	out.Reset()
	cmd.SetArgs([]string{"view", "missing"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "404")
}
