package grader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwppc/contestd/pkg/contest"
)

const testTimeout = time.Minute

type problemsStub struct {
	err error
}

func (p problemsStub) ReadProblems(_ context.Context, filter contest.ProblemFilter) ([]contest.Problem, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]contest.Problem, 0, len(filter.IDs))
	for _, id := range filter.IDs {
		out = append(out, contest.Problem{ID: id, Constraints: contest.Constraints{Time: 1000, Memory: 256}})
	}

	return out, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recorder counts callback invocations per submission id.
type recorder struct {
	mu     sync.Mutex
	calls  map[string]int
	graded map[string]*contest.Submission
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int), graded: make(map[string]*contest.Submission)}
}

func (r *recorder) cb(id string) Callback {
	return func(graded *contest.Submission) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[id]++
		r.graded[id] = graded
	}
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[id]
}

func (r *recorder) result(id string) *contest.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.graded[id]
}

func newTestService(t *testing.T, problems ProblemReader) (*service, *clock) {
	t.Helper()

	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Config{Timeout: testTimeout}, problems, slog.New(slog.NewTextHandler(io.Discard, nil))).(*service)
	svc.now = clk.Now

	return svc, clk
}

func submission(id, team, problem string) contest.Submission {
	return contest.Submission{
		ID:        id,
		Username:  team + "-user",
		Team:      team,
		ProblemID: problem,
		File:      "print(" + id + ")",
		Language:  "Python3.12.3",
	}
}

func validReport() Report {
	return Report{Scores: json.RawMessage(`[{"state":1,"time":12.5,"memory":3,"subtask":1},{"state":2,"time":40,"memory":3.5,"subtask":2}]`)}
}

func TestQueueOrder(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()

	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))
	svc.QueueUngraded(ctx, submission("b", "t2", "p1"), rec.cb("b"))

	w, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "print(a)", w.File)
	assert.Equal(t, "Python3.12.3", w.Language)
	assert.Equal(t, contest.Constraints{Time: 1000, Memory: 256}, w.Constraints)

	require.NoError(t, svc.ReturnWork(ctx, "node1"))

	// returned work goes to the front
	w, err = svc.GetWork(ctx, "node2")
	require.NoError(t, err)
	assert.Equal(t, "print(a)", w.File)

	w, err = svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	assert.Equal(t, "print(b)", w.File)

	w, err = svc.GetWork(ctx, "node3")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestGetWorkWhileLeased(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), nil)
	svc.QueueUngraded(ctx, submission("b", "t1", "p2"), nil)

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	_, err = svc.GetWork(ctx, "node1")
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Equal(t, 1, svc.Stats(ctx).Queued)
}

func TestNoLease(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()

	cases := []struct {
		desc string
		call func() error
	}{
		{
			desc: "return work from unknown node",
			call: func() error { return svc.ReturnWork(ctx, "ghost") },
		},
		{
			desc: "finish work from unknown node",
			call: func() error { return svc.FinishWork(ctx, "ghost", validReport()) },
		},
		{
			desc: "finish work with malformed body and no lease",
			call: func() error { return svc.FinishWork(ctx, "ghost", Report{}) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), ErrNoLease)
		})
	}
}

func TestFinishWorkMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc   string
		scores string
	}{
		{desc: "missing scores", scores: ``},
		{desc: "scores not an array", scores: `{"state":1}`},
		{desc: "null scores", scores: `null`},
		{desc: "missing state", scores: `[{"time":1,"memory":1,"subtask":1}]`},
		{desc: "unknown state", scores: `[{"state":7,"time":1,"memory":1,"subtask":1}]`},
		{desc: "zero state", scores: `[{"state":0,"time":1,"memory":1,"subtask":1}]`},
		{desc: "fractional state", scores: `[{"state":1.5,"time":1,"memory":1,"subtask":1}]`},
		{desc: "string time", scores: `[{"state":1,"time":"1","memory":1,"subtask":1}]`},
		{desc: "missing memory", scores: `[{"state":1,"time":1,"subtask":1}]`},
		{desc: "missing subtask", scores: `[{"state":1,"time":1,"memory":1}]`},
		{desc: "fractional subtask", scores: `[{"state":1,"time":1,"memory":1,"subtask":1.5}]`},
		{desc: "huge subtask", scores: `[{"state":1,"time":1,"memory":1,"subtask":1e12}]`},
		{desc: "null entry", scores: `[{"state":1,"time":1,"memory":1,"subtask":1},null]`},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			svc, _ := newTestService(t, problemsStub{})
			ctx := context.Background()
			rec := newRecorder()
			svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))
			_, err := svc.GetWork(ctx, "node1")
			require.NoError(t, err)

			err = svc.FinishWork(ctx, "node1", Report{Scores: json.RawMessage(tc.scores)})
			assert.ErrorIs(t, err, ErrMalformedScores)
			assert.Equal(t, 0, rec.count("a"))

			// lease stays active
			_, err = svc.GetWork(ctx, "node1")
			assert.ErrorIs(t, err, ErrLeaseHeld)
			require.NoError(t, svc.FinishWork(ctx, "node1", validReport()))
			assert.Equal(t, 1, rec.count("a"))
		})
	}
}

func TestFinishWork(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	original := submission("a", "t1", "p1")
	svc.QueueUngraded(ctx, original, rec.cb("a"))

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	require.NoError(t, svc.FinishWork(ctx, "node1", validReport()))

	require.Equal(t, 1, rec.count("a"))
	graded := rec.result("a")
	require.NotNil(t, graded)
	assert.Equal(t, original.ID, graded.ID)
	assert.Equal(t, original.File, graded.File)
	assert.Equal(t, []contest.Score{
		{State: contest.Correct, Time: 12.5, Memory: 3, Subtask: 1},
		{State: contest.Incorrect, Time: 40, Memory: 3.5, Subtask: 2},
	}, graded.Scores)
	assert.Empty(t, original.Scores)

	// node is idle again
	assert.ErrorIs(t, svc.FinishWork(ctx, "node1", validReport()), ErrNoLease)
	w, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestReturnLimit(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))

	for i := range MaxReturns {
		w, err := svc.GetWork(ctx, "node1")
		require.NoError(t, err)
		require.NotNil(t, w, "lease %d", i)
		assert.Equal(t, 0, rec.count("a"))
		require.NoError(t, svc.ReturnWork(ctx, "node1"))
	}

	assert.Equal(t, 1, rec.count("a"))
	assert.Nil(t, rec.result("a"))
	w, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestCancelUngraded(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()

	svc.QueueUngraded(ctx, submission("a", "t1", "pX"), rec.cb("a"))
	svc.QueueUngraded(ctx, submission("b", "t1", "pX"), rec.cb("b"))
	svc.QueueUngraded(ctx, submission("c", "t2", "pX"), rec.cb("c"))

	w, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	assert.Equal(t, "print(a)", w.File)

	// the username is not the queue identity
	assert.False(t, svc.CancelUngraded(ctx, "t1-user", "pX"))

	assert.True(t, svc.CancelUngraded(ctx, "t1", "pX"))
	assert.Equal(t, 1, rec.count("b"))
	assert.Nil(t, rec.result("b"))
	assert.Equal(t, 0, rec.count("a"))

	assert.False(t, svc.CancelUngraded(ctx, "t1", "pX"))

	// late verdict for the cancelled lease is discarded
	require.NoError(t, svc.FinishWork(ctx, "node1", validReport()))
	assert.Equal(t, 1, rec.count("a"))
	assert.Nil(t, rec.result("a"))

	w, err = svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	assert.Equal(t, "print(c)", w.File)
	assert.Equal(t, 0, rec.count("c"))
}

func TestCancelledLeaseReturned(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	require.True(t, svc.CancelUngraded(ctx, "t1", "p1"))
	require.NoError(t, svc.ReturnWork(ctx, "node1"))

	assert.Equal(t, 1, rec.count("a"))
	assert.Nil(t, rec.result("a"))
	assert.Equal(t, 0, svc.Stats(ctx).Queued)
}

func TestSweepReclaimsExpiredLease(t *testing.T) {
	t.Parallel()

	svc, clk := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))
	svc.QueueUngraded(ctx, submission("b", "t2", "p1"), rec.cb("b"))

	_, err := svc.GetWork(ctx, "slow")
	require.NoError(t, err)

	clk.Advance(testTimeout + time.Second)
	svc.Sweep(ctx)

	st := svc.Stats(ctx)
	assert.Equal(t, 2, st.Queued)
	assert.Empty(t, st.Nodes)

	w, err := svc.GetWork(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "print(a)", w.File)

	// the late verdict from the dropped node is rejected
	assert.ErrorIs(t, svc.FinishWork(ctx, "slow", validReport()), ErrNoLease)
	assert.Equal(t, 0, rec.count("a"))
}

// slowProblems advances the clock during each lookup.
type slowProblems struct {
	clk   *clock
	delay time.Duration
}

func (p *slowProblems) ReadProblems(ctx context.Context, filter contest.ProblemFilter) ([]contest.Problem, error) {
	p.clk.Advance(p.delay)

	return problemsStub{}.ReadProblems(ctx, filter)
}

func TestSweepAfterSlowLookupKeepsLease(t *testing.T) {
	t.Parallel()

	reader := &slowProblems{delay: 2 * time.Second}
	svc, clk := newTestService(t, reader)
	reader.clk = clk
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)

	clk.Advance(testTimeout - time.Second)
	svc.Sweep(ctx)

	st := svc.Stats(ctx)
	require.Len(t, st.Nodes, 1)
	assert.True(t, st.Nodes[0].Grading)
	assert.Equal(t, 1, st.Leased)

	require.NoError(t, svc.FinishWork(ctx, "node1", validReport()))
	assert.Equal(t, 1, rec.count("a"))
	assert.NotNil(t, rec.result("a"))
}

func TestSweepDroppedNodeGivesBackLease(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc      string
		cancelled bool
		queued    int
		calls     int
	}{
		{desc: "requeued", queued: 1},
		{desc: "cancelled lease resolves", cancelled: true, calls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			svc, clk := newTestService(t, problemsStub{})
			ctx := context.Background()
			rec := newRecorder()
			svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))

			_, err := svc.GetWork(ctx, "node1")
			require.NoError(t, err)

			// silent node whose lease deadline is still ahead
			svc.mu.Lock()
			n := svc.nodes["node1"]
			n.deadline = clk.Now().Add(3 * testTimeout)
			n.lease.cancelled = tc.cancelled
			svc.mu.Unlock()

			clk.Advance(testTimeout + time.Second)
			svc.Sweep(ctx)

			st := svc.Stats(ctx)
			assert.Empty(t, st.Nodes)
			assert.Equal(t, tc.queued, st.Queued)
			assert.Equal(t, tc.calls, rec.count("a"))
			assert.Nil(t, rec.result("a"))
		})
	}
}

func TestSweepKeepsResponsiveNode(t *testing.T) {
	t.Parallel()

	svc, clk := newTestService(t, problemsStub{})
	ctx := context.Background()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), nil)

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)

	clk.Advance(testTimeout / 2)
	_, err = svc.GetWork(ctx, "node1")
	require.ErrorIs(t, err, ErrLeaseHeld)

	clk.Advance(testTimeout/2 + time.Second)
	svc.Sweep(ctx)

	st := svc.Stats(ctx)
	assert.Equal(t, 1, st.Queued)
	require.Len(t, st.Nodes, 1)
	assert.False(t, st.Nodes[0].Grading)

	clk.Advance(testTimeout)
	svc.Sweep(ctx)
	assert.Empty(t, svc.Stats(ctx).Nodes)
}

func TestProblemLookupFailure(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{err: errors.New("database down")})
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))

	_, err := svc.GetWork(ctx, "node1")
	assert.ErrorIs(t, err, ErrProblemLookup)
	assert.Equal(t, 0, rec.count("a"))

	st := svc.Stats(ctx)
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 0, st.Leased)
}

func TestClose(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), rec.cb("a"))
	svc.QueueUngraded(ctx, submission("b", "t1", "p2"), rec.cb("b"))

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)

	svc.Close(ctx)
	svc.Close(ctx)
	assert.Equal(t, 1, rec.count("a"))
	assert.Equal(t, 1, rec.count("b"))

	svc.QueueUngraded(ctx, submission("c", "t1", "p3"), rec.cb("c"))
	assert.Equal(t, 1, rec.count("c"))
	assert.Nil(t, rec.result("c"))

	assert.ErrorIs(t, svc.FinishWork(ctx, "node1", validReport()), ErrNoLease)
	assert.Equal(t, 1, rec.count("a"))
	assert.False(t, svc.Stats(ctx).Open)
}

func TestCallbacksFireExactlyOnce(t *testing.T) {
	t.Parallel()

	svc, clk := newTestService(t, problemsStub{})
	ctx := context.Background()
	rec := newRecorder()
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for i, id := range ids {
		svc.QueueUngraded(ctx, submission(id, "t", "p"+string(rune('0'+i%3))), rec.cb(id))
	}

	_, err := svc.GetWork(ctx, "n1")
	require.NoError(t, err)
	_, err = svc.GetWork(ctx, "n2")
	require.NoError(t, err)
	_, err = svc.GetWork(ctx, "n3")
	require.NoError(t, err)

	require.NoError(t, svc.FinishWork(ctx, "n1", validReport()))
	require.NoError(t, svc.ReturnWork(ctx, "n2"))
	svc.CancelUngraded(ctx, "t", "p0")
	clk.Advance(testTimeout + time.Second)
	svc.Sweep(ctx)
	svc.Close(ctx)

	for _, id := range ids {
		assert.Equal(t, 1, rec.count(id), "submission %s", id)
	}
}

func TestCallbackMayReenter(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	done := make(chan struct{})
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), func(*contest.Submission) {
		svc.QueueUngraded(ctx, submission("b", "t1", "p1"), nil)
		close(done)
	})

	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)
	require.NoError(t, svc.FinishWork(ctx, "node1", validReport()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not complete")
	}
	assert.Equal(t, 1, svc.Stats(ctx).Queued)
}

func TestStartStopsWithContext(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	svc.interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
}

func TestCollector(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, problemsStub{})
	ctx := context.Background()
	svc.QueueUngraded(ctx, submission("a", "t1", "p1"), nil)
	svc.QueueUngraded(ctx, submission("b", "t1", "p2"), nil)
	_, err := svc.GetWork(ctx, "node1")
	require.NoError(t, err)

	c := NewCollector(svc)
	assert.Equal(t, 4, testutil.CollectAndCount(c))
}
