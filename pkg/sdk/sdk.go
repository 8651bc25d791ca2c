package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
)

const CTJSON string = "application/json"

type SDK interface {
	// ListContests lists the contests currently hosted.
	//
	// example:
	//  page, _ := sdk.ListContests()
	//  fmt.Println(page.Total)
	ListContests() (ContestPage, error)

	// GetContest gets the state of a hosted contest.
	//
	// example:
	//  c, _ := sdk.GetContest("spring-open")
	//  fmt.Println(c.Index, c.Active)
	GetContest(id string) (Contest, error)

	// Scoreboard gets the ranked scoreboard. The live board ignores the
	// score freeze.
	//
	// example:
	//  board, _ := sdk.Scoreboard("spring-open", false)
	//  fmt.Println(board.Entries)
	Scoreboard(id string, live bool) (Scoreboard, error)

	// Submit submits a solution on behalf of a user and returns the
	// admission result.
	//
	// example:
	//  res, _ := sdk.Submit("spring-open", sdk.Submission{
	//    Username:  "alice",
	//    ProblemID: "two-sum",
	//    File:      "print(42)",
	//    Language:  "python",
	//  })
	//  fmt.Println(res)
	Submit(id string, sub Submission) (string, error)

	// Reload rebuilds a hosted contest from storage.
	//
	// example:
	//  c, _ := sdk.Reload("spring-open")
	Reload(id string) (Contest, error)

	// EndContest ends a hosted contest. A complete end archives the
	// contest registrations.
	//
	// example:
	//  _ = sdk.EndContest("spring-open", true)
	EndContest(id string, complete bool) error

	// Discover starts hosting every contest that should be running.
	//
	// example:
	//  page, _ := sdk.Discover()
	Discover() (ContestPage, error)

	// JudgeStats reports the grading queue and the known judgehosts.
	//
	// example:
	//  stats, _ := sdk.JudgeStats()
	//  fmt.Println(stats.Queued)
	JudgeStats() (grader.Stats, error)

	// GetWork leases the next ungraded submission. A nil work with a nil
	// error means the queue is empty.
	//
	// example:
	//  work, _ := sdk.GetWork()
	GetWork() (*grader.Work, error)

	// ReturnWork gives the current lease back to the queue.
	//
	// example:
	//  _ = sdk.ReturnWork()
	ReturnWork() error

	// FinishWork reports the verdicts of the current lease.
	//
	// example:
	//  _ = sdk.FinishWork([]contest.Score{{State: contest.Correct}})
	FinishWork(scores []contest.Score) error
}

type contestSDK struct {
	managerURL string
	judgeURL   string
	judgeAuth  string
	operator   string
	client     *http.Client
}

type Config struct {
	ManagerURL      string
	JudgeURL        string
	JudgeName       string
	JudgeSecret     string
	OperatorToken   string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	judgeURL := cfg.JudgeURL
	if judgeURL == "" {
		judgeURL = cfg.ManagerURL + "/judge"
	}

	return &contestSDK{
		managerURL: cfg.ManagerURL,
		judgeURL:   judgeURL,
		judgeAuth:  base64.StdEncoding.EncodeToString([]byte(cfg.JudgeName + ":" + cfg.JudgeSecret)),
		operator:   cfg.OperatorToken,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *contestSDK) processRequest(method, reqURL string, data []byte, headers map[string]string, expectedRespCodes ...int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if !slices.Contains(expectedRespCodes, resp.StatusCode) {
		return []byte{}, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return body, nil
}

// StatusError is returned when the server answers with an unexpected code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected response code: %d", e.Code)
	}

	return fmt.Sprintf("unexpected response code: %d: %s", e.Code, e.Body)
}
