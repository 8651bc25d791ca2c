package cli

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
	"github.com/wwppc/contestd/pkg/sdk"
)

var (
	errNoWork = errors.New("no work queued")

	waitTimeout = 5 * time.Minute
)

func NewJudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge [get-work|wait|return-work|finish-work|stats]",
		Short: "Judgehost protocol",
		Long:  `Lease, return and finish grading work as a judgehost.`,
	}

	getWorkCmd := &cobra.Command{
		Use:   "get-work",
		Short: "Lease the next queued submission",
		Run: func(cmd *cobra.Command, _ []string) {
			work, err := csdk.GetWork()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if work == nil {
				logErrorCmd(*cmd, errNoWork)

				return
			}
			logJSONCmd(*cmd, work)
		},
	}

	waitCmd := &cobra.Command{
		Use:   "wait",
		Short: "Poll until a submission can be leased",
		Run: func(cmd *cobra.Command, _ []string) {
			work, err := waitForWork(csdk, waitTimeout)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, work)
		},
	}
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", waitTimeout, "Give up after this long")

	returnWorkCmd := &cobra.Command{
		Use:   "return-work",
		Short: "Give the current lease back",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := csdk.ReturnWork(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	finishWorkCmd := &cobra.Command{
		Use:   "finish-work <scores.json>",
		Short: "Report verdicts for the current lease",
		Long: `Report verdicts for the current lease. The file holds a JSON array of
scores, one per test case.

Examples:
  echo '[{"state":1,"time":12,"memory":3,"subtask":0}]' > scores.json
  contestd-cli judge finish-work scores.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			var scores []contest.Score
			if err := json.Unmarshal(data, &scores); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := csdk.FinishWork(scores); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue and judgehost stats",
		Run: func(cmd *cobra.Command, _ []string) {
			stats, err := csdk.JudgeStats()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, stats)
		},
	}

	cmd.AddCommand(getWorkCmd)
	cmd.AddCommand(waitCmd)
	cmd.AddCommand(returnWorkCmd)
	cmd.AddCommand(finishWorkCmd)
	cmd.AddCommand(statsCmd)

	return cmd
}

// waitForWork polls get-work with exponential backoff. Client errors other
// than server failures stop the loop.
func waitForWork(s sdk.SDK, timeout time.Duration) (*grader.Work, error) {
	var work *grader.Work

	op := func() error {
		w, err := s.GetWork()
		if err != nil {
			var se *sdk.StatusError
			if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}

			return err
		}
		if w == nil {
			return errNoWork
		}
		work = w

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return work, nil
}
