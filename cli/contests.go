package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wwppc/contestd/pkg/sdk"
)

var (
	live     bool
	complete = true
	language string
)

func NewContestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contests [list|view|scoreboard|reload|end|discover]",
		Short: "Contests manager",
		Long:  `List, view, reload and end hosted contests.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List hosted contests",
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := csdk.ListContests()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View contest",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			c, err := csdk.GetContest(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}

	scoreboardCmd := &cobra.Command{
		Use:   "scoreboard <id>",
		Short: "View contest scoreboard",
		Long: `View the ranked scoreboard of a contest.

Examples:
  # Public scoreboard, frozen near the end of the last round
  contestd-cli contests scoreboard spring-open

  # Live scoreboard
  contestd-cli contests scoreboard spring-open --live`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			board, err := csdk.Scoreboard(args[0], live)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, board)
		},
	}
	scoreboardCmd.Flags().BoolVar(&live, "live", false, "Ignore the score freeze")

	reloadCmd := &cobra.Command{
		Use:   "reload <id>",
		Short: "Reload contest from storage",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			c, err := csdk.Reload(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}

	endCmd := &cobra.Command{
		Use:   "end <id>",
		Short: "End contest",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := csdk.EndContest(args[0], complete); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}
	endCmd.Flags().BoolVar(&complete, "complete", complete, "Archive registrations of the contest")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Start hosting due contests",
		Run: func(cmd *cobra.Command, _ []string) {
			page, err := csdk.Discover()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(scoreboardCmd)
	cmd.AddCommand(reloadCmd)
	cmd.AddCommand(endCmd)
	cmd.AddCommand(discoverCmd)

	return cmd
}

func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <contest> <username> <problem> <file>",
		Short: "Submit a solution",
		Long: `Submit a source file or an answer file for a problem.

Examples:
  contestd-cli submit spring-open alice two-sum main.py --language Python3.12.3`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 4 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(args[3])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			lang := language
			if lang == "" {
				lang = strings.TrimPrefix(filepath.Ext(args[3]), ".")
			}
			if lang == "" {
				logErrorCmd(*cmd, errors.New("language could not be inferred, use --language"))

				return
			}

			res, err := csdk.Submit(args[0], sdk.Submission{
				Username:  args[1],
				ProblemID: args[2],
				File:      string(data),
				Language:  lang,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]string{"result": res})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "L", "", "Submission language")

	return cmd
}
