package cli

import (
	"errors"
	"io/fs"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/wwppc/contestd"
)

var useDefaults bool

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [init|show]",
		Short: "Contest type configuration",
		Long:  `Create and inspect the TOML file holding contest type options.`,
	}

	initCmd := &cobra.Command{
		Use:   "init <path> <type>",
		Short: "Add or replace a contest type",
		Long: `Add or replace a contest type in a configuration file, creating the file
when it does not exist.

Examples:
  # Answer the prompts
  contestd-cli config init contests.toml standard

  # Write the default options
  contestd-cli config init contests.toml standard --defaults`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cc := contestd.DefaultContestConfig()
			if !useDefaults {
				var err error
				if cc, err = promptContestConfig(args[1], cc); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
			}

			if err := writeContestType(args[0], args[1], cc); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Saved contest type "+args[1]+" to "+args[0])
		},
	}
	initCmd.Flags().BoolVar(&useDefaults, "defaults", false, "Skip the prompts and use default options")

	showCmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show a configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := contestd.LoadConfig(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cfg)
		},
	}

	cmd.AddCommand(initCmd)
	cmd.AddCommand(showCmd)

	return cmd
}

// writeContestType merges one contest type into the file at path.
func writeContestType(path, name string, cc contestd.ContestConfig) error {
	if name == "" {
		return errors.New("contest type name is required")
	}

	cfg, err := contestd.LoadConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = &contestd.Config{MaxSubmissionHistory: contestd.DefaultMaxSubmissionHistory}
	case err != nil:
		return err
	}
	if cfg.Contests == nil {
		cfg.Contests = map[string]contestd.ContestConfig{}
	}
	cfg.Contests[name] = cc

	return contestd.SaveConfig(path, cfg)
}

func promptContestConfig(name string, cc contestd.ContestConfig) (contestd.ContestConfig, error) {
	freeze := strconv.Itoa(cc.ScoreFreezeTime)
	delay := strconv.Itoa(cc.DirectSubmissionDelay)
	size := strconv.Itoa(cc.MaxSubmissionSize)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Contest type " + name),
			huh.NewConfirm().Title("Allow more than one round?").Value(&cc.Rounds),
			huh.NewConfirm().Title("Restrictive rounds?").Value(&cc.RestrictiveRounds),
			huh.NewInput().Title("Score freeze (minutes)").Value(&freeze).Validate(nonNegative),
			huh.NewConfirm().Title("Withhold results during rounds?").Value(&cc.WithholdResults),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Send submissions to judgehosts?").Value(&cc.SubmitSolver),
			huh.NewInput().Title("Direct comparison delay (seconds)").Value(&delay).Validate(nonNegative),
			huh.NewMultiSelect[string]().
				Title("Accepted solver languages").
				Options(huh.NewOptions(contestd.DefaultSolverLanguages...)...).
				Value(&cc.AcceptedSolverLanguages),
			huh.NewInput().Title("Max submission size (bytes)").Value(&size).Validate(nonNegative),
		),
	)
	if err := form.Run(); err != nil {
		return contestd.ContestConfig{}, err
	}

	cc.ScoreFreezeTime, _ = strconv.Atoi(freeze)
	cc.DirectSubmissionDelay, _ = strconv.Atoi(delay)
	cc.MaxSubmissionSize, _ = strconv.Atoi(size)

	return cc, nil
}

func nonNegative(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.New("enter a non-negative whole number")
	}

	return nil
}
