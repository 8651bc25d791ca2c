package main

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/wwppc/contestd/cli"
	"github.com/wwppc/contestd/pkg/sdk"
)

const (
	defManagerURL      = "http://localhost:7070"
	defTLSVerification = false
)

func main() {
	sdkConf := sdk.Config{
		ManagerURL:      defManagerURL,
		TLSVerification: defTLSVerification,
	}

	rootCmd := &cobra.Command{
		Use:   "contestd-cli",
		Short: "contestd CLI",
		Long:  `contestd CLI is a command line interface for operating contests and judgehosts.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&sdkConf.ManagerURL, "manager-url", "m", sdkConf.ManagerURL, "Manager URL")
	rootCmd.PersistentFlags().StringVar(&sdkConf.JudgeURL, "judge-url", "", "Judgehost protocol URL (default <manager-url>/judge)")
	rootCmd.PersistentFlags().StringVarP(&sdkConf.JudgeName, "judge-name", "n", "judgehost", "Judgehost name")
	rootCmd.PersistentFlags().StringVarP(&sdkConf.JudgeSecret, "judge-secret", "s", "", "Judgehost secret")
	rootCmd.PersistentFlags().StringVarP(&sdkConf.OperatorToken, "operator-token", "o", "", "Operator token for the live scoreboard")
	rootCmd.PersistentFlags().BoolVar(&sdkConf.TLSVerification, "tls-verification", sdkConf.TLSVerification, "Verify TLS certificates")

	rootCmd.AddCommand(cli.NewContestsCmd())
	rootCmd.AddCommand(cli.NewSubmitCmd())
	rootCmd.AddCommand(cli.NewJudgeCmd())
	rootCmd.AddCommand(cli.NewConfigCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
