package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/mqtt"
)

var (
	mqttURL     = "tcp://localhost:1883"
	mqttPrefix  = "contestd"
	mqttTimeout = 30 * time.Second
	watchUser   string
	watchLive   bool
)

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <contest>",
		Short: "Follow contest events",
		Long: `Print scoreboard, round and end events of a contest as they are published
over MQTT. Stops when the contest ends.

Examples:
  contestd-cli watch spring-open
  contestd-cli watch spring-open --user alice --live`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ps, err := mqtt.NewPubSub(mqtt.Config{
				URL:     mqttURL,
				QoS:     1,
				Timeout: mqttTimeout,
			}, "contestd-cli-"+uuid.NewString(), slog.New(slog.NewTextHandler(io.Discard, nil)))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			defer ps.Disconnect(context.Background())

			opts := manager.WatchOptions{
				Prefix:   mqttPrefix,
				Contest:  args[0],
				Username: watchUser,
				Live:     watchLive,
			}
			if err := manager.Watch(ctx, ps, opts, func(ev manager.Event) {
				logJSONCmd(*cmd, ev)
			}); err != nil && ctx.Err() == nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.Flags().StringVar(&mqttURL, "mqtt-url", mqttURL, "MQTT broker URL")
	cmd.Flags().StringVar(&mqttPrefix, "mqtt-prefix", mqttPrefix, "Topic prefix used by the daemon")
	cmd.Flags().DurationVar(&mqttTimeout, "mqtt-timeout", mqttTimeout, "MQTT operation timeout")
	cmd.Flags().StringVarP(&watchUser, "user", "u", "", "Also follow submission updates for this user")
	cmd.Flags().BoolVar(&watchLive, "live", false, "Follow the live scoreboard instead of the public one")

	return cmd
}
