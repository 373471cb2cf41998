package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/im-notice-service/config"
)

const (
	ServiceName      = "im-notice-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Notification routing service for Webitel UI surfaces",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			watchCmd(),
			versionCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:      "server",
		Aliases:   []string{"s"},
		Usage:     "Run the HTTP, gRPC and AMQP endpoints",
		ArgsUsage: "[-- --http.address=:8080 ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"IM_NOTICE_CONFIG_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			slog.Info("BUILD_INFO",
				"service", ServiceName,
				"version", version,
				"commit", commit,
				"commit_date", commitDate,
				"branch", branch,
				"build_timestamp", buildTimestamp,
			)
			return nil
		},
	}
}
