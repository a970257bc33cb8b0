package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/goliatone/go-fuel-stations/internal/config"
	"github.com/goliatone/go-fuel-stations/pkg/di"
)

func main() {
	app := &cli.App{
		Name:  "stations",
		Usage: "Search fuel stations and serve the station API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Database DSN, overrides STATIONS_DB_DSN",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			searchCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openContainer builds the application from the environment. Logs go to
// stderr so command output stays readable.
func openContainer(ctx context.Context, c *cli.Context, reg prometheus.Registerer) (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dsn := c.String("dsn"); dsn != "" {
		cfg.DB.DSN = dsn
	}

	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(cfg.NewLogger(os.Stderr)),
		di.WithRegisterer(reg),
	)
	if err != nil {
		return nil, err
	}
	if err := container.Migrate(ctx); err != nil {
		_ = container.Close()
		return nil, err
	}
	return container, nil
}
