package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/goliatone/go-fuel-stations/station"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load stations into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "JSON file with stations, defaults to the bundled seed",
			},
		},
		Action: seedAction,
	}
}

func seedAction(c *cli.Context) error {
	stations, err := loadSeed(c.String("file"))
	if err != nil {
		return err
	}

	container, err := openContainer(c.Context, c, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Seed(c.Context, stations); err != nil {
		return err
	}
	fmt.Printf("Seeded %d stations\n", len(stations))
	return nil
}

func loadSeed(path string) ([]station.Station, error) {
	if path == "" {
		return station.DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return station.DecodeSeed(f)
}
