package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/muesli/gominatim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/goliatone/go-fuel-stations/geo"
	"github.com/goliatone/go-fuel-stations/search"
	"github.com/goliatone/go-fuel-stations/station"
)

const (
	nominatimServer = "https://nominatim.openstreetmap.org/"
	metersPerKm     = 1000.0
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search stations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "location",
				Usage: "Place name to search around, resolved with Nominatim",
			},
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the origin",
			},
			&cli.Float64Flag{
				Name:  "lon",
				Usage: "Longitude of the origin",
			},
			&cli.Float64Flag{
				Name:    "radius",
				Aliases: []string{"r"},
				Usage:   "Search radius in kilometers, 0 for no limit",
			},
			&cli.StringSliceFlag{
				Name:    "fuel",
				Aliases: []string{"f"},
				Usage:   "Fuel type code, repeatable",
			},
			&cli.StringFlag{
				Name:  "brand",
				Usage: "Brand name",
			},
			&cli.StringFlag{
				Name:  "min-price",
				Usage: "Lowest price to include",
			},
			&cli.StringFlag{
				Name:  "max-price",
				Usage: "Highest price to include",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort by distance or price",
			},
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Sort descending",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Stations per page",
				Value: search.DefaultPageSize,
			},
		},
		Action: searchAction,
	}
}

func searchAction(c *cli.Context) error {
	criteria, err := criteriaFromFlags(c)
	if err != nil {
		return err
	}

	container, err := openContainer(c.Context, c, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer container.Close()

	page, err := container.Stations().List(c.Context, criteria)
	if err != nil {
		return err
	}

	for i, item := range page.Items {
		printStation((page.PageNumber-1)*page.PageSize+i+1, item)
	}
	fmt.Printf("Page %d of %d, %d stations\n", page.PageNumber, page.TotalPages, page.TotalCount)
	return nil
}

func criteriaFromFlags(c *cli.Context) (search.Criteria, error) {
	criteria := search.Criteria{
		RadiusMeters: c.Float64("radius") * metersPerKm,
		FuelTypes:    c.StringSlice("fuel"),
		Brand:        c.String("brand"),
		SortBy:       search.SortBy(c.String("sort")),
		Direction:    search.Asc,
		Page:         c.Int("page"),
		PageSize:     c.Int("page-size"),
	}
	if c.Bool("desc") {
		criteria.Direction = search.Desc
	}

	switch {
	case c.String("location") != "":
		origin, err := geocode(c.String("location"))
		if err != nil {
			return search.Criteria{}, err
		}
		criteria.Origin = &origin
	case c.IsSet("lat") || c.IsSet("lon"):
		if !c.IsSet("lat") || !c.IsSet("lon") {
			return search.Criteria{}, errors.New("lat and lon must be given together")
		}
		criteria.Origin = &geo.Point{Lon: c.Float64("lon"), Lat: c.Float64("lat")}
	}

	var err error
	if criteria.MinPrice, err = priceFlag(c, "min-price"); err != nil {
		return search.Criteria{}, err
	}
	if criteria.MaxPrice, err = priceFlag(c, "max-price"); err != nil {
		return search.Criteria{}, err
	}
	return criteria, nil
}

func priceFlag(c *cli.Context, name string) (*decimal.Decimal, error) {
	raw := c.String(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return &d, nil
}

func geocode(name string) (geo.Point, error) {
	gominatim.SetServer(nominatimServer)
	qry := gominatim.SearchQuery{
		Q: name,
	}

	resp, err := qry.Get()
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode %q: %w", name, err)
	}
	if len(resp) == 0 {
		return geo.Point{}, fmt.Errorf("location %q not found", name)
	}
	fmt.Println("Location found:", resp[0].DisplayName)

	lat, err := strconv.ParseFloat(resp[0].Lat, 64)
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := strconv.ParseFloat(resp[0].Lon, 64)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Lon: lon, Lat: lat}, nil
}

func printStation(n int, item station.ListItem) {
	fmt.Printf("%d. %s (%s)\n", n, item.Brand, item.Address)
	if item.DistanceMeters != nil {
		fmt.Printf("   Distance: %.2f km\n", *item.DistanceMeters/metersPerKm)
	}
	for _, p := range item.Prices {
		fmt.Printf("   %s: %s\n", p.FuelType, p.Price.StringFixed(2))
	}
	fmt.Printf("   Coordinates: %.5f, %.5f\n\n", item.Lat, item.Lon)
}
