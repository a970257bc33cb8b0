package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// ErrNotFound is returned when a station does not exist.
var ErrNotFound = errors.New("station not found")

// PriceWriter replaces the current price of a fuel type at a station.
type PriceWriter interface {
	ReplacePrice(ctx context.Context, stationID uuid.UUID, fuelType string, price decimal.Decimal, validFrom time.Time) (FuelPrice, error)
}

// Open connects to the station database. Supported drivers are "sqlite3"
// and "postgres".
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case "", "sqlite3", "sqlite":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres", "postgresql":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewStationStore returns the generic repository for stations. Records are
// identified by id, or by address when the identifier is not a uuid.
func NewStationStore(db *bun.DB) repository.Repository[*Station] {
	return repository.NewRepository[*Station](db, repository.ModelHandlers[*Station]{
		NewRecord: func() *Station { return &Station{} },
		GetID: func(s *Station) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID:         func(s *Station, id uuid.UUID) { s.ID = id },
		GetIdentifier: func() string { return "address" },
	})
}

// NewBrandStore returns the generic repository for brands, identified by name.
func NewBrandStore(db *bun.DB) repository.Repository[*Brand] {
	return repository.NewRepository[*Brand](db, repository.ModelHandlers[*Brand]{
		NewRecord: func() *Brand { return &Brand{} },
		GetID: func(b *Brand) uuid.UUID {
			if b == nil {
				return uuid.Nil
			}
			return b.ID
		},
		SetID:         func(b *Brand, id uuid.UUID) { b.ID = id },
		GetIdentifier: func() string { return "name" },
	})
}

// NewPriceStore returns the generic repository for fuel prices.
func NewPriceStore(db *bun.DB) repository.Repository[*FuelPrice] {
	return repository.NewRepository[*FuelPrice](db, repository.ModelHandlers[*FuelPrice]{
		NewRecord: func() *FuelPrice { return &FuelPrice{} },
		GetID: func(p *FuelPrice) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID:         func(p *FuelPrice, id uuid.UUID) { p.ID = id },
		GetIdentifier: func() string { return "id" },
	})
}

// SelectWithPrices loads the brand and the current prices, ordered by fuel
// type.
func SelectWithPrices() []repository.SelectCriteria {
	return []repository.SelectCriteria{
		repository.SelectRelation("Brand"),
		repository.SelectRelation("Prices", repository.OrderBy("fuel_type ASC")),
	}
}

// SelectAll lists every station with its brand and prices, ordered by id.
// The default page of the generic repository is lifted.
func SelectAll() []repository.SelectCriteria {
	return append(SelectWithPrices(),
		repository.OrderBy("s.id ASC"),
		repository.SelectPaginate(0, 0),
	)
}

// BunRepository stores stations, brands and prices through the generic
// repositories and keeps multi-table writes in one transaction.
type BunRepository struct {
	db       *bun.DB
	stations repository.Repository[*Station]
	brands   repository.Repository[*Brand]
	prices   repository.Repository[*FuelPrice]
}

var _ PriceWriter = (*BunRepository)(nil)

// NewBunRepository creates a repository over db.
func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{
		db:       db,
		stations: NewStationStore(db),
		brands:   NewBrandStore(db),
		prices:   NewPriceStore(db),
	}
}

// Stations exposes the station repository for read-side decorators.
func (r *BunRepository) Stations() repository.Repository[*Station] { return r.stations }

// Brands exposes the brand repository.
func (r *BunRepository) Brands() repository.Repository[*Brand] { return r.brands }

// Prices exposes the fuel price repository.
func (r *BunRepository) Prices() repository.Repository[*FuelPrice] { return r.prices }

// CreateSchema creates the brand, station and price tables when missing.
func (r *BunRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().Model((*Brand)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create brands table: %w", err)
	}
	if _, err := r.db.NewCreateTable().Model((*Station)(nil)).IfNotExists().WithForeignKeys().Exec(ctx); err != nil {
		return fmt.Errorf("create stations table: %w", err)
	}
	_, err := r.db.NewCreateTable().
		Model((*FuelPrice)(nil)).
		IfNotExists().
		ForeignKey(`("station_id") REFERENCES "stations" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create fuel_prices table: %w", err)
	}
	_, err = r.db.NewCreateIndex().
		Model((*FuelPrice)(nil)).
		Index("idx_fuel_prices_station_fuel").
		Column("station_id", "fuel_type").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create fuel_prices index: %w", err)
	}
	return nil
}

// All loads every station with its brand and current prices, ordered by id.
func (r *BunRepository) All(ctx context.Context) ([]Station, error) {
	records, _, err := r.stations.List(ctx, SelectAll()...)
	if err != nil {
		return nil, fmt.Errorf("select stations: %w", err)
	}
	return Values(records), nil
}

// Get loads a single station.
func (r *BunRepository) Get(ctx context.Context, id uuid.UUID) (Station, error) {
	st, err := r.stations.GetByID(ctx, id.String(), SelectWithPrices()...)
	if repository.IsRecordNotFound(err) {
		return Station{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Station{}, fmt.Errorf("select station %s: %w", id, err)
	}
	return *st, nil
}

// EnsureBrand returns the stored brand named like want, inserting want when
// no such brand exists yet.
func (r *BunRepository) EnsureBrand(ctx context.Context, want Brand) (Brand, error) {
	name := strings.TrimSpace(want.Name)
	brand, err := r.brands.Get(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("lower(b.name) = ?", strings.ToLower(name))
	}))
	if err == nil {
		return *brand, nil
	}
	if !repository.IsRecordNotFound(err) {
		return Brand{}, fmt.Errorf("select brand %q: %w", name, err)
	}

	brand, err = r.brands.Create(ctx, &Brand{ID: want.ID, Name: name})
	if err != nil {
		return Brand{}, fmt.Errorf("insert brand %q: %w", name, err)
	}
	return *brand, nil
}

// SaveStation inserts a station together with its prices.
func (r *BunRepository) SaveStation(ctx context.Context, st *Station) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if err := st.Point().Validate(); err != nil {
		return fmt.Errorf("station %s: %w", st.ID, err)
	}
	if st.Brand != nil {
		brand, err := r.EnsureBrand(ctx, *st.Brand)
		if err != nil {
			return err
		}
		st.Brand = &brand
		st.BrandID = brand.ID
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.stations.CreateTx(ctx, tx, st); err != nil {
			return fmt.Errorf("insert station %s: %w", st.ID, err)
		}
		if len(st.Prices) == 0 {
			return nil
		}
		records := make([]*FuelPrice, len(st.Prices))
		for i, p := range st.Prices {
			st.Prices[i] = NewFuelPrice(st.ID, p.FuelType, p.Price, p.ValidFrom)
			if p.ID != uuid.Nil {
				st.Prices[i].ID = p.ID
			}
			records[i] = &st.Prices[i]
		}
		if _, err := r.prices.CreateManyTx(ctx, tx, records); err != nil {
			return fmt.Errorf("insert prices for station %s: %w", st.ID, err)
		}
		return nil
	})
}

// ReplacePrice opens a new validity period for fuelType at the station. The
// previous row for the same fuel type is removed in the same transaction.
func (r *BunRepository) ReplacePrice(ctx context.Context, stationID uuid.UUID, fuelType string, price decimal.Decimal, validFrom time.Time) (FuelPrice, error) {
	next := NewFuelPrice(stationID, fuelType, price, validFrom)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.requireStation(ctx, tx, stationID); err != nil {
			return err
		}

		// DeleteWhereTx, not DeleteManyTx: the latter ignores tx.
		err := r.prices.DeleteWhereTx(ctx, tx,
			repository.DeleteBy("station_id", "=", stationID.String()),
			repository.DeleteBy("fuel_type", "=", next.FuelType),
		)
		if err != nil {
			return fmt.Errorf("delete previous %s price: %w", next.FuelType, err)
		}

		if _, err := r.prices.CreateTx(ctx, tx, &next); err != nil {
			return fmt.Errorf("insert %s price: %w", next.FuelType, err)
		}
		return nil
	})
	if err != nil {
		return FuelPrice{}, err
	}
	return next, nil
}

// DeleteStation removes a station and every price it owns.
func (r *BunRepository) DeleteStation(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.requireStation(ctx, tx, id); err != nil {
			return err
		}
		if err := r.prices.DeleteWhereTx(ctx, tx, repository.DeleteBy("station_id", "=", id.String())); err != nil {
			return fmt.Errorf("delete prices of station %s: %w", id, err)
		}
		if err := r.stations.DeleteTx(ctx, tx, &Station{ID: id}); err != nil {
			return fmt.Errorf("delete station %s: %w", id, err)
		}
		return nil
	})
}

func (r *BunRepository) requireStation(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	n, err := r.stations.CountTx(ctx, tx, repository.SelectByID(id.String()))
	if err != nil {
		return fmt.Errorf("check station %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Values dereferences records loaded through the generic repository.
func Values(records []*Station) []Station {
	out := make([]Station, len(records))
	for i, st := range records {
		out[i] = *st
	}
	return out
}
