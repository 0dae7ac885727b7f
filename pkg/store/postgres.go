package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS places (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	remote_id TEXT NOT NULL DEFAULT '',
	address   TEXT NOT NULL DEFAULT '',
	category  TEXT NOT NULL DEFAULT '',
	info      TEXT NOT NULL DEFAULT '',
	lat       DOUBLE PRECISION NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	last_used TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS places_lat_lon ON places (lat, lon);
CREATE INDEX IF NOT EXISTS places_last_used ON places (last_used DESC);

CREATE TABLE IF NOT EXISTS transactions (
	id     TEXT PRIMARY KEY,
	amount NUMERIC(14, 2) NOT NULL,
	time   TIMESTAMPTZ NOT NULL,
	place  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_time ON transactions (time);
`

const pgPlaceColumns = `id, name, remote_id, address, category, info, lat, lon, last_used`

// Postgres keeps places and transactions in two tables. Transactions carry
// the place snapshot as JSONB so deleting a place leaves them intact.
type Postgres struct {
	pool *pgxpool.Pool
}

// check it meets the interface
var _ Store = &Postgres{}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error) {
	query := `SELECT ` + pgPlaceColumns + ` FROM places
		WHERE lat BETWEEN $1 AND $2
		AND (
			(NOT $5 AND lon BETWEEN $3 AND $4) OR
			($5 AND (lon >= $3 OR lon <= $4))
		)
		AND ($6 = '' OR strpos(lower(name), lower($6)) > 0)
		ORDER BY last_used DESC`

	rows, err := p.pool.Query(ctx, query,
		bounds.SouthWest.Lat, bounds.NorthEast.Lat,
		bounds.SouthWest.Lon, bounds.NorthEast.Lon,
		bounds.CrossesAntimeridian(),
		filter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := []*domain.Place{}
	for rows.Next() {
		pl, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, pl)
	}
	return places, rows.Err()
}

func (p *Postgres) Place(ctx context.Context, id string) (*domain.Place, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgPlaceColumns+` FROM places WHERE id = $1`, id)
	pl, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
	}
	return pl, err
}

func (p *Postgres) DeletePlace(ctx context.Context, id string) error {
	res, err := p.pool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) CountPlaces(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM places`).Scan(&n)
	return n, err
}

func (p *Postgres) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.Place == nil {
		return fmt.Errorf("%w: transaction %s has no place", domain.ErrInvalid, tx.ID)
	}
	snapshot, err := json.Marshal(tx.Place.Copy())
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, p.pool, func(dbtx pgx.Tx) error {
		pl := tx.Place
		_, err := dbtx.Exec(ctx, `INSERT INTO places (`+pgPlaceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, remote_id = EXCLUDED.remote_id,
				address = EXCLUDED.address, category = EXCLUDED.category, info = EXCLUDED.info,
				lat = EXCLUDED.lat, lon = EXCLUDED.lon, last_used = EXCLUDED.last_used`,
			pl.ID, pl.Name, pl.RemoteID, pl.Address, pl.Category, pl.Info, pl.Lat, pl.Lon, pl.LastUsed,
		)
		if err != nil {
			return fmt.Errorf("saving place: %w", err)
		}

		_, err = dbtx.Exec(ctx,
			`INSERT INTO transactions (id, amount, time, place) VALUES ($1, $2::numeric, $3, $4::jsonb)`,
			tx.ID, tx.Amount.StringFixed(2), tx.Time, string(snapshot),
		)
		if err != nil {
			return fmt.Errorf("saving transaction: %w", err)
		}
		return nil
	})
}

func (p *Postgres) PendingTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, amount::text, time, place::text FROM transactions ORDER BY time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []*domain.Transaction{}
	for rows.Next() {
		var (
			id, amount, place string
			at                time.Time
		)
		if err := rows.Scan(&id, &amount, &at, &place); err != nil {
			return nil, err
		}

		tx := &domain.Transaction{ID: id, Time: at.UTC(), Place: &domain.Place{}}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", id, err)
		}
		if err := json.Unmarshal([]byte(place), tx.Place); err != nil {
			return nil, fmt.Errorf("transaction %s place: %w", id, err)
		}
		txns = append(txns, tx)
	}
	return txns, rows.Err()
}

func (p *Postgres) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, p.pool, func(dbtx pgx.Tx) error {
		_, err := dbtx.Exec(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, ids)
		return err
	})
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanPlace(row pgx.Row) (*domain.Place, error) {
	pl := &domain.Place{}
	err := row.Scan(&pl.ID, &pl.Name, &pl.RemoteID, &pl.Address, &pl.Category, &pl.Info, &pl.Lat, &pl.Lon, &pl.LastUsed)
	if err != nil {
		return nil, err
	}
	pl.LastUsed = pl.LastUsed.UTC()
	return pl, nil
}
