package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecollecte/wastefleet/core/model"
	"github.com/ecollecte/wastefleet/core/store"
)

type binRow struct {
	ID                string       `db:"id"`
	CollectionPointID string       `db:"collection_point_id"`
	Category          string       `db:"category"`
	CapacityL         float64      `db:"capacity_l"`
	Active            bool         `db:"active"`
	LastCollectedAt   sql.NullTime `db:"last_collected_at"`
}

func (r binRow) toModel() model.Bin {
	b := model.Bin{
		ID:                r.ID,
		CollectionPointID: r.CollectionPointID,
		Category:          model.TrashCategory(r.Category),
		CapacityL:         r.CapacityL,
		Active:            r.Active,
	}
	if r.LastCollectedAt.Valid {
		t := r.LastCollectedAt.Time
		b.LastCollectedAt = &t
	}
	return b
}

// BinStore reads bin metadata from PostgreSQL.
type BinStore struct {
	db *sqlx.DB
}

// NewBinStore creates a BinStore.
func NewBinStore(db *sqlx.DB) *BinStore { return &BinStore{db: db} }

func (s *BinStore) ActiveBins(ctx context.Context) ([]model.Bin, error) {
	var rows []binRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, collection_point_id, category, capacity_l, active, last_collected_at
		 FROM bins WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select active bins: %w", err)
	}
	out := make([]model.Bin, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

type readingRow struct {
	BinID      string    `db:"bin_id"`
	FillPct    float64   `db:"fill_pct"`
	BatteryPct float64   `db:"battery_pct"`
	TempC      float64   `db:"temp_c"`
	Timestamp  time.Time `db:"ts"`
}

// ReadingStore persists bin telemetry in PostgreSQL.
type ReadingStore struct {
	db *sqlx.DB
}

// NewReadingStore creates a ReadingStore.
func NewReadingStore(db *sqlx.DB) *ReadingStore { return &ReadingStore{db: db} }

func (s *ReadingStore) LatestReading(ctx context.Context, binID string) (model.BinReading, error) {
	var row readingRow
	err := s.db.GetContext(ctx, &row,
		`SELECT bin_id, fill_pct, battery_pct, temp_c, ts
		 FROM bin_readings WHERE bin_id = $1 ORDER BY ts DESC LIMIT 1`, binID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BinReading{}, store.ErrNotFound
	}
	if err != nil {
		return model.BinReading{}, fmt.Errorf("select latest reading: %w", err)
	}
	return model.BinReading{
		BinID:      row.BinID,
		FillPct:    row.FillPct,
		BatteryPct: row.BatteryPct,
		TempC:      row.TempC,
		Timestamp:  row.Timestamp,
	}, nil
}

func (s *ReadingStore) Append(ctx context.Context, r model.BinReading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bin_readings (bin_id, fill_pct, battery_pct, temp_c, ts)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.BinID, r.FillPct, r.BatteryPct, r.TempC, r.Timestamp)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

type pointRow struct {
	ID     string  `db:"id"`
	Name   string  `db:"name"`
	Lon    float64 `db:"lon"`
	Lat    float64 `db:"lat"`
	Active bool    `db:"active"`
}

// CollectionPointStore reads collection sites from PostgreSQL. Bins are
// loaded alongside each point in a second query.
type CollectionPointStore struct {
	db *sqlx.DB
}

// NewCollectionPointStore creates a CollectionPointStore.
func NewCollectionPointStore(db *sqlx.DB) *CollectionPointStore {
	return &CollectionPointStore{db: db}
}

func (s *CollectionPointStore) All(ctx context.Context) ([]model.CollectionPoint, error) {
	var rows []pointRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, lon, lat, active FROM collection_points ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select collection points: %w", err)
	}
	return s.attachBins(ctx, rows)
}

func (s *CollectionPointStore) ByIDs(ctx context.Context, ids []string) ([]model.CollectionPoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []pointRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, lon, lat, active FROM collection_points
		 WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select collection points by ids: %w", err)
	}
	return s.attachBins(ctx, rows)
}

func (s *CollectionPointStore) attachBins(ctx context.Context, rows []pointRow) ([]model.CollectionPoint, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var binRows []binRow
	err := s.db.SelectContext(ctx, &binRows,
		`SELECT id, collection_point_id, category, capacity_l, active, last_collected_at
		 FROM bins WHERE collection_point_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select bins for points: %w", err)
	}
	byPoint := make(map[string][]model.Bin, len(rows))
	for _, b := range binRows {
		byPoint[b.CollectionPointID] = append(byPoint[b.CollectionPointID], b.toModel())
	}

	out := make([]model.CollectionPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CollectionPoint{
			ID:       r.ID,
			Name:     r.Name,
			Location: model.GeoPoint{r.Lon, r.Lat},
			Active:   r.Active,
			Bins:     byPoint[r.ID],
		})
	}
	return out, nil
}

// DepotStore reads depots from PostgreSQL.
type DepotStore struct {
	db *sqlx.DB
}

// NewDepotStore creates a DepotStore.
func NewDepotStore(db *sqlx.DB) *DepotStore { return &DepotStore{db: db} }

func (s *DepotStore) MainDepot(ctx context.Context) (model.Depot, error) {
	var row struct {
		ID   string  `db:"id"`
		Name string  `db:"name"`
		Lon  float64 `db:"lon"`
		Lat  float64 `db:"lat"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, lon, lat FROM depots WHERE main LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Depot{}, store.ErrNotFound
	}
	if err != nil {
		return model.Depot{}, fmt.Errorf("select main depot: %w", err)
	}
	return model.Depot{
		ID:       row.ID,
		Name:     row.Name,
		Location: model.GeoPoint{row.Lon, row.Lat},
		Main:     true,
	}, nil
}
