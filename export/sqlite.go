package export

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"kuanb/gosm-matcher/batch"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	run_id    TEXT NOT NULL,
	part      INTEGER NOT NULL,
	trip      INTEGER NOT NULL,
	seq_i     INTEGER NOT NULL,
	road      TEXT NOT NULL,
	obs       INTEGER NOT NULL,
	obs_ne    INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	longitude REAL NOT NULL,
	latitude  REAL NOT NULL,
	length    REAL NOT NULL,
	road_prop REAL NOT NULL,
	PRIMARY KEY (run_id, trip, seq_i)
);
CREATE TABLE IF NOT EXISTS trip_info (
	run_id  TEXT NOT NULL,
	part    INTEGER NOT NULL,
	trip    INTEGER NOT NULL,
	source  TEXT NOT NULL,
	"start" TEXT NOT NULL,
	"end"   TEXT NOT NULL,
	length  REAL NOT NULL,
	driver  TEXT NOT NULL,
	PRIMARY KEY (run_id, trip)
);
CREATE TABLE IF NOT EXISTS road_info (
	edge_name   TEXT PRIMARY KEY,
	node_o      INTEGER NOT NULL,
	node_d      INTEGER NOT NULL,
	length      REAL NOT NULL,
	highway     TEXT NOT NULL,
	longitude_o REAL NOT NULL,
	latitude_o  REAL NOT NULL,
	longitude   REAL NOT NULL,
	latitude    REAL NOT NULL
);
`

// SQLiteSink writes batch partitions into a SQLite database
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the schema exists
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}
	log.Printf("Export database ready: %s", path)
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// WritePartition stores one partition in a single transaction
func (s *SQLiteSink) WritePartition(ctx context.Context, p *batch.Partition) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if err := insertRoads(ctx, tx, p); err != nil {
			return err
		}
		if err := insertTrips(ctx, tx, p); err != nil {
			return err
		}
		return insertTripInfo(ctx, tx, p)
	})
}

func insertTrips(ctx context.Context, tx *sql.Tx, p *batch.Partition) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trips
		(run_id, part, trip, seq_i, road, obs, obs_ne, timestamp, longitude, latitude, length, road_prop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trips: %w", err)
	}
	defer stmt.Close()

	for _, r := range p.Trips {
		if _, err := stmt.ExecContext(ctx, p.RunID, p.Index, r.Trip, r.Seq, r.Road.String(), r.Obs, r.ObsNE,
			formatTime(r.Timestamp), r.Lon, r.Lat, r.Length, r.RoadProp); err != nil {
			return fmt.Errorf("insert trip %d row %d: %w", r.Trip, r.Seq, err)
		}
	}
	return nil
}

func insertTripInfo(ctx context.Context, tx *sql.Tx, p *batch.Partition) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trip_info
		(run_id, part, trip, source, "start", "end", length, driver)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trip_info: %w", err)
	}
	defer stmt.Close()

	for _, t := range p.TripInfo {
		if _, err := stmt.ExecContext(ctx, p.RunID, p.Index, t.Trip, t.Source,
			formatTime(t.Start), formatTime(t.End), t.LengthKm, t.Driver); err != nil {
			return fmt.Errorf("insert trip_info %d: %w", t.Trip, err)
		}
	}
	return nil
}

func insertRoads(ctx context.Context, tx *sql.Tx, p *batch.Partition) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO road_info
		(edge_name, node_o, node_d, length, highway, longitude_o, latitude_o, longitude, latitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare road_info: %w", err)
	}
	defer stmt.Close()

	for _, e := range p.Roads {
		if _, err := stmt.ExecContext(ctx, e.Name, int64(e.From), int64(e.To), e.Length, e.RoadClass,
			e.OriginLon, e.OriginLat, e.MidLon, e.MidLat); err != nil {
			return fmt.Errorf("insert road %s: %w", e.Name, err)
		}
	}
	return nil
}

// transaction executes fn within a database transaction
func (s *SQLiteSink) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Counts returns the number of rows in the trips, trip_info and road_info tables
func (s *SQLiteSink) Counts(ctx context.Context) (trips, tripInfo, roads int, err error) {
	for _, q := range []struct {
		table string
		dst   *int
	}{{"trips", &trips}, {"trip_info", &tripInfo}, {"road_info", &roads}} {
		if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return 0, 0, 0, err
		}
	}
	return trips, tripInfo, roads, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
