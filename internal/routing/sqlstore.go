// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eidaws/federator/pkg/sncl"
)

// SQL schema (reference):
//
// CREATE TABLE IF NOT EXISTS network (
//   id   BIGSERIAL PRIMARY KEY,
//   code TEXT NOT NULL UNIQUE
// );
// CREATE TABLE IF NOT EXISTS station (
//   id         BIGSERIAL PRIMARY KEY,
//   network_id BIGINT NOT NULL REFERENCES network(id),
//   code       TEXT NOT NULL,
//   latitude   DOUBLE PRECISION NOT NULL,
//   longitude  DOUBLE PRECISION NOT NULL,
//   UNIQUE(network_id, code)
// );
// CREATE TABLE IF NOT EXISTS channel_epoch (
//   id         BIGSERIAL PRIMARY KEY,
//   station_id BIGINT NOT NULL REFERENCES station(id),
//   location   TEXT NOT NULL,
//   channel    TEXT NOT NULL,
//   starttime  TIMESTAMPTZ NOT NULL,
//   endtime    TIMESTAMPTZ,
//   restricted TEXT NOT NULL
// );
// CREATE INDEX IF NOT EXISTS idx_channel_epoch_station ON channel_epoch(station_id);
// CREATE TABLE IF NOT EXISTS endpoint (
//   id      BIGSERIAL PRIMARY KEY,
//   url     TEXT NOT NULL,
//   service TEXT NOT NULL,
//   UNIQUE(url, service)
// );
// CREATE TABLE IF NOT EXISTS routing (
//   id          BIGSERIAL PRIMARY KEY,
//   epoch_id    BIGINT NOT NULL,
//   level       TEXT NOT NULL,
//   endpoint_id BIGINT NOT NULL REFERENCES endpoint(id),
//   starttime   TIMESTAMPTZ NOT NULL,
//   endtime     TIMESTAMPTZ,
//   last_seen   TIMESTAMPTZ NOT NULL
// );
// CREATE INDEX IF NOT EXISTS idx_routing_epoch ON routing(level, epoch_id);
// CREATE TABLE IF NOT EXISTS vnet_group (
//   id   BIGSERIAL PRIMARY KEY,
//   code TEXT NOT NULL UNIQUE
// );
// CREATE TABLE IF NOT EXISTS vnet_epoch (
//   id         BIGSERIAL PRIMARY KEY,
//   group_id   BIGINT NOT NULL REFERENCES vnet_group(id),
//   network    TEXT NOT NULL,
//   station    TEXT NOT NULL,
//   location   TEXT NOT NULL,
//   channel    TEXT NOT NULL,
//   starttime  TIMESTAMPTZ NOT NULL,
//   endtime    TIMESTAMPTZ
// );

// SQLStore is a database/sql-backed HarvestRepository. It runs every mutating
// call inside its own transaction; an ON CONFLICT clause absorbs
// re-harvesting the same entity instead of erroring.
type SQLStore struct {
	db             *sql.DB
	defaultTimeout time.Duration
}

// NewSQLStore wraps an already-opened database handle. db's driver is the
// caller's choice (lib/pq, pgx's stdlib shim, and similar all satisfy
// database/sql); SQLStore issues only ANSI-portable SQL plus
// ON CONFLICT, which Postgres and SQLite both accept.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, defaultTimeout: 10 * time.Second}
}

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.defaultTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.defaultTimeout)
}

// UpsertNetwork implements HarvestRepository.
func (s *SQLStore) UpsertNetwork(ctx context.Context, code string) (ID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id ID
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO network(code) VALUES ($1)
		   ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		 RETURNING id`, code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert network(%s): %w", code, err)
	}
	return id, nil
}

// UpsertStation implements HarvestRepository.
func (s *SQLStore) UpsertStation(ctx context.Context, networkID ID, code string, lat, lon float64) (ID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id ID
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO station(network_id, code, latitude, longitude) VALUES ($1,$2,$3,$4)
		   ON CONFLICT (network_id, code) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
		 RETURNING id`, networkID, code, lat, lon).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert station(%s): %w", code, err)
	}
	return id, nil
}

// UpsertChannelEpoch implements HarvestRepository. Superseding a prior
// interval for the same (station, location, channel) cascades the delete to
// its Routing rows, mirroring MemStore's deleteChannelEpochCascade.
func (s *SQLStore) UpsertChannelEpoch(ctx context.Context, stationID ID, location, channel string, epoch Epoch, now time.Time) (ID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, starttime, endtime, restricted FROM channel_epoch WHERE station_id=$1 AND location=$2 AND channel=$3`,
		stationID, location, channel)
	if err != nil {
		return 0, fmt.Errorf("select channel_epoch: %w", err)
	}
	var toDelete []ID
	var existingID ID
	var exists bool
	for rows.Next() {
		var id ID
		var start time.Time
		var end *time.Time
		var restricted string
		if err := rows.Scan(&id, &start, &end, &restricted); err != nil {
			rows.Close()
			return 0, err
		}
		existing := Epoch{Start: start, End: end, RestrictedStatus: RestrictedStatus(restricted)}
		if sameEpoch(existing, epoch) {
			existingID, exists = id, true
			continue
		}
		if existing.AsSNCL().Overlaps(epoch.AsSNCL()) {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if exists {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}

	for _, id := range toDelete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM routing WHERE level=$1 AND epoch_id=$2`, LevelChannel, id); err != nil {
			return 0, fmt.Errorf("cascade delete routing(%d): %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM channel_epoch WHERE id=$1`, id); err != nil {
			return 0, fmt.Errorf("cascade delete channel_epoch(%d): %w", id, err)
		}
	}

	var id ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO channel_epoch(station_id, location, channel, starttime, endtime, restricted)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		stationID, location, channel, epoch.Start, epoch.End, string(epoch.RestrictedStatus)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert channel_epoch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	_ = now
	return id, nil
}

// UpsertEndpoint implements HarvestRepository.
func (s *SQLStore) UpsertEndpoint(ctx context.Context, url string, service ServiceName) (ID, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var id ID
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO endpoint(url, service) VALUES ($1,$2)
		   ON CONFLICT (url, service) DO UPDATE SET url = EXCLUDED.url
		 RETURNING id`, url, string(service)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert endpoint(%s): %w", url, err)
	}
	return id, nil
}

// UpsertRouting implements HarvestRepository, collapsing an overlapping
// interval for the same (epoch, endpoint) pair by union rather than
// inserting a second row, keeping intervals per (epoch, endpoint) disjoint.
func (s *SQLStore) UpsertRouting(ctx context.Context, epochID ID, level EntityLevel, endpointID ID, start time.Time, end *time.Time, now time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, starttime, endtime FROM routing WHERE epoch_id=$1 AND level=$2 AND endpoint_id=$3`,
		epochID, level, endpointID)
	if err != nil {
		return fmt.Errorf("select routing: %w", err)
	}
	type existingRow struct {
		id    ID
		start time.Time
		end   *time.Time
	}
	var found *existingRow
	for rows.Next() {
		var r existingRow
		if err := rows.Scan(&r.id, &r.start, &r.end); err != nil {
			rows.Close()
			return err
		}
		a := sncl.Epoch{Start: r.start, End: r.end}
		b := sncl.Epoch{Start: start, End: end}
		if a.Overlaps(b) {
			found = &r
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if found == nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routing(epoch_id, level, endpoint_id, starttime, endtime, last_seen) VALUES ($1,$2,$3,$4,$5,$6)`,
			epochID, level, endpointID, start, end, now); err != nil {
			return fmt.Errorf("insert routing: %w", err)
		}
		return tx.Commit()
	}

	newStart := found.start
	if start.Before(newStart) {
		newStart = start
	}
	var newEnd *time.Time
	if found.end != nil && end != nil {
		if end.After(*found.end) {
			newEnd = end
		} else {
			newEnd = found.end
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE routing SET starttime=$1, endtime=$2, last_seen=$3 WHERE id=$4`,
		newStart, newEnd, now, found.id); err != nil {
		return fmt.Errorf("update routing(%d): %w", found.id, err)
	}
	return tx.Commit()
}

// UpsertVirtualChannelEpoch implements HarvestRepository.
func (s *SQLStore) UpsertVirtualChannelEpoch(ctx context.Context, groupCode string, stream sncl.Stream, epoch sncl.Epoch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var groupID ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO vnet_group(code) VALUES ($1)
		   ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		 RETURNING id`, groupCode).Scan(&groupID)
	if err != nil {
		return fmt.Errorf("upsert vnet_group(%s): %w", groupCode, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE vnet_epoch SET starttime=$1, endtime=$2
		   WHERE group_id=$3 AND network=$4 AND station=$5 AND location=$6 AND channel=$7 AND starttime=$1`,
		epoch.Start, epoch.End, groupID, stream.Network, stream.Station, stream.Location, stream.Channel)
	if err != nil {
		return fmt.Errorf("update vnet_epoch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vnet_epoch(group_id, network, station, location, channel, starttime, endtime)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			groupID, stream.Network, stream.Station, stream.Location, stream.Channel, epoch.Start, epoch.End); err != nil {
			return fmt.Errorf("insert vnet_epoch: %w", err)
		}
	}
	return tx.Commit()
}

// Truncate implements HarvestRepository.
func (s *SQLStore) Truncate(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `DELETE FROM routing WHERE last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("truncate routing: %w", err)
	}
	return res.RowsAffected()
}

// FindVirtualExpansion implements Repository.
func (s *SQLStore) FindVirtualExpansion(ctx context.Context, code string, window sncl.Epoch, escape string) ([]sncl.StreamEpoch, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.network, v.station, v.location, v.channel, v.starttime, v.endtime
		   FROM vnet_epoch v JOIN vnet_group g ON g.id = v.group_id
		  WHERE g.code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("query vnet_epoch(%s): %w", code, err)
	}
	defer rows.Close()

	var out []sncl.StreamEpoch
	for rows.Next() {
		var st sncl.Stream
		var start time.Time
		var end *time.Time
		if err := rows.Scan(&st.Network, &st.Station, &st.Location, &st.Channel, &start, &end); err != nil {
			return nil, err
		}
		full := sncl.Epoch{Start: start, End: end}
		if !full.Overlaps(window) {
			continue
		}
		clipped, ok := full.Intersect(window)
		if !ok {
			continue
		}
		out = append(out, sncl.StreamEpoch{Stream: st, Epoch: clipped})
	}
	return out, rows.Err()
}

// FindRoutingRows implements Repository. The wildcard codes in c.Stream are
// translated to SQL LIKE patterns by sncl.ToSQLWildcards before this query
// is built, so the database engine performs the match natively rather than
// pulling every row back for client-side filtering (unlike MemStore, which
// has no engine to hand that work to).
func (s *SQLStore) FindRoutingRows(ctx context.Context, c Criteria) ([]RoutingRow, error) {
	if err := validateService(c.Service); err != nil {
		return nil, err
	}
	if c.BBox != nil && !c.BBox.Valid() {
		return nil, ErrInvalidSpatialConstraints
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	escape := c.Escape
	if escape == "" {
		escape = sncl.DefaultEscape
	}
	netPat := sncl.ToSQLWildcards(orStar(c.Stream.Network), escape)
	staPat := sncl.ToSQLWildcards(orStar(c.Stream.Station), escape)
	locPat := sncl.ToSQLWildcards(orStar(c.Stream.Location), escape)
	chaPat := sncl.ToSQLWildcards(orStar(c.Stream.Channel), escape)

	query := `
		SELECT n.code, st.code, ce.location, ce.channel, ce.starttime, ce.endtime, ce.restricted,
		       r.starttime, r.endtime, e.url, e.service, st.latitude, st.longitude
		  FROM channel_epoch ce
		  JOIN station st ON st.id = ce.station_id
		  JOIN network n  ON n.id  = st.network_id
		  JOIN routing r  ON r.level = 'channel' AND r.epoch_id = ce.id
		  JOIN endpoint e ON e.id = r.endpoint_id
		 WHERE n.code  LIKE $1 ESCAPE $5
		   AND st.code LIKE $2 ESCAPE $5
		   AND ce.location LIKE $3 ESCAPE $5
		   AND ce.channel  LIKE $4 ESCAPE $5
		   AND e.service = $6`
	args := []any{netPat, staPat, locPat, chaPat, escape, string(c.Service)}
	if c.MethodFilter != "" {
		query += ` AND e.url LIKE $7`
		args = append(args, "%"+c.MethodFilter+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routing rows: %w", err)
	}
	defer rows.Close()

	var out []RoutingRow
	for rows.Next() {
		var row RoutingRow
		var restricted string
		var lat, lon float64
		if err := rows.Scan(
			&row.Stream.Network, &row.Stream.Station, &row.Stream.Location, &row.Stream.Channel,
			&row.EntityEpoch.Start, &row.EntityEpoch.End, &restricted,
			&row.RoutingStart, &row.RoutingEnd, &row.EndpointURL, &row.Service,
			&lat, &lon,
		); err != nil {
			return nil, err
		}
		row.EntityEpoch.RestrictedStatus = RestrictedStatus(restricted)
		row.EntityEpoch.Type = LevelChannel
		if !accessMatches(c.Access, row.EntityEpoch.RestrictedStatus) {
			continue
		}
		if c.BBox != nil && !withinBBox(*c.BBox, lat, lon) {
			continue
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func orStar(code string) string {
	if code == "" {
		return "*"
	}
	return code
}
