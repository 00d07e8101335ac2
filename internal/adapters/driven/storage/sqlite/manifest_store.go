package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// manifestStore implements driven.ManifestStore.
type manifestStore struct {
	store *Store
}

var _ driven.ManifestStore = (*manifestStore)(nil)

const entryColumns = `e.artifact_name, e.version, e.generation, e.dependencies,
	e.integrity_hash, e.row_count, e.built_at, e.metadata`

const buildColumns = `id, artifact_name, generation, status, started_at, ended_at, row_count, error, owner, heartbeat_at`

// Promote appends the entry and moves the current pointer to it in one transaction.
func (s *manifestStore) Promote(ctx context.Context, entry domain.ManifestEntry) error {
	deps, err := marshalMap(entry.Dependencies)
	if err != nil {
		return fmt.Errorf("marshalling dependencies: %w", err)
	}
	meta, err := marshalMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO manifest_entries
			(artifact_name, version, generation, dependencies, integrity_hash, row_count, built_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ArtifactName, entry.Version, int64(entry.Generation), deps,
		nullString(entry.IntegrityHash), entry.RowCount, formatTime(entry.BuiltAt), meta)
	if err != nil {
		return fmt.Errorf("inserting manifest entry: %w", err)
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading entry id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO manifest_current (artifact_name, entry_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(artifact_name) DO UPDATE SET
			entry_id = excluded.entry_id,
			updated_at = excluded.updated_at
	`, entry.ArtifactName, entryID, formatTime(entry.BuiltAt)); err != nil {
		return fmt.Errorf("moving current pointer: %w", err)
	}

	// Keep the counter ahead of generations registered without StartBuild.
	if entry.Generation > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO generation_counters (artifact_name, last_generation)
			VALUES (?, ?)
			ON CONFLICT(artifact_name) DO UPDATE SET
				last_generation = MAX(last_generation, excluded.last_generation)
		`, entry.ArtifactName, int64(entry.Generation)); err != nil {
			return fmt.Errorf("updating generation counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing promotion: %w", err)
	}
	return nil
}

// Current returns the current entry of an artifact.
func (s *manifestStore) Current(ctx context.Context, artifact string) (*domain.ManifestEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM manifest_current c
		JOIN manifest_entries e ON e.id = c.entry_id
		WHERE c.artifact_name = ?
	`, artifact)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListCurrent returns the current entry of every artifact, ordered by name.
func (s *manifestStore) ListCurrent(ctx context.Context) ([]domain.ManifestEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM manifest_current c
		JOIN manifest_entries e ON e.id = c.entry_id
		ORDER BY c.artifact_name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying current entries: %w", err)
	}
	return collectEntries(rows)
}

// History returns recorded entries of an artifact, newest first.
// A non-positive limit returns every entry.
func (s *manifestStore) History(ctx context.Context, artifact string, limit int) ([]domain.ManifestEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM manifest_entries e
		WHERE e.artifact_name = ?
		ORDER BY e.id DESC
		LIMIT ?
	`, artifact, limit)
	if err != nil {
		return nil, fmt.Errorf("querying manifest history: %w", err)
	}
	return collectEntries(rows)
}

// StartBuild allocates the next generation id and records a running build
// in one transaction, so a crash never reuses an id. The counter upsert takes
// the database write lock first, so the running-build check below cannot
// race another process; idx_builds_one_running backs it up.
func (s *manifestStore) StartBuild(ctx context.Context, record domain.BuildRecord) (uint64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var generation int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO generation_counters (artifact_name, last_generation)
		VALUES (?, 1)
		ON CONFLICT(artifact_name) DO UPDATE SET last_generation = last_generation + 1
		RETURNING last_generation
	`, record.ArtifactName).Scan(&generation)
	if err != nil {
		return 0, fmt.Errorf("allocating generation: %w", err)
	}

	var running, owner string
	err = tx.QueryRowContext(ctx, `
		SELECT id, owner FROM builds WHERE artifact_name = ? AND status = ?
	`, record.ArtifactName, string(domain.BuildRunning)).Scan(&running, &owner)
	switch {
	case err == nil:
		return 0, fmt.Errorf("%w: %s (build %s owned by %s)",
			domain.ErrBuildInProgress, record.ArtifactName, running, owner)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("checking running builds: %w", err)
	}

	heartbeat := record.HeartbeatAt
	if heartbeat.IsZero() {
		heartbeat = record.StartedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO builds (id, artifact_name, generation, status, started_at, row_count, owner, heartbeat_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, record.ID, record.ArtifactName, generation, string(domain.BuildRunning),
		formatTime(record.StartedAt), record.Owner, formatTime(heartbeat)); err != nil {
		return 0, fmt.Errorf("recording build: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing build start: %w", err)
	}
	return uint64(generation), nil
}

// FinishBuild records the outcome of a running build.
func (s *manifestStore) FinishBuild(ctx context.Context, record domain.BuildRecord) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE builds
		SET status = ?, ended_at = ?, row_count = ?, error = ?
		WHERE id = ? AND status = ?
	`, string(record.Status), formatNullableTime(record.EndedAt), record.RowCount,
		nullString(record.Error), record.ID, string(domain.BuildRunning))
	if err != nil {
		return fmt.Errorf("finishing build: %w", err)
	}
	return requireAffected(res, "finishing build")
}

// Heartbeat refreshes the liveness timestamp of a running build.
func (s *manifestStore) Heartbeat(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE builds SET heartbeat_at = ? WHERE id = ? AND status = ?
	`, formatTime(at), id, string(domain.BuildRunning))
	if err != nil {
		return fmt.Errorf("refreshing build heartbeat: %w", err)
	}
	return requireAffected(res, "refreshing build heartbeat")
}

// ReclaimBuild finishes a running build whose heartbeat is older than
// staleBefore. The guard is evaluated by the UPDATE itself, so a live owner
// refreshing its heartbeat concurrently always wins.
func (s *manifestStore) ReclaimBuild(ctx context.Context, record domain.BuildRecord, staleBefore time.Time) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE builds
		SET status = ?, ended_at = ?, row_count = ?, error = ?
		WHERE id = ? AND status = ? AND heartbeat_at < ?
	`, string(record.Status), formatNullableTime(record.EndedAt), record.RowCount,
		nullString(record.Error), record.ID, string(domain.BuildRunning), formatTime(staleBefore))
	if err != nil {
		return false, fmt.Errorf("reclaiming build: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reclaiming build: %w", err)
	}
	return n > 0, nil
}

// requireAffected maps an UPDATE that matched nothing to domain.ErrNotFound.
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Builds returns recent build records, newest first.
func (s *manifestStore) Builds(ctx context.Context, artifact string, limit int) ([]domain.BuildRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+buildColumns+`
		FROM builds
		WHERE ? = '' OR artifact_name = ?
		ORDER BY seq DESC
		LIMIT ?
	`, artifact, artifact, limit)
	if err != nil {
		return nil, fmt.Errorf("querying builds: %w", err)
	}
	return collectBuilds(rows)
}

// RunningBuilds returns builds that never finished, oldest first.
func (s *manifestStore) RunningBuilds(ctx context.Context) ([]domain.BuildRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+buildColumns+`
		FROM builds
		WHERE status = ?
		ORDER BY seq
	`, string(domain.BuildRunning))
	if err != nil {
		return nil, fmt.Errorf("querying running builds: %w", err)
	}
	return collectBuilds(rows)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans one manifest entry.
func scanEntry(row rowScanner) (*domain.ManifestEntry, error) {
	var e domain.ManifestEntry
	var generation int64
	var deps, hash, meta sql.NullString
	var builtAt string

	if err := row.Scan(&e.ArtifactName, &e.Version, &generation, &deps,
		&hash, &e.RowCount, &builtAt, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning manifest entry: %w", err)
	}

	var err error
	e.Generation = uint64(generation)
	e.IntegrityHash = hash.String
	e.BuiltAt = parseTime(builtAt)
	if e.Dependencies, err = unmarshalMap(deps); err != nil {
		return nil, fmt.Errorf("decoding dependencies: %w", err)
	}
	if e.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]domain.ManifestEntry, error) {
	defer rows.Close()

	var entries []domain.ManifestEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifest entries: %w", err)
	}
	return entries, nil
}

// scanBuild scans one build record.
func scanBuild(row rowScanner) (*domain.BuildRecord, error) {
	var b domain.BuildRecord
	var generation int64
	var status, startedAt string
	var endedAt, errMsg, heartbeat sql.NullString

	if err := row.Scan(&b.ID, &b.ArtifactName, &generation, &status,
		&startedAt, &endedAt, &b.RowCount, &errMsg, &b.Owner, &heartbeat); err != nil {
		return nil, fmt.Errorf("scanning build: %w", err)
	}

	b.Generation = uint64(generation)
	b.Status = domain.BuildStatus(status)
	b.StartedAt = parseTime(startedAt)
	b.EndedAt = parseNullableTime(endedAt)
	b.Error = errMsg.String
	b.HeartbeatAt = parseNullableTime(heartbeat)
	return &b, nil
}

func collectBuilds(rows *sql.Rows) ([]domain.BuildRecord, error) {
	defer rows.Close()

	var builds []domain.BuildRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating builds: %w", err)
	}
	return builds, nil
}
