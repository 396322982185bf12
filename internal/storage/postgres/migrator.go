package postgres

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	migrationsDir     = "sql/migrations"
	migrationLockKey  = int64(0x6261736b) // "bask"
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS basket_schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    checksum TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

// ErrMigrationDrift возвращается, если применённая миграция была изменена после применения.
var ErrMigrationDrift = errors.New("applied migration was modified")

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	// 0003_orders.up.sql
	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Checksum считается по up-скрипту: именно он определяет применённую схему.
func (m migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpSQL))
	return hex.EncodeToString(sum[:])
}

func (m migration) label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrateUp применяет up-миграции; steps=0 применяет все.
// Если уже применённая миграция изменилась, ничего не применяется и возвращается ErrMigrationDrift.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает последние steps миграций, при steps<=0 одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationState описывает состояние схемы: последняя применённая версия, число применённых и ожидающих миграций
// и версии, чьи файлы изменились после применения.
type MigrationState struct {
	Version int64
	Applied int
	Pending int
	Drifted []int64
}

// MigrationStatus сравнивает схему со встроенными миграциями.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errors.New("postgres store is not initialized")
	}
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedChecksums(queryCtx, s.db)
	if err != nil {
		return MigrationState{}, err
	}
	return migrationState(migrations, applied), nil
}

func migrationState(migrations []migration, applied map[int64]string) MigrationState {
	state := MigrationState{Applied: len(applied)}
	for version := range applied {
		state.Version = max(state.Version, version)
	}
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			state.Pending++
		}
	}
	state.Drifted = driftedVersions(migrations, applied)
	return state
}

// driftedVersions возвращает версии, у которых сохранённая контрольная сумма не совпадает с файлом.
func driftedVersions(migrations []migration, applied map[int64]string) []int64 {
	var drifted []int64
	for _, m := range migrations {
		if sum, ok := applied[m.Version]; ok && sum != m.Checksum() {
			drifted = append(drifted, m.Version)
		}
	}
	return drifted
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}
	if direction != migrationUp && direction != migrationDown {
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedChecksums(ctx, conn)
	if err != nil {
		return err
	}

	plan, err := migrationPlan(migrations, applied, direction, steps)
	if err != nil {
		return err
	}
	for _, m := range plan {
		if err := runStep(ctx, conn, m, direction); err != nil {
			return err
		}
	}
	return nil
}

// migrationPlan выбирает миграции для применения в нужном порядке.
// up: неприменённые по возрастанию версии; down: применённые по убыванию.
func migrationPlan(migrations []migration, applied map[int64]string, direction migrationDirection, steps int) ([]migration, error) {
	var plan []migration
	switch direction {
	case migrationUp:
		if drifted := driftedVersions(migrations, applied); len(drifted) > 0 {
			return nil, fmt.Errorf("%w: versions %v", ErrMigrationDrift, drifted)
		}
		for _, m := range migrations {
			if _, ok := applied[m.Version]; !ok {
				plan = append(plan, m)
			}
		}
	case migrationDown:
		known := make(map[int64]migration, len(migrations))
		for _, m := range migrations {
			known[m.Version] = m
		}
		versions := make([]int64, 0, len(applied))
		for version := range applied {
			versions = append(versions, version)
		}
		slices.SortFunc(versions, func(a, b int64) int { return cmp.Compare(b, a) })
		for _, version := range versions {
			m, ok := known[version]
			if !ok {
				return nil, fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			plan = append(plan, m)
			if len(plan) == steps {
				break
			}
		}
	}

	if steps > 0 && len(plan) > steps {
		plan = plan[:steps]
	}
	return plan, nil
}

// runStep выполняет скрипт и запись в журнал миграций одной транзакцией.
func runStep(ctx context.Context, conn *sql.Conn, m migration, direction migrationDirection) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %s): %w", direction, m.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	script, record, args := m.UpSQL,
		`INSERT INTO basket_schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
		[]any{m.Version, m.Name, m.Checksum()}
	if direction == migrationDown {
		script, record, args = m.DownSQL,
			`DELETE FROM basket_schema_migrations WHERE version = $1`,
			[]any{m.Version}
	}

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", direction, m.label(), err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.label(), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.label(), err)
	}
	return nil
}

type migrationQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func appliedChecksums(ctx context.Context, q migrationQuerier) (map[int64]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT version, checksum FROM basket_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]string)
	for rows.Next() {
		var (
			version  int64
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// loadMigrationsFromFS читает пары up/down из fsys и сортирует их по версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		if err := addMigrationFile(fsys, byVersion, entry.Name()); err != nil {
			return nil, err
		}
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

func addMigrationFile(fsys fs.FS, byVersion map[int64]*migration, base string) error {
	parts := migrationFilePattern.FindStringSubmatch(base)
	if parts == nil {
		return fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse migration version from %s: %w", base, err)
	}
	name, direction := parts[2], migrationDirection(parts[3])

	raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, base))
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", base, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Errorf("migration file is empty: %s", base)
	}

	m, ok := byVersion[version]
	if !ok {
		m = &migration{Version: version, Name: name}
		byVersion[version] = m
	}
	if m.Name != name {
		return fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
	}

	target := &m.UpSQL
	if direction == migrationDown {
		target = &m.DownSQL
	}
	if *target != "" {
		return fmt.Errorf("duplicate %s migration for version %d", direction, version)
	}
	*target = body
	return nil
}
