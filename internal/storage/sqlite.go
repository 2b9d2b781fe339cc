package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/location"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// headerSites marks access sites that belong to the module header rather
// than to a member.
const headerSites = -1

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			key TEXT,
			created_at INTEGER,
			modules INTEGER,
			dependencies INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS modules (
			run_id TEXT,
			name TEXT,
			kind TEXT,
			flags INTEGER,
			super_name TEXT,
			interfaces JSON,
			source_file TEXT,
			major INTEGER,
			minor INTEGER,
			location TEXT,
			PRIMARY KEY (run_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			run_id TEXT,
			owner TEXT,
			ordinal INTEGER,
			kind TEXT,
			name TEXT,
			descriptor TEXT,
			flags INTEGER,
			PRIMARY KEY (run_id, owner, ordinal)
		);`,
		`CREATE TABLE IF NOT EXISTS sites (
			run_id TEXT,
			owner TEXT,
			member INTEGER,
			ordinal INTEGER,
			kind TEXT,
			target TEXT,
			name TEXT,
			descriptor TEXT,
			interface INTEGER,
			line INTEGER,
			PRIMARY KEY (run_id, owner, member, ordinal)
		);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			run_id TEXT,
			ordinal INTEGER,
			kind TEXT,
			name TEXT,
			detail TEXT,
			PRIMARY KEY (run_id, ordinal)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveGraph writes every imported module of g with its members and access
// sites in one transaction. Stubs are not stored; they reappear when the
// snapshot is linked again. Unresolved diagnostics are derived on load and
// are skipped for the same reason.
func (s *SQLiteStore) SaveGraph(ctx context.Context, key string, g *graph.Graph) (string, error) {
	runID := uuid.NewString()
	stats := g.Stats()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, key, created_at, modules, dependencies) VALUES (?, ?, ?, ?, ?)`,
		runID, key, time.Now().UTC().UnixNano(), stats.Classes, stats.Dependencies); err != nil {
		return "", err
	}

	modStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modules (run_id, name, kind, flags, super_name, interfaces, source_file, major, minor, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer modStmt.Close()

	memStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO members (run_id, owner, ordinal, kind, name, descriptor, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer memStmt.Close()

	siteStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sites (run_id, owner, member, ordinal, kind, target, name, descriptor, interface, line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer siteStmt.Close()

	saveSites := func(owner string, member int, sites []*extractor.AccessSite) error {
		for i, site := range sites {
			if _, err := siteStmt.ExecContext(ctx, runID, owner, member, i,
				site.Kind, site.Owner, site.Name, site.Descriptor, site.Interface, site.Line); err != nil {
				return fmt.Errorf("save site %s#%d: %w", owner, i, err)
			}
		}
		return nil
	}

	for _, n := range g.Classes() {
		m := n.Module
		interfaces, err := json.Marshal(m.Interfaces)
		if err != nil {
			return "", err
		}
		if _, err := modStmt.ExecContext(ctx, runID, m.Name, m.Kind, uint16(m.Flags), m.SuperName,
			interfaces, m.SourceFile, m.Version.Major, m.Version.Minor, m.Location.URI()); err != nil {
			return "", fmt.Errorf("save module %s: %w", m.Name, err)
		}
		if err := saveSites(m.Name, headerSites, m.Sites); err != nil {
			return "", err
		}
		for i, mem := range m.Members {
			if _, err := memStmt.ExecContext(ctx, runID, m.Name, i,
				mem.Kind, mem.Name, mem.Descriptor, uint16(mem.Flags)); err != nil {
				return "", fmt.Errorf("save member %s: %w", mem.FullName(), err)
			}
			if err := saveSites(m.Name, i, mem.Sites); err != nil {
				return "", err
			}
		}
	}

	diagStmt, err := tx.PrepareContext(ctx, `INSERT INTO diagnostics (run_id, ordinal, kind, name, detail) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer diagStmt.Close()

	for i, d := range g.Diagnostics() {
		if d.Kind == graph.DiagnosticUnresolved {
			continue
		}
		if _, err := diagStmt.ExecContext(ctx, runID, i, d.Kind, d.Name, d.Detail); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// LoadGraph reads the descriptors of a run and links them again.
func (s *SQLiteStore) LoadGraph(ctx context.Context, runID string) (*graph.Graph, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	// 1. Modules
	modules, order, err := s.loadModules(ctx, runID)
	if err != nil {
		return nil, err
	}

	// 2. Members
	rows, err := s.db.QueryContext(ctx,
		"SELECT owner, kind, name, descriptor, flags FROM members WHERE run_id = ? ORDER BY owner, ordinal", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mem extractor.Member
		var flags uint16
		if err := rows.Scan(&mem.Owner, &mem.Kind, &mem.Name, &mem.Descriptor, &flags); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		mem.Flags = extractor.AccessFlags(flags)
		if m, ok := modules[mem.Owner]; ok {
			m.Members = append(m.Members, &mem)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 3. Sites
	siteRows, err := s.db.QueryContext(ctx,
		"SELECT owner, member, kind, target, name, descriptor, interface, line FROM sites WHERE run_id = ? ORDER BY owner, member, ordinal", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer siteRows.Close()

	for siteRows.Next() {
		var owner string
		var member int
		var site extractor.AccessSite
		if err := siteRows.Scan(&owner, &member, &site.Kind, &site.Owner, &site.Name, &site.Descriptor, &site.Interface, &site.Line); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		m, ok := modules[owner]
		switch {
		case !ok:
		case member == headerSites:
			m.Sites = append(m.Sites, &site)
		case member >= 0 && member < len(m.Members):
			m.Members[member].Sites = append(m.Members[member].Sites, &site)
		default:
			return nil, fmt.Errorf("site of %s references missing member %d", owner, member)
		}
	}
	if err := siteRows.Err(); err != nil {
		return nil, err
	}

	// 4. Link
	b := graph.NewBuilder(nil)
	for _, name := range order {
		if err := b.Add(modules[name]); err != nil {
			return nil, err
		}
	}
	diags, err := s.loadDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, d := range diags {
		b.Note(d)
	}
	return b.Build(), nil
}

func (s *SQLiteStore) loadModules(ctx context.Context, runID string) (map[string]*extractor.Module, []string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, kind, flags, super_name, interfaces, source_file, major, minor, location FROM modules WHERE run_id = ? ORDER BY name", runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	modules := make(map[string]*extractor.Module)
	var order []string
	for rows.Next() {
		var m extractor.Module
		var flags uint16
		var interfaces []byte
		var loc string
		if err := rows.Scan(&m.Name, &m.Kind, &flags, &m.SuperName, &interfaces, &m.SourceFile,
			&m.Version.Major, &m.Version.Minor, &loc); err != nil {
			return nil, nil, fmt.Errorf("failed to scan module: %w", err)
		}
		m.Flags = extractor.AccessFlags(flags)
		if len(interfaces) > 0 {
			if err := json.Unmarshal(interfaces, &m.Interfaces); err != nil {
				return nil, nil, fmt.Errorf("module %s interfaces: %w", m.Name, err)
			}
		}
		if m.Location, err = location.Parse(loc); err != nil {
			return nil, nil, fmt.Errorf("module %s location: %w", m.Name, err)
		}
		modules[m.Name] = &m
		order = append(order, m.Name)
	}
	return modules, order, rows.Err()
}

func (s *SQLiteStore) loadDiagnostics(ctx context.Context, runID string) ([]graph.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, name, detail FROM diagnostics WHERE run_id = ? ORDER BY ordinal", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []graph.Diagnostic
	for rows.Next() {
		var d graph.Diagnostic
		if err := rows.Scan(&d.Kind, &d.Name, &d.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

const runColumns = "id, key, created_at, modules, dependencies"

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var created int64
	if err := row.Scan(&r.ID, &r.Key, &created, &r.Modules, &r.Dependencies); err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1")
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
