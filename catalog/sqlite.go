package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wippyai/asset-runtime/asset"
	"github.com/wippyai/asset-runtime/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assets (
	guid         TEXT    NOT NULL,
	sub_id       INTEGER NOT NULL,
	type         TEXT    NOT NULL,
	path         TEXT    NOT NULL UNIQUE,
	watch_folder TEXT    NOT NULL DEFAULT '',
	size         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (guid, sub_id)
);
`

// SQLite is a catalog persisted in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the catalog database at path. Use
// ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "open catalog db")
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "migrate catalog db")
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Register inserts or replaces the entry for info.ID.
func (s *SQLite) Register(ctx context.Context, info asset.AssetInfo) error {
	if !info.ID.IsValid() {
		return errors.InvalidInput(errors.PhaseCatalog, "asset id is null")
	}
	if info.Path == "" {
		return errors.InvalidInput(errors.PhaseCatalog, "asset "+info.ID.String()+" has no path")
	}
	typeText, _ := info.Type.MarshalText()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (guid, sub_id, type, path, watch_folder, size) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (guid, sub_id) DO UPDATE SET
		   type = excluded.type, path = excluded.path,
		   watch_folder = excluded.watch_folder, size = excluded.size`,
		info.ID.GUID.String(), int64(info.ID.SubID), string(typeText),
		CleanPath(info.Path), info.WatchFolder, info.Size,
	)
	if err != nil {
		return errors.New(errors.PhaseCatalog, errors.KindInvalidInput).
			Asset(info.ID.String()).
			Path(info.Path).
			Cause(err).
			Detail("register asset").
			Build()
	}
	return nil
}

// Import copies every entry of m into the database in one transaction.
func (s *SQLite) Import(ctx context.Context, m *Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "begin import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO assets (guid, sub_id, type, path, watch_folder, size) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "prepare import")
	}
	defer stmt.Close()

	for _, info := range m.List() {
		typeText, _ := info.Type.MarshalText()
		if _, err := stmt.ExecContext(ctx,
			info.ID.GUID.String(), int64(info.ID.SubID), string(typeText),
			info.Path, info.WatchFolder, info.Size); err != nil {
			return errors.New(errors.PhaseCatalog, errors.KindInvalidInput).
				Asset(info.ID.String()).
				Path(info.Path).
				Cause(err).
				Detail("import asset").
				Build()
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "commit import")
	}
	return nil
}

// Remove deletes the entry for id.
func (s *SQLite) Remove(ctx context.Context, id asset.AssetID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assets WHERE guid = ? AND sub_id = ?`, id.GUID.String(), int64(id.SubID))
	if err != nil {
		return false, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "remove asset")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AssetInfo implements asset.Catalog.
func (s *SQLite) AssetInfo(ctx context.Context, id asset.AssetID) (asset.AssetInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guid, sub_id, type, path, watch_folder, size FROM assets WHERE guid = ? AND sub_id = ?`,
		id.GUID.String(), int64(id.SubID))
	info, err := scanInfo(row)
	if err == sql.ErrNoRows {
		return asset.AssetInfo{}, errors.NotFound(errors.PhaseCatalog, "asset", id.String())
	}
	return info, err
}

// AssetID implements asset.Catalog.
func (s *SQLite) AssetID(ctx context.Context, p string) (asset.AssetID, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guid, sub_id, type, path, watch_folder, size FROM assets WHERE path = ?`, CleanPath(p))
	info, err := scanInfo(row)
	if err == sql.ErrNoRows {
		return asset.AssetID{}, errors.NotFound(errors.PhaseCatalog, "path", p)
	}
	return info.ID, err
}

// List returns every entry ordered by path.
func (s *SQLite) List(ctx context.Context) ([]asset.AssetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guid, sub_id, type, path, watch_folder, size FROM assets ORDER BY path`)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "list assets")
	}
	defer rows.Close()

	var out []asset.AssetInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "list assets")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(s scanner) (asset.AssetInfo, error) {
	var (
		guid, typ string
		sub       int64
		info      asset.AssetInfo
	)
	if err := s.Scan(&guid, &sub, &typ, &info.Path, &info.WatchFolder, &info.Size); err != nil {
		if err == sql.ErrNoRows {
			return info, err
		}
		return info, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "scan asset")
	}
	u, err := uuid.Parse(guid)
	if err != nil {
		return info, errors.Wrap(errors.PhaseCatalog, errors.KindInvalidInput, err, "stored guid")
	}
	info.ID = asset.AssetID{GUID: u, SubID: uint32(sub)}
	info.Type = asset.ParseTypeTag(typ)
	return info, nil
}
