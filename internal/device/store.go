package device

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nerrad567/insteon-bridge/internal/infrastructure/database"
	"github.com/nerrad567/insteon-bridge/migrations"
)

// StoreFileName is the registry file kept inside the working directory.
const StoreFileName = "insteon_devices.db"

// Store persists the registry between runs.
type Store interface {
	Load(ctx context.Context) ([]*Device, error)
	Save(ctx context.Context, devices []*Device) error
	Close() error
}

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db *database.DB
}

// OpenStore opens (creating if needed) the registry file in workdir and
// applies pending schema migrations.
func OpenStore(ctx context.Context, workdir string, walMode bool, busyTimeout int) (*SQLiteStore, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(workdir, StoreFileName),
		WALMode:     walMode,
		BusyTimeout: busyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating device store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Path returns the file backing the store.
func (s *SQLiteStore) Path() string {
	return s.db.Path()
}

// Load reads every persisted device.
func (s *SQLiteStore) Load(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, type, cat, subcat, firmware, product_key,
		       description, model, x10_house, x10_unit, groups, updated_at
		FROM devices ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		var (
			d         Device
			typeName  string
			groups    string
			updatedAt string
			cat       *int
			subcat    *int
			firmware  *int
			prodKey   *int
		)
		if err := rows.Scan(&d.Address, &typeName, &cat, &subcat, &firmware, &prodKey,
			&d.Description, &d.Model, &d.X10House, &d.X10Unit, &groups, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}

		// An unrecognised type name from an older file degrades to unknown
		// so the device is identified again.
		d.Type, _ = ParseType(typeName) //nolint:errcheck // see above
		d.Cat = derefInt(cat)
		d.Subcat = derefInt(subcat)
		d.Firmware = derefInt(firmware)
		d.ProductKey = derefInt(prodKey)

		if err := json.Unmarshal([]byte(groups), &d.Groups); err != nil {
			return nil, fmt.Errorf("decoding groups for %s: %w", d.Address, err)
		}
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

		devices = append(devices, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Save replaces the persisted registry with devices in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, devices []*Device) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM devices"); err != nil {
		return fmt.Errorf("clearing devices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices (address, type, cat, subcat, firmware, product_key,
		                     description, model, x10_house, x10_unit, groups, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range devices {
		groups, err := json.Marshal(d.Groups)
		if err != nil {
			return fmt.Errorf("encoding groups for %s: %w", d.Address, err)
		}
		if d.Groups == nil {
			groups = []byte("[]")
		}
		updatedAt := d.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}

		if _, err := stmt.ExecContext(ctx,
			string(d.Address), d.Type.String(),
			d.Cat, d.Subcat, d.Firmware, d.ProductKey,
			d.Description, d.Model, d.X10House, d.X10Unit,
			string(groups), updatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting %s: %w", d.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing devices: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
