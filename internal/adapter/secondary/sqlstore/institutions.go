package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// InstitutionRepository reads the institutions table.
type InstitutionRepository struct{}

// GetByCode returns the institution with code.
func (InstitutionRepository) GetByCode(ctx context.Context, sess *Session, code string) (*entity.Institution, error) {
	query := `SELECT id, name, code, api_key FROM institutions WHERE code = ? LIMIT 1`

	var inst entity.Institution
	err := sess.conn.QueryRowContext(ctx, query, code).Scan(&inst.ID, &inst.Name, &inst.Code, &inst.APIKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInstitutionNotFound, code)
		}
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}

	return &inst, nil
}

// Upsert inserts or replaces an institution. Used to seed SQLite databases.
func (InstitutionRepository) Upsert(ctx context.Context, sess *Session, inst *entity.Institution) error {
	query := `INSERT INTO institutions (name, code, api_key) VALUES (?, ?, ?)
ON CONFLICT(code) DO UPDATE SET name = excluded.name, api_key = excluded.api_key`

	if _, err := sess.conn.ExecContext(ctx, query, inst.Name, inst.Code, inst.APIKey); err != nil {
		return fmt.Errorf("failed to upsert institution %s: %w", inst.Code, err)
	}
	return nil
}

// Directory implements secondary.InstitutionDirectory with one session per
// lookup.
type Directory struct {
	store  *Store
	repo   InstitutionRepository
	logger *zap.Logger
}

var _ secondary.InstitutionDirectory = (*Directory)(nil)

// NewDirectory creates a database-backed institution directory.
func NewDirectory(store *Store, logger *zap.Logger) *Directory {
	return &Directory{store: store, logger: logger.Named("institution-directory")}
}

// Lookup resolves code to an institution.
func (d *Directory) Lookup(ctx context.Context, code string) (*entity.Institution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", domain.ErrInstitutionNotFound)
	}

	sess, err := d.store.Session(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			d.logger.Warn("closing database session", zap.Error(cerr))
		}
	}()

	return d.repo.GetByCode(ctx, sess, code)
}
