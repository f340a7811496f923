package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the profile store. Besides generic CRUD it carries the
// tenant-membership mutations that invite redemption drives.
type Profiles interface {
	repository.Repository[*Profile]

	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Profile, error)

	CountTenantRole(ctx context.Context, tenantID uuid.UUID, role Role) (int, error)
	CountTenantRoleTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role Role) (int, error)

	AssignTenant(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, role Role) (*Profile, error)
	AssignTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tenantID uuid.UUID, role Role) (*Profile, error)

	GetOrCreate(ctx context.Context, record *Profile) (*Profile, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Profile, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *profiles) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Profile, error) {
	trimmed := strings.TrimSpace(identifier)

	column := "email"
	if _, err := uuid.Parse(trimmed); err == nil {
		column = "id"
	} else if _, err := mail.ParseAddress(trimmed); err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"identifier": identifier,
			})
	}

	record := &Profile{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), trimmed).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"identifier": identifier,
			})
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *profiles) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"email": email,
			})
		}
		return nil, err
	}
	return record, nil
}

func (a *profiles) Create(ctx context.Context, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	record.EnsureDefaults()
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// CountTenantRole counts current occupied seats of a role within a tenant.
// Soft-deleted profiles never hold a seat.
func (a *profiles) CountTenantRole(ctx context.Context, tenantID uuid.UUID, role Role) (int, error) {
	return a.CountTenantRoleTx(ctx, a.db, tenantID, role)
}

func (a *profiles) CountTenantRoleTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role Role) (int, error) {
	return tx.NewSelect().
		Model((*Profile)(nil)).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.user_role = ?", string(role)).
		Where("?TableAlias.deleted_at IS NULL").
		Count(ctx)
}

func (a *profiles) AssignTenant(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, role Role) (*Profile, error) {
	return a.AssignTenantTx(ctx, a.db, id, tenantID, role)
}

// AssignTenantTx moves a profile into a tenant with the given role. Callers
// run it inside the redemption transaction so seat accounting and membership
// commit together.
func (a *profiles) AssignTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tenantID uuid.UUID, role Role) (*Profile, error) {
	now := time.Now()

	record := &Profile{}
	record.ID = id
	record.TenantID = &tenantID
	record.Role = role
	record.UpdatedAt = &now

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

// NewProfileReader adapts the repository to the narrow ProfileReader
// interface the session manager consumes.
func NewProfileReader(repo Profiles) ProfileReader {
	return repoProfileReader{repo: repo}
}

type repoProfileReader struct {
	repo Profiles
}

func (r repoProfileReader) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.repo.GetByID(ctx, id.String())
}

func (a *profiles) GetOrCreate(ctx context.Context, record *Profile) (*Profile, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *profiles) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error) {
	identifier := record.Email
	if record.ID != uuid.Nil {
		identifier = record.ID.String()
	}

	profile, err := a.GetByIdentifierTx(ctx, tx, identifier)
	if err == nil {
		return profile, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.CreateTx(ctx, tx, record)
}
