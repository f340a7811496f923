package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Profiles() Profiles
	Invites() Invites
	Tenants() Tenants
}

// Tenants is the tenant store.
type Tenants interface {
	repository.Repository[*Tenant]

	GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Tenant, error)
}

type tenants struct {
	repository.Repository[*Tenant]
	db *bun.DB
}

var _ Tenants = (*tenants)(nil)

func NewTenantsRepository(db *bun.DB) Tenants {
	repo := repository.NewRepository[*Tenant](db, repository.ModelHandlers[*Tenant]{
		NewRecord: func() *Tenant { return &Tenant{} },
		GetID: func(t *Tenant) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tenant, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &tenants{
		Repository: repo,
		db:         db,
	}
}

func (a *tenants) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return a.GetTenantTx(ctx, a.db, id)
}

func (a *tenants) GetTenantTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Tenant, error) {
	record := &Tenant{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

type mngr struct {
	db       *bun.DB
	profiles Profiles
	invites  Invites
	tenants  Tenants
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		profiles: NewProfilesRepository(db),
		invites:  NewInvitesRepository(db),
		tenants:  NewTenantsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.invites == nil {
		return errors.New("repository invites should be initialized")
	}

	if m.tenants == nil {
		return errors.New("repository tenants should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) Invites() Invites {
	return m.invites
}

func (m mngr) Tenants() Tenants {
	return m.tenants
}
