package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invites is the invite store. Lookups are by token hash only: raw tokens
// never reach the database.
type Invites interface {
	repository.Repository[*Invite]

	GetByTokenHash(ctx context.Context, tokenHash string) (*Invite, error)
	GetByTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*Invite, error)

	MarkClaimedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, claimedBy uuid.UUID, claimedAt time.Time) (bool, error)

	CountPending(ctx context.Context, tenantID uuid.UUID, role Role, now time.Time) (int, error)
	CountPendingTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role Role, now time.Time) (int, error)

	Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) (*Invite, error)
	RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, revokedAt time.Time) (*Invite, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Invite, error)
	ListByTenantTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID) ([]*Invite, error)
}

type invites struct {
	repository.Repository[*Invite]
	db *bun.DB
}

var (
	_ Invites                        = (*invites)(nil)
	_ repository.Repository[*Invite] = (*invites)(nil)
)

func NewInvitesRepository(db *bun.DB) Invites {
	repo := repository.NewRepository[*Invite](db, repository.ModelHandlers[*Invite]{
		NewRecord: func() *Invite { return &Invite{} },
		GetID: func(i *Invite) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invite, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &invites{
		Repository: repo,
		db:         db,
	}
}

func (a *invites) GetByTokenHash(ctx context.Context, tokenHash string) (*Invite, error) {
	return a.GetByTokenHashTx(ctx, a.db, tokenHash)
}

func (a *invites) GetByTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*Invite, error) {
	record := &Invite{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"token_hash": tokenHash,
			})
		}
		return nil, err
	}
	return record, nil
}

// MarkClaimedTx flips an invite to claimed, guarded so only one concurrent
// redemption can win: the UPDATE matches solely while the invite is still
// unclaimed and unrevoked. A false return means another transaction got
// there first.
func (a *invites) MarkClaimedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, claimedBy uuid.UUID, claimedAt time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*Invite)(nil)).
		Set("claimed_by = ?", claimedBy).
		Set("claimed_at = ?", claimedAt).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.claimed_by IS NULL").
		Where("?TableAlias.revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// CountPending counts live invites for a role: not claimed, not revoked,
// not yet expired. Pending invites hold a seat so concurrent invitations
// cannot oversubscribe the plan.
func (a *invites) CountPending(ctx context.Context, tenantID uuid.UUID, role Role, now time.Time) (int, error) {
	return a.CountPendingTx(ctx, a.db, tenantID, role, now)
}

func (a *invites) CountPendingTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID, role Role, now time.Time) (int, error) {
	return tx.NewSelect().
		Model((*Invite)(nil)).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.invite_role = ?", string(role)).
		Where("?TableAlias.claimed_by IS NULL").
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Count(ctx)
}

func (a *invites) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) (*Invite, error) {
	return a.RevokeTx(ctx, a.db, id, revokedAt)
}

func (a *invites) RevokeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, revokedAt time.Time) (*Invite, error) {
	record := &Invite{}
	record.ID = id
	record.RevokedAt = &revokedAt

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *invites) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Invite, error) {
	return a.ListByTenantTx(ctx, a.db, tenantID)
}

func (a *invites) ListByTenantTx(ctx context.Context, tx bun.IDB, tenantID uuid.UUID) ([]*Invite, error) {
	var records []*Invite
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
