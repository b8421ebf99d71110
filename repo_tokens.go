package users

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens persists login token records. Rows are created exactly once per
// successful login and never updated; deletion happens either explicitly or
// as part of deleting the owning user.
type Tokens interface {
	repository.Repository[*Token]

	Create(ctx context.Context, record *Token, criteria ...repository.InsertCriteria) (*Token, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Token, criteria ...repository.InsertCriteria) (*Token, error)

	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type tokensRepo struct {
	repository.Repository[*Token]
	db *bun.DB
}

var (
	_ Tokens                        = (*tokensRepo)(nil)
	_ repository.Repository[*Token] = (*tokensRepo)(nil)
)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &tokensRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *tokensRepo) Create(ctx context.Context, record *Token, criteria ...repository.InsertCriteria) (*Token, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *tokensRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Token, criteria ...repository.InsertCriteria) (*Token, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *tokensRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return a.DeleteByUserTx(ctx, a.db, userID)
}

// DeleteByUserTx hard deletes every token bound to the user. Run in the same
// transaction that removes the user so no credential survives the account.
func (a *tokensRepo) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	return err
}
