package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// pgUniqueViolation is the postgres SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

type Users interface {
	repository.Repository[*User]
	CredentialStore

	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	Insert(ctx context.Context, user *User) (*User, error)
	InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// FindByEmail returns ErrIdentityNotFound when no user owns email
func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return record, nil
}

// FindByID returns ErrIdentityNotFound when no user has id
func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := a.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return user, nil
}

func (a *users) Insert(ctx context.Context, user *User) (*User, error) {
	return a.InsertTx(ctx, a.db, user)
}

// InsertTx creates the user, a unique violation on email or id is reported
// as ErrDuplicateEmail.
func (a *users) InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil || user.Email == "" {
		return nil, ErrNoEmptyString
	}

	user.Email = NormalizeEmail(user.Email)
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := a.now()
	user.CreatedAt = &now
	user.UpdatedAt = &now

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return record, nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	if passwordHash == "" {
		return ErrNoEmptyString
	}

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// NormalizeEmail trims and lower cases email so lookups and the unique index
// agree on a single spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsUniqueViolation reports whether err comes from a unique index, for both
// the postgres and sqlite drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, pgUniqueViolation)
}
