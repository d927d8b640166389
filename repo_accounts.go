package membership

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// MarkAccountVerifiedSQL flips the verified flag only if it is still unset.
// RowsAffected tells the caller whether it won the transition.
var MarkAccountVerifiedSQL = `UPDATE "accounts"
SET
	"is_verified" = TRUE,
	"verified_at" = ?,
	"updated_at" = ?
WHERE
	"username" = ?
AND
	"is_verified" = FALSE;`

// Accounts is the credential store for account records
type Accounts interface {
	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	TakenIdentitiesTx(ctx context.Context, tx bun.IDB, username, email string) ([]string, error)
	MarkVerified(ctx context.Context, username string, at time.Time) (*Account, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, username string, at time.Time) (*Account, error)
}

type accounts struct {
	base repository.Repository[*Account]
	db   *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository creates the bun backed Accounts repository
func NewAccountsRepository(db *bun.DB) Accounts {
	base := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &accounts{
		base: base,
		db:   db,
	}
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

// CreateTx inserts the account. A unique constraint violation is reported
// as a duplicate identity error naming the offending field.
func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record == nil {
		return nil, goerrors.New("account record must not be nil", goerrors.CategoryBadInput)
	}

	prepareAccountDefaults(record)

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return nil, NewDuplicateIdentityError(field)
		}
		return nil, WrapStoreError(err, "failed to create account")
	}

	return record, nil
}

func (a *accounts) GetByID(ctx context.Context, id string) (*Account, error) {
	record, err := a.base.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, WrapStoreError(err, "failed to load account")
	}
	return record, nil
}

func (a *accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *accounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.getBy(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getBy(ctx, tx, "email", normalizeEmail(email))
}

func (a *accounts) getBy(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, WrapStoreError(err, "failed to load account")
	}

	return record, nil
}

// TakenIdentitiesTx returns which of username and email already belong to
// an account. It is advisory; the insert is the authority.
func (a *accounts) TakenIdentitiesTx(ctx context.Context, tx bun.IDB, username, email string) ([]string, error) {
	var rows []Account
	err := tx.NewSelect().
		Model(&rows).
		Column("username", "email").
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		WhereOr("?TableAlias.email = ?", normalizeEmail(email)).
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, WrapStoreError(err, "failed to check account identity")
	}

	var taken []string
	var usernameTaken, emailTaken bool
	for _, row := range rows {
		if row.Username == strings.TrimSpace(username) {
			usernameTaken = true
		}
		if row.Email == normalizeEmail(email) {
			emailTaken = true
		}
	}

	if emailTaken {
		taken = append(taken, "email")
	}
	if usernameTaken {
		taken = append(taken, "username")
	}

	return taken, nil
}

func (a *accounts) MarkVerified(ctx context.Context, username string, at time.Time) (*Account, error) {
	return a.MarkVerifiedTx(ctx, a.db, username, at)
}

// MarkVerifiedTx performs the single false to true transition of the
// verified flag. Exactly one of any number of concurrent callers succeeds;
// the rest get ErrAlreadyVerified. ErrUnknownSubject means no such account.
func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, username string, at time.Time) (*Account, error) {
	at = at.UTC()

	res, err := tx.NewRaw(MarkAccountVerifiedSQL, at, at, username).Exec(ctx)
	if err != nil {
		return nil, WrapStoreError(err, "failed to mark account verified")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, WrapStoreError(err, "failed to read verification result")
	}

	record, err := a.GetByUsernameTx(ctx, tx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}

	if affected == 0 {
		return nil, ErrAlreadyVerified
	}

	return record, nil
}

func prepareAccountDefaults(record *Account) {
	now := time.Now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	record.Email = normalizeEmail(record.Email)
	record.Username = strings.TrimSpace(record.Username)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		goerrors.IsNotFound(err)
}

// uniqueViolationField maps a unique constraint failure from SQLite or
// Postgres to the account field it protects.
func uniqueViolationField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return "", false
		}
		return constraintField(pgErr.ConstraintName), true
	}

	msg := err.Error()
	const sqliteUnique = "UNIQUE constraint failed: "
	if i := strings.Index(msg, sqliteUnique); i >= 0 {
		fields := strings.Fields(strings.SplitN(msg[i+len(sqliteUnique):], ",", 2)[0])
		if len(fields) == 0 {
			return "", true
		}
		cols := fields[0]
		if j := strings.LastIndex(cols, "."); j >= 0 {
			cols = cols[j+1:]
		}
		return cols, true
	}

	return "", false
}

func constraintField(constraint string) string {
	switch {
	case strings.HasSuffix(constraint, "_email"), strings.HasSuffix(constraint, "_email_key"):
		return "email"
	case strings.HasSuffix(constraint, "_username"), strings.HasSuffix(constraint, "_username_key"):
		return "username"
	case strings.HasSuffix(constraint, "_slug_name"), strings.HasSuffix(constraint, "_slug_name_key"):
		return "slug_name"
	}
	return constraint
}

// UniqueViolationField exposes the unique constraint mapping to sibling packages
func UniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	return uniqueViolationField(err)
}
