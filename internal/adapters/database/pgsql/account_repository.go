package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/erp_reconciliation/internal/utils/accounting"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgxAccountRepository reads the chart of accounts and the account registry.
type PgxAccountRepository struct {
	BaseRepository
}

func newPgxAccountRepository(pool *pgxpool.Pool) portsrepo.AccountRepositoryFacade {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

// Current balance is derived from the ledger so it can never drift from posted entries.
const selectAccountWithTotals = `
	SELECT a.account_id, a.code, a.name, a.account_type, a.is_active,
	       COALESCE(SUM(e.debit), 0), COALESCE(SUM(e.credit), 0)
	FROM accounts a
	LEFT JOIN ledger_entries e ON e.account_code = a.code
`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc           domain.Account
		accountType   string
		debit, credit decimal.Decimal
	)
	if err := row.Scan(&acc.AccountID, &acc.Code, &acc.Name, &accountType, &acc.IsActive, &debit, &credit); err != nil {
		return nil, err
	}
	acc.AccountType = domain.AccountType(accountType)
	balance, err := accounting.SignedAmount(acc.AccountType, debit, credit)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", acc.AccountID, err)
	}
	acc.CurrentBalance = balance
	return &acc, nil
}

// FindAccountByCode resolves a chart entry.
func (r *PgxAccountRepository) FindAccountByCode(ctx context.Context, code string) (*domain.ChartAccount, error) {
	query := `SELECT code, name, account_type, is_active FROM accounts WHERE code = $1`

	var (
		acc         domain.ChartAccount
		accountType string
	)
	err := r.Pool.QueryRow(ctx, query, code).Scan(&acc.Code, &acc.Name, &accountType, &acc.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", apperrors.ErrAccountNotFound, code)
		}
		return nil, storeError("failed to find account by code", err)
	}
	acc.AccountType = domain.AccountType(accountType)
	return &acc, nil
}

// FindAccountByID resolves a registry account with its ledger balance.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := selectAccountWithTotals + ` WHERE a.account_id = $1 GROUP BY a.account_id`

	acc, err := scanAccount(r.Pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %s", apperrors.ErrAccountNotFound, accountID)
		}
		return nil, storeError("failed to find account "+accountID, err)
	}
	return acc, nil
}

// ListAccounts returns every account ordered by code.
func (r *PgxAccountRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	query := selectAccountWithTotals + ` GROUP BY a.account_id ORDER BY a.code`

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, storeError("failed to list accounts", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, storeError("failed to scan account", err)
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate accounts", err)
	}
	return accounts, nil
}

// SaveAccount inserts a new account.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account, actor string) error {
	query := `
		INSERT INTO accounts (account_id, code, name, account_type, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.Pool.Exec(ctx, query, account.AccountID, account.Code, account.Name, string(account.AccountType), account.IsActive, actor)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account %s already exists", apperrors.ErrDuplicate, account.Code)
		}
		return storeError("failed to save account "+account.Code, err)
	}
	return nil
}
