package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxLedgerRepository persists ledger transactions and their entries.
type PgxLedgerRepository struct {
	BaseRepository
}

func newPgxLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const entryColumns = `
	entry_id, transaction_id, transaction_date, module_source, reference_type, reference_id,
	account_code, description, debit, credit, currency, period, fiscal_year,
	is_reversed, reversed_by_transaction_id, reverses_transaction_id, created_at, created_by`

func scanEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var (
		e      domain.LedgerEntry
		period string
	)
	err := row.Scan(
		&e.EntryID, &e.TransactionID, &e.TransactionDate, &e.ModuleSource, &e.ReferenceType, &e.ReferenceID,
		&e.AccountCode, &e.Description, &e.Debit, &e.Credit, &e.Currency, &period, &e.FiscalYear,
		&e.IsReversed, &e.ReversedByTransactionID, &e.ReversesTransactionID, &e.CreatedAt, &e.CreatedBy,
	)
	e.Period = domain.Period(period)
	return e, err
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveTransaction inserts the header and every entry in one transaction.
func (r *PgxLedgerRepository) SaveTransaction(ctx context.Context, txn domain.LedgerTransaction, entries []domain.LedgerEntry) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return insertTransaction(ctx, tx, txn, entries)
	})
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn domain.LedgerTransaction, entries []domain.LedgerEntry) error {
	headerQuery := `
		INSERT INTO ledger_transactions (
			transaction_id, transaction_date, module_source, reference_type, reference_id,
			description, currency, period, fiscal_year, reverses_transaction_id, created_at, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.Exec(ctx, headerQuery,
		txn.TransactionID, txn.TransactionDate, txn.ModuleSource, txn.ReferenceType, txn.ReferenceID,
		txn.Description, txn.Currency, string(txn.Period), txn.FiscalYear, txn.ReversesTransactionID,
		txn.CreatedAt, txn.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction id %s", apperrors.ErrDuplicate, txn.TransactionID)
		}
		return storeError("failed to insert transaction "+txn.TransactionID, err)
	}

	entryQuery := `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(entryQuery,
			e.EntryID, e.TransactionID, e.TransactionDate, e.ModuleSource, e.ReferenceType, e.ReferenceID,
			e.AccountCode, e.Description, e.Debit, e.Credit, e.Currency, string(e.Period), e.FiscalYear,
			e.IsReversed, e.ReversedByTransactionID, e.ReversesTransactionID, e.CreatedAt, e.CreatedBy,
		)
	}
	// Close the batch results to surface the error of any single insert.
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storeError("failed to insert entries for transaction "+txn.TransactionID, err)
	}
	return nil
}

// ReverseTransaction locks the original entries, persists the reversal and flags the originals.
func (r *PgxLedgerRepository) ReverseTransaction(ctx context.Context, transactionID string, build portsrepo.ReversalBuilder) (*domain.PostedTransaction, error) {
	var posted *domain.PostedTransaction
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		lockQuery := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE transaction_id = $1 ORDER BY entry_id FOR UPDATE`
		rows, err := tx.Query(ctx, lockQuery, transactionID)
		if err != nil {
			return storeError("failed to lock entries of "+transactionID, err)
		}
		original, err := collectEntries(rows)
		if err != nil {
			return storeError("failed to read entries of "+transactionID, err)
		}
		if len(original) == 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrTransactionNotFound, transactionID)
		}

		header, entries, err := build(original)
		if err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, header, entries); err != nil {
			return err
		}

		flagQuery := `
			UPDATE ledger_entries
			SET is_reversed = TRUE, reversed_by_transaction_id = $2
			WHERE transaction_id = $1
		`
		if _, err := tx.Exec(ctx, flagQuery, transactionID, header.TransactionID); err != nil {
			return storeError("failed to flag entries of "+transactionID, err)
		}
		posted = &domain.PostedTransaction{LedgerTransaction: header, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// FindTransactionByID loads a header and its entries.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.PostedTransaction, error) {
	headerQuery := `
		SELECT transaction_id, transaction_date, module_source, reference_type, reference_id,
		       description, currency, period, fiscal_year, reverses_transaction_id, created_at, created_by
		FROM ledger_transactions
		WHERE transaction_id = $1
	`
	var (
		t      domain.PostedTransaction
		period string
	)
	err := r.Pool.QueryRow(ctx, headerQuery, transactionID).Scan(
		&t.TransactionID, &t.TransactionDate, &t.ModuleSource, &t.ReferenceType, &t.ReferenceID,
		&t.Description, &t.Currency, &period, &t.FiscalYear, &t.ReversesTransactionID, &t.CreatedAt, &t.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTransactionNotFound, transactionID)
		}
		return nil, storeError("failed to find transaction "+transactionID, err)
	}
	t.Period = domain.Period(period)

	rows, err := r.Pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE transaction_id = $1 ORDER BY entry_id`, transactionID)
	if err != nil {
		return nil, storeError("failed to query entries of "+transactionID, err)
	}
	t.Entries, err = collectEntries(rows)
	if err != nil {
		return nil, storeError("failed to read entries of "+transactionID, err)
	}
	return &t, nil
}

// ListEntriesByAccount returns entries for the code dated within [from, to].
func (r *PgxLedgerRepository) ListEntriesByAccount(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_code = $1 AND transaction_date BETWEEN $2 AND $3
		ORDER BY transaction_date, created_at, entry_id
	`
	rows, err := r.Pool.Query(ctx, query, accountCode, domain.DateOnly(from), domain.DateOnly(to))
	if err != nil {
		return nil, storeError("failed to query entries for account "+accountCode, err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, storeError("failed to read entries for account "+accountCode, err)
	}
	return entries, nil
}

// AccountTotalsByPeriod aggregates every entry of one bucket per account code.
func (r *PgxLedgerRepository) AccountTotalsByPeriod(ctx context.Context, period domain.Period, fiscalYear int) ([]domain.AccountTotal, error) {
	query := `
		SELECT account_code, SUM(debit), SUM(credit)
		FROM ledger_entries
		WHERE period = $1 AND fiscal_year = $2
		GROUP BY account_code
		ORDER BY account_code
	`
	rows, err := r.Pool.Query(ctx, query, string(period), fiscalYear)
	if err != nil {
		return nil, storeError("error querying trial balance data", err)
	}
	defer rows.Close()

	totals := []domain.AccountTotal{}
	for rows.Next() {
		var t domain.AccountTotal
		if err := rows.Scan(&t.AccountCode, &t.Debit, &t.Credit); err != nil {
			return nil, storeError("error scanning trial balance row", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating trial balance rows", err)
	}
	return totals, nil
}
