package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const debtColumns = `d.debt_id, d.driver_id, d.amount, d.reason, d.description, d.status, d.settlement_id,
	d.original_debt_id, d.original_amount, d.paid_amount, d.payment_reference, d.paid_at, d.paid_by,
	d.cancelled_at, d.cancelled_by, d.cancellation_reason, d.created_at, d.created_by, u.name`

type PgxDebtRepository struct {
	db *pgxpool.Pool
}

func newPgxDebtRepository(db *pgxpool.Pool) portsrepo.DebtRepositoryFacade {
	return &PgxDebtRepository{db: db}
}

var _ portsrepo.DebtRepositoryFacade = (*PgxDebtRepository)(nil)

func toModelDebt(d domain.DebtRecord) models.DebtRecord {
	return models.DebtRecord{
		DebtID:             d.DebtID,
		DriverID:           d.DriverID,
		Amount:             d.Amount,
		Reason:             string(d.Reason),
		Description:        d.Description,
		Status:             string(d.Status),
		SettlementID:       toNullString(d.SettlementID),
		OriginalDebtID:     toNullString(d.OriginalDebtID),
		OriginalAmount:     toNullDecimal(d.OriginalAmount),
		PaidAmount:         toNullDecimal(d.PaidAmount),
		PaymentReference:   toNullString(d.PaymentReference),
		PaidAt:             toNullTime(d.PaidAt),
		PaidBy:             toNullString(d.PaidBy),
		CancelledAt:        toNullTime(d.CancelledAt),
		CancelledBy:        toNullString(d.CancelledBy),
		CancellationReason: toNullString(d.CancellationReason),
		CreatedAt:          d.CreatedAt,
		CreatedBy:          d.CreatedBy,
	}
}

func toDomainDebt(m models.DebtRecord) domain.DebtRecord {
	return domain.DebtRecord{
		DebtID:             m.DebtID,
		DriverID:           m.DriverID,
		Amount:             m.Amount,
		Reason:             domain.DebtReason(m.Reason),
		Description:        m.Description,
		Status:             domain.DebtStatus(m.Status),
		SettlementID:       fromNullString(m.SettlementID),
		OriginalDebtID:     fromNullString(m.OriginalDebtID),
		OriginalAmount:     fromNullDecimal(m.OriginalAmount),
		PaidAmount:         fromNullDecimal(m.PaidAmount),
		PaymentReference:   fromNullString(m.PaymentReference),
		PaidAt:             fromNullTime(m.PaidAt),
		PaidBy:             fromNullString(m.PaidBy),
		CancelledAt:        fromNullTime(m.CancelledAt),
		CancelledBy:        fromNullString(m.CancelledBy),
		CancellationReason: fromNullString(m.CancellationReason),
		CreatedAt:          m.CreatedAt,
		CreatedBy:          m.CreatedBy,
		DriverName:         m.DriverName.String,
	}
}

func scanDebt(row pgx.Row) (domain.DebtRecord, error) {
	var m models.DebtRecord
	err := row.Scan(
		&m.DebtID,
		&m.DriverID,
		&m.Amount,
		&m.Reason,
		&m.Description,
		&m.Status,
		&m.SettlementID,
		&m.OriginalDebtID,
		&m.OriginalAmount,
		&m.PaidAmount,
		&m.PaymentReference,
		&m.PaidAt,
		&m.PaidBy,
		&m.CancelledAt,
		&m.CancelledBy,
		&m.CancellationReason,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.DriverName,
	)
	if err != nil {
		return domain.DebtRecord{}, err
	}
	return toDomainDebt(m), nil
}

func collectDebts(rows pgx.Rows) ([]domain.DebtRecord, error) {
	defer rows.Close()
	debts := []domain.DebtRecord{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debt rows: %w", err)
	}
	return debts, nil
}

func (r *PgxDebtRepository) findOne(ctx context.Context, q queryer, query, debtID string) (*domain.DebtRecord, error) {
	debt, err := scanDebt(q.QueryRow(ctx, query, debtID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find debt %s: %w", debtID, err)
	}
	return &debt, nil
}

func (r *PgxDebtRepository) FindDebtByID(ctx context.Context, debtID string) (*domain.DebtRecord, error) {
	query := `SELECT ` + debtColumns + ` FROM debts d LEFT JOIN users u ON u.user_id = d.driver_id WHERE d.debt_id = $1;`
	return r.findOne(ctx, r.db, query, debtID)
}

// FindDebtByIDForUpdate locks the debt row. Must be called within a transaction.
func (r *PgxDebtRepository) FindDebtByIDForUpdate(ctx context.Context, tx pgx.Tx, debtID string) (*domain.DebtRecord, error) {
	query := `SELECT ` + debtColumns + ` FROM debts d LEFT JOIN users u ON u.user_id = d.driver_id WHERE d.debt_id = $1 FOR UPDATE OF d;`
	return r.findOne(ctx, tx, query, debtID)
}

// ListDebts returns debts matching the filter, newest first.
func (r *PgxDebtRepository) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtRecord, error) {
	conds := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.DriverID != nil {
		conds = append(conds, "d.driver_id = "+arg(*filter.DriverID))
	}
	if filter.Status != nil {
		conds = append(conds, "d.status = "+arg(string(*filter.Status)))
	}
	if filter.Range.From != nil {
		conds = append(conds, "d.created_at >= "+arg(*filter.Range.From))
	}
	if filter.Range.To != nil {
		conds = append(conds, "d.created_at <= "+arg(*filter.Range.To))
	}

	query := `SELECT ` + debtColumns + ` FROM debts d LEFT JOIN users u ON u.user_id = d.driver_id WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY d.created_at DESC;`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debts: %w", err)
	}
	return collectDebts(rows)
}

// FindPendingDebtsForUpdate locks the driver's pending debts, oldest first.
func (r *PgxDebtRepository) FindPendingDebtsForUpdate(ctx context.Context, tx pgx.Tx, driverID string) ([]domain.DebtRecord, error) {
	query := `
		SELECT ` + debtColumns + `
		FROM debts d LEFT JOIN users u ON u.user_id = d.driver_id
		WHERE d.driver_id = $1 AND d.status = 'pending'
		ORDER BY d.created_at ASC
		FOR UPDATE OF d;
	`
	rows, err := tx.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending debts for driver %s: %w", driverID, err)
	}
	return collectDebts(rows)
}

func (r *PgxDebtRepository) PendingTotalsByDriver(ctx context.Context) (map[string]decimal.Decimal, error) {
	query := `SELECT driver_id, SUM(amount) FROM debts WHERE status = 'pending' GROUP BY driver_id;`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending debt totals: %w", err)
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	for rows.Next() {
		var driverID string
		var total decimal.Decimal
		if err := rows.Scan(&driverID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan pending debt total: %w", err)
		}
		totals[driverID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending debt totals: %w", err)
	}
	return totals, nil
}

func (r *PgxDebtRepository) SaveDebtInTx(ctx context.Context, tx pgx.Tx, debt domain.DebtRecord) error {
	m := toModelDebt(debt)
	query := `
		INSERT INTO debts (debt_id, driver_id, amount, reason, description, status, settlement_id,
			original_debt_id, original_amount, paid_amount, payment_reference, paid_at, paid_by,
			cancelled_at, cancelled_by, cancellation_reason, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err := tx.Exec(ctx, query,
		m.DebtID, m.DriverID, m.Amount, m.Reason, m.Description, m.Status, m.SettlementID,
		m.OriginalDebtID, m.OriginalAmount, m.PaidAmount, m.PaymentReference, m.PaidAt, m.PaidBy,
		m.CancelledAt, m.CancelledBy, m.CancellationReason, m.CreatedAt, m.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: debt %s already exists", apperrors.ErrDuplicate, m.DebtID)
		}
		return fmt.Errorf("failed to save debt %s: %w", m.DebtID, err)
	}
	return nil
}

// UpdateDebtsInTx writes the mutable fields of every debt in one batch.
func (r *PgxDebtRepository) UpdateDebtsInTx(ctx context.Context, tx pgx.Tx, debts []domain.DebtRecord) error {
	if len(debts) == 0 {
		return nil
	}
	query := `
		UPDATE debts
		SET amount = $2, status = $3, original_amount = $4, paid_amount = $5, payment_reference = $6,
			paid_at = $7, paid_by = $8, cancelled_at = $9, cancelled_by = $10, cancellation_reason = $11
		WHERE debt_id = $1;
	`
	batch := &pgx.Batch{}
	for _, d := range debts {
		m := toModelDebt(d)
		batch.Queue(query, m.DebtID, m.Amount, m.Status, m.OriginalAmount, m.PaidAmount, m.PaymentReference,
			m.PaidAt, m.PaidBy, m.CancelledAt, m.CancelledBy, m.CancellationReason)
	}

	br := tx.SendBatch(ctx, batch)
	var batchErr error
	for i := 0; i < batch.Len(); i++ {
		ct, err := br.Exec()
		if err != nil {
			if batchErr == nil {
				batchErr = fmt.Errorf("failed to update debt %s: %w", debts[i].DebtID, err)
			}
		} else if ct.RowsAffected() == 0 && batchErr == nil {
			batchErr = fmt.Errorf("%w: debt %s not found during update", apperrors.ErrNotFound, debts[i].DebtID)
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("failed to close debt update batch: %w", err)
	}
	return batchErr
}
