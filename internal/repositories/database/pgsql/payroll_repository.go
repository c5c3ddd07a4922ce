package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxPayrollRepository struct {
	db *pgxpool.Pool
}

func newPgxPayrollRepository(db *pgxpool.Pool) portsrepo.PayrollRepositoryFacade {
	return &PgxPayrollRepository{db: db}
}

var _ portsrepo.PayrollRepositoryFacade = (*PgxPayrollRepository)(nil)

func (r *PgxPayrollRepository) SavePayrollInTx(ctx context.Context, tx pgx.Tx, record domain.PayrollRecord) error {
	settled := record.DebtsSettled
	if settled == nil {
		settled = []string{}
	}
	m := models.PayrollRecord{
		PayrollID:        record.PayrollID,
		DriverID:         record.DriverID,
		AdminID:          record.AdminID,
		GrossSalary:      record.GrossSalary,
		DebtDeduction:    record.DebtDeduction,
		NetSalary:        record.NetSalary,
		PreviousDebt:     record.PreviousDebt,
		RemainingDebt:    record.RemainingDebt,
		PaymentReference: record.PaymentReference,
		DebtsSettled:     settled,
		Status:           string(record.Status),
		ProcessedAt:      record.ProcessedAt,
	}
	query := `
		INSERT INTO payrolls (payroll_id, driver_id, admin_id, gross_salary, debt_deduction, net_salary,
			previous_debt, remaining_debt, payment_reference, debts_settled, status, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := tx.Exec(ctx, query,
		m.PayrollID, m.DriverID, m.AdminID, m.GrossSalary, m.DebtDeduction, m.NetSalary,
		m.PreviousDebt, m.RemainingDebt, m.PaymentReference, m.DebtsSettled, m.Status, m.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payroll %s already exists", apperrors.ErrDuplicate, m.PayrollID)
		}
		return fmt.Errorf("failed to save payroll %s: %w", m.PayrollID, err)
	}
	return nil
}

// ListPayrollsByDriver returns the driver's payroll runs, newest first.
func (r *PgxPayrollRepository) ListPayrollsByDriver(ctx context.Context, driverID string) ([]domain.PayrollRecord, error) {
	query := `
		SELECT payroll_id, driver_id, admin_id, gross_salary, debt_deduction, net_salary,
			previous_debt, remaining_debt, payment_reference, debts_settled, status, processed_at
		FROM payrolls
		WHERE driver_id = $1
		ORDER BY processed_at DESC;
	`
	rows, err := r.db.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payrolls for driver %s: %w", driverID, err)
	}
	defer rows.Close()

	records := []domain.PayrollRecord{}
	for rows.Next() {
		var m models.PayrollRecord
		err := rows.Scan(
			&m.PayrollID,
			&m.DriverID,
			&m.AdminID,
			&m.GrossSalary,
			&m.DebtDeduction,
			&m.NetSalary,
			&m.PreviousDebt,
			&m.RemainingDebt,
			&m.PaymentReference,
			&m.DebtsSettled,
			&m.Status,
			&m.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll row: %w", err)
		}
		records = append(records, domain.PayrollRecord{
			PayrollID:        m.PayrollID,
			DriverID:         m.DriverID,
			AdminID:          m.AdminID,
			GrossSalary:      m.GrossSalary,
			DebtDeduction:    m.DebtDeduction,
			NetSalary:        m.NetSalary,
			PreviousDebt:     m.PreviousDebt,
			RemainingDebt:    m.RemainingDebt,
			PaymentReference: m.PaymentReference,
			DebtsSettled:     m.DebtsSettled,
			Status:           domain.PayrollStatus(m.Status),
			ProcessedAt:      m.ProcessedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payroll rows: %w", err)
	}
	return records, nil
}
