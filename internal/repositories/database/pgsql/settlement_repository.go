package pgsql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxSettlementRepository struct {
	db *pgxpool.Pool
}

func newPgxSettlementRepository(db *pgxpool.Pool) portsrepo.SettlementRepositoryFacade {
	return &PgxSettlementRepository{db: db}
}

var _ portsrepo.SettlementRepositoryFacade = (*PgxSettlementRepository)(nil)

func toModelSettlement(s domain.SettlementRecord) (models.SettlementRecord, error) {
	cash, err := marshalJSONB(s.CashDetails, "[]")
	if err != nil {
		return models.SettlementRecord{}, err
	}
	returns, err := marshalJSONB(s.ReturnDetails, "[]")
	if err != nil {
		return models.SettlementRecord{}, err
	}
	ids := s.DeliveryIDs
	if ids == nil {
		ids = []string{}
	}
	return models.SettlementRecord{
		SettlementID:      s.SettlementID,
		DriverID:          s.DriverID,
		AdminID:           s.AdminID,
		AmountCollected:   s.AmountCollected,
		ActualAmount:      s.ActualAmount,
		Difference:        s.Difference,
		DebtGenerated:     s.DebtGenerated,
		Overpayment:       s.Overpayment,
		PreviousDebt:      s.PreviousDebt,
		NewDebtBalance:    s.NewDebtBalance,
		DeliveriesSettled: s.DeliveriesSettled,
		PackagesSettled:   s.PackagesSettled,
		ReturnsProcessed:  s.ReturnsProcessed,
		DeliveryIDs:       ids,
		CashDetails:       cash,
		ReturnDetails:     returns,
		Notes:             s.Notes,
		SettledAt:         s.SettledAt,
	}, nil
}

func toDomainSettlement(m models.SettlementRecord) (domain.SettlementRecord, error) {
	cash := []domain.CashItem{}
	if err := unmarshalJSONB(m.CashDetails, &cash); err != nil {
		return domain.SettlementRecord{}, err
	}
	returns := []domain.ReturnItem{}
	if err := unmarshalJSONB(m.ReturnDetails, &returns); err != nil {
		return domain.SettlementRecord{}, err
	}
	return domain.SettlementRecord{
		SettlementID:      m.SettlementID,
		DriverID:          m.DriverID,
		AdminID:           m.AdminID,
		AmountCollected:   m.AmountCollected,
		ActualAmount:      m.ActualAmount,
		Difference:        m.Difference,
		DebtGenerated:     m.DebtGenerated,
		Overpayment:       m.Overpayment,
		PreviousDebt:      m.PreviousDebt,
		NewDebtBalance:    m.NewDebtBalance,
		DeliveriesSettled: m.DeliveriesSettled,
		PackagesSettled:   m.PackagesSettled,
		ReturnsProcessed:  m.ReturnsProcessed,
		DeliveryIDs:       m.DeliveryIDs,
		CashDetails:       cash,
		ReturnDetails:     returns,
		Notes:             m.Notes,
		SettledAt:         m.SettledAt,
		DriverName:        m.DriverName.String,
		AdminName:         m.AdminName.String,
	}, nil
}

func (r *PgxSettlementRepository) SaveSettlementInTx(ctx context.Context, tx pgx.Tx, record domain.SettlementRecord) error {
	m, err := toModelSettlement(record)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO settlements (settlement_id, driver_id, admin_id, amount_collected, actual_amount, difference,
			debt_generated, overpayment, previous_debt, new_debt_balance, deliveries_settled, packages_settled,
			returns_processed, delivery_ids, cash_details, return_details, notes, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err = tx.Exec(ctx, query,
		m.SettlementID, m.DriverID, m.AdminID, m.AmountCollected, m.ActualAmount, m.Difference,
		m.DebtGenerated, m.Overpayment, m.PreviousDebt, m.NewDebtBalance, m.DeliveriesSettled, m.PackagesSettled,
		m.ReturnsProcessed, m.DeliveryIDs, m.CashDetails, m.ReturnDetails, m.Notes, m.SettledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: settlement %s already exists", apperrors.ErrDuplicate, m.SettlementID)
		}
		return fmt.Errorf("failed to save settlement %s: %w", m.SettlementID, err)
	}
	return nil
}

// ListSettlements returns settlements matching the filter, newest first, with
// driver and admin names joined in.
func (r *PgxSettlementRepository) ListSettlements(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, error) {
	conds := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.DriverID != nil {
		conds = append(conds, "s.driver_id = "+arg(*filter.DriverID))
	}
	if filter.Range.From != nil {
		conds = append(conds, "s.settled_at >= "+arg(*filter.Range.From))
	}
	if filter.Range.To != nil {
		conds = append(conds, "s.settled_at <= "+arg(*filter.Range.To))
	}

	query := `
		SELECT s.settlement_id, s.driver_id, s.admin_id, s.amount_collected, s.actual_amount, s.difference,
			s.debt_generated, s.overpayment, s.previous_debt, s.new_debt_balance, s.deliveries_settled,
			s.packages_settled, s.returns_processed, s.delivery_ids, s.cash_details, s.return_details,
			s.notes, s.settled_at, d.name, a.name
		FROM settlements s
		LEFT JOIN users d ON d.user_id = s.driver_id
		LEFT JOIN users a ON a.user_id = s.admin_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY s.settled_at DESC;
	`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	records := []domain.SettlementRecord{}
	for rows.Next() {
		var m models.SettlementRecord
		err := rows.Scan(
			&m.SettlementID,
			&m.DriverID,
			&m.AdminID,
			&m.AmountCollected,
			&m.ActualAmount,
			&m.Difference,
			&m.DebtGenerated,
			&m.Overpayment,
			&m.PreviousDebt,
			&m.NewDebtBalance,
			&m.DeliveriesSettled,
			&m.PackagesSettled,
			&m.ReturnsProcessed,
			&m.DeliveryIDs,
			&m.CashDetails,
			&m.ReturnDetails,
			&m.Notes,
			&m.SettledAt,
			&m.DriverName,
			&m.AdminName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement row: %w", err)
		}
		rec, err := toDomainSettlement(m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settlement rows: %w", err)
	}
	return records, nil
}
