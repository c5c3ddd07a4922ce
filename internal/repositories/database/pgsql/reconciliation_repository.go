package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reconciliationColumns = `request_id, delivery_man_id, declared_amount, actual_amount, difference,
	cash_items, return_items, notes, status, requested_at, approved_by, approved_at, settlement_id`

type PgxReconciliationRepository struct {
	db *pgxpool.Pool
}

func newPgxReconciliationRepository(db *pgxpool.Pool) portsrepo.ReconciliationRepositoryFacade {
	return &PgxReconciliationRepository{db: db}
}

var _ portsrepo.ReconciliationRepositoryFacade = (*PgxReconciliationRepository)(nil)

func toModelReconciliation(d domain.ReconciliationRequest) (models.ReconciliationRequest, error) {
	cash, err := marshalJSONB(d.CashItems, "[]")
	if err != nil {
		return models.ReconciliationRequest{}, err
	}
	returns, err := marshalJSONB(d.ReturnItems, "[]")
	if err != nil {
		return models.ReconciliationRequest{}, err
	}
	return models.ReconciliationRequest{
		RequestID:      d.RequestID,
		DeliveryManID:  d.DeliveryManID,
		DeclaredAmount: d.DeclaredAmount,
		ActualAmount:   d.ActualAmount,
		Difference:     d.Difference,
		CashItems:      cash,
		ReturnItems:    returns,
		Notes:          d.Notes,
		Status:         string(d.Status),
		RequestedAt:    d.RequestedAt,
		ApprovedBy:     toNullString(d.ApprovedBy),
		ApprovedAt:     toNullTime(d.ApprovedAt),
		SettlementID:   toNullString(d.SettlementID),
	}, nil
}

func scanReconciliation(row pgx.Row) (domain.ReconciliationRequest, error) {
	var m models.ReconciliationRequest
	err := row.Scan(
		&m.RequestID,
		&m.DeliveryManID,
		&m.DeclaredAmount,
		&m.ActualAmount,
		&m.Difference,
		&m.CashItems,
		&m.ReturnItems,
		&m.Notes,
		&m.Status,
		&m.RequestedAt,
		&m.ApprovedBy,
		&m.ApprovedAt,
		&m.SettlementID,
	)
	if err != nil {
		return domain.ReconciliationRequest{}, err
	}
	req := domain.ReconciliationRequest{
		RequestID:      m.RequestID,
		DeliveryManID:  m.DeliveryManID,
		DeclaredAmount: m.DeclaredAmount,
		ActualAmount:   m.ActualAmount,
		Difference:     m.Difference,
		CashItems:      []domain.CashItem{},
		ReturnItems:    []domain.ReturnItem{},
		Notes:          m.Notes,
		Status:         domain.ReconciliationStatus(m.Status),
		RequestedAt:    m.RequestedAt,
		ApprovedBy:     fromNullString(m.ApprovedBy),
		ApprovedAt:     fromNullTime(m.ApprovedAt),
		SettlementID:   fromNullString(m.SettlementID),
	}
	if err := unmarshalJSONB(m.CashItems, &req.CashItems); err != nil {
		return domain.ReconciliationRequest{}, err
	}
	if err := unmarshalJSONB(m.ReturnItems, &req.ReturnItems); err != nil {
		return domain.ReconciliationRequest{}, err
	}
	return req, nil
}

func (r *PgxReconciliationRepository) SaveRequest(ctx context.Context, request domain.ReconciliationRequest) error {
	m, err := toModelReconciliation(request)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reconciliation_requests (` + reconciliationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err = r.db.Exec(ctx, query,
		m.RequestID, m.DeliveryManID, m.DeclaredAmount, m.ActualAmount, m.Difference,
		m.CashItems, m.ReturnItems, m.Notes, m.Status, m.RequestedAt, m.ApprovedBy, m.ApprovedAt, m.SettlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation request %s: %w", m.RequestID, err)
	}
	return nil
}

// FindPendingRequestByCourier returns the courier's most recent pending request.
func (r *PgxReconciliationRepository) FindPendingRequestByCourier(ctx context.Context, courierID string) (*domain.ReconciliationRequest, error) {
	query := `
		SELECT ` + reconciliationColumns + `
		FROM reconciliation_requests
		WHERE delivery_man_id = $1 AND status = 'pending'
		ORDER BY requested_at DESC
		LIMIT 1;
	`
	req, err := scanReconciliation(r.db.QueryRow(ctx, query, courierID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pending request for courier %s: %w", courierID, err)
	}
	return &req, nil
}

func (r *PgxReconciliationRepository) ListPendingRequests(ctx context.Context) ([]domain.ReconciliationRequest, error) {
	query := `
		SELECT ` + reconciliationColumns + `
		FROM reconciliation_requests
		WHERE status = 'pending'
		ORDER BY requested_at DESC;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reconciliation requests: %w", err)
	}
	defer rows.Close()

	requests := []domain.ReconciliationRequest{}
	for rows.Next() {
		req, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reconciliation request rows: %w", err)
	}
	return requests, nil
}

// ApprovePendingRequestsInTx closes every pending request of the courier
// against the settlement.
func (r *PgxReconciliationRepository) ApprovePendingRequestsInTx(ctx context.Context, tx pgx.Tx, courierID, adminID, settlementID string, now time.Time) (int64, error) {
	query := `
		UPDATE reconciliation_requests
		SET status = 'approved', approved_by = $2, approved_at = $3, settlement_id = $4
		WHERE delivery_man_id = $1 AND status = 'pending';
	`
	cmdTag, err := tx.Exec(ctx, query, courierID, adminID, now, settlementID)
	if err != nil {
		return 0, fmt.Errorf("failed to approve reconciliation requests for courier %s: %w", courierID, err)
	}
	return cmdTag.RowsAffected(), nil
}
