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
	"github.com/SscSPs/geexpress_backend/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	deliveryColumns = `delivery_id, delivery_type, client_name, client_phone, client_address, notes,
	packages, issues, delivery_man_id, delivery_man_name, total_amount, status, settlement_status,
	settled_at, settled_by, receipt_url, receipt_public_id, assigned_at, accepted_at, started_at,
	completed_at, transferred_at, failed_at, cancelled_at,
	created_at, created_by, last_updated_at, last_updated_by`

	defaultDeliveryPageSize = 20
	maxDeliveryPageSize     = 100
)

type PgxDeliveryRepository struct {
	BaseRepository
}

// newPgxDeliveryRepository creates a new repository for deliveries and their packages.
func newPgxDeliveryRepository(pool *pgxpool.Pool) portsrepo.DeliveryRepositoryFacade {
	return &PgxDeliveryRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxDeliveryRepository implements portsrepo.DeliveryRepositoryFacade
var _ portsrepo.DeliveryRepositoryFacade = (*PgxDeliveryRepository)(nil)

func toModelDelivery(d domain.Delivery) (models.Delivery, error) {
	packages, err := marshalJSONB(d.Packages, "[]")
	if err != nil {
		return models.Delivery{}, err
	}
	issues, err := marshalJSONB(d.Issues, "[]")
	if err != nil {
		return models.Delivery{}, err
	}
	return models.Delivery{
		DeliveryID:       d.DeliveryID,
		DeliveryType:     string(d.DeliveryType),
		ClientName:       d.ClientInfo.Name,
		ClientPhone:      d.ClientInfo.Phone,
		ClientAddress:    d.ClientInfo.Address,
		Notes:            d.Notes,
		Packages:         packages,
		Issues:           issues,
		DeliveryManID:    toNullString(d.DeliveryManID),
		DeliveryManName:  toNullString(d.DeliveryManName),
		TotalAmount:      d.TotalAmount,
		Status:           string(d.Status),
		SettlementStatus: string(d.SettlementStatus),
		SettledAt:        toNullTime(d.SettledAt),
		SettledBy:        toNullString(d.SettledBy),
		ReceiptURL:       toNullString(d.ReceiptURL),
		ReceiptPublicID:  toNullString(d.ReceiptPublicID),
		AssignedAt:       toNullTime(d.AssignedAt),
		AcceptedAt:       toNullTime(d.AcceptedAt),
		StartedAt:        toNullTime(d.StartedAt),
		CompletedAt:      toNullTime(d.CompletedAt),
		TransferredAt:    toNullTime(d.TransferredAt),
		FailedAt:         toNullTime(d.FailedAt),
		CancelledAt:      toNullTime(d.CancelledAt),
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			CreatedBy:     d.CreatedBy,
			LastUpdatedAt: d.LastUpdatedAt,
			LastUpdatedBy: d.LastUpdatedBy,
		},
	}, nil
}

func toDomainDelivery(m models.Delivery) (domain.Delivery, error) {
	packages := []domain.Package{}
	if err := unmarshalJSONB(m.Packages, &packages); err != nil {
		return domain.Delivery{}, err
	}
	issues := []domain.Issue{}
	if err := unmarshalJSONB(m.Issues, &issues); err != nil {
		return domain.Delivery{}, err
	}
	return domain.Delivery{
		DeliveryID:   m.DeliveryID,
		DeliveryType: domain.DeliveryType(m.DeliveryType),
		ClientInfo: domain.ClientInfo{
			Name:    m.ClientName,
			Phone:   m.ClientPhone,
			Address: m.ClientAddress,
		},
		Notes:            m.Notes,
		Packages:         packages,
		Issues:           issues,
		DeliveryManID:    fromNullString(m.DeliveryManID),
		DeliveryManName:  fromNullString(m.DeliveryManName),
		TotalAmount:      m.TotalAmount,
		Status:           domain.DeliveryStatus(m.Status),
		SettlementStatus: domain.SettlementStatus(m.SettlementStatus),
		SettledAt:        fromNullTime(m.SettledAt),
		SettledBy:        fromNullString(m.SettledBy),
		ReceiptURL:       fromNullString(m.ReceiptURL),
		ReceiptPublicID:  fromNullString(m.ReceiptPublicID),
		AssignedAt:       fromNullTime(m.AssignedAt),
		AcceptedAt:       fromNullTime(m.AcceptedAt),
		StartedAt:        fromNullTime(m.StartedAt),
		CompletedAt:      fromNullTime(m.CompletedAt),
		TransferredAt:    fromNullTime(m.TransferredAt),
		FailedAt:         fromNullTime(m.FailedAt),
		CancelledAt:      fromNullTime(m.CancelledAt),
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}, nil
}

func scanDelivery(row pgx.Row) (domain.Delivery, error) {
	var m models.Delivery
	err := row.Scan(
		&m.DeliveryID,
		&m.DeliveryType,
		&m.ClientName,
		&m.ClientPhone,
		&m.ClientAddress,
		&m.Notes,
		&m.Packages,
		&m.Issues,
		&m.DeliveryManID,
		&m.DeliveryManName,
		&m.TotalAmount,
		&m.Status,
		&m.SettlementStatus,
		&m.SettledAt,
		&m.SettledBy,
		&m.ReceiptURL,
		&m.ReceiptPublicID,
		&m.AssignedAt,
		&m.AcceptedAt,
		&m.StartedAt,
		&m.CompletedAt,
		&m.TransferredAt,
		&m.FailedAt,
		&m.CancelledAt,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return domain.Delivery{}, err
	}
	return toDomainDelivery(m)
}

func collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	defer rows.Close()
	deliveries := []domain.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return deliveries, nil
}

func (r *PgxDeliveryRepository) findOne(ctx context.Context, q queryer, query string, arg string) (*domain.Delivery, error) {
	d, err := scanDelivery(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find delivery %s: %w", arg, err)
	}
	return &d, nil
}

// SaveDelivery inserts the delivery and claims its tracking numbers in one
// transaction. A tracking number already in use yields ErrDuplicate.
func (r *PgxDeliveryRepository) SaveDelivery(ctx context.Context, delivery domain.Delivery) error {
	m, err := toModelDelivery(delivery)
	if err != nil {
		return err
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28);
	`
	_, err = tx.Exec(ctx, query,
		m.DeliveryID, m.DeliveryType, m.ClientName, m.ClientPhone, m.ClientAddress, m.Notes,
		m.Packages, m.Issues, m.DeliveryManID, m.DeliveryManName, m.TotalAmount, m.Status, m.SettlementStatus,
		m.SettledAt, m.SettledBy, m.ReceiptURL, m.ReceiptPublicID, m.AssignedAt, m.AcceptedAt, m.StartedAt,
		m.CompletedAt, m.TransferredAt, m.FailedAt, m.CancelledAt,
		m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: delivery %s already exists", apperrors.ErrDuplicate, m.DeliveryID)
		}
		return fmt.Errorf("failed to insert delivery %s: %w", m.DeliveryID, err)
	}

	batch := &pgx.Batch{}
	trackingQuery := `INSERT INTO package_tracking (tracking_number, delivery_id, package_id) VALUES ($1, $2, $3);`
	for _, p := range delivery.Packages {
		batch.Queue(trackingQuery, p.TrackingNumber, delivery.DeliveryID, p.ID)
	}
	br := tx.SendBatch(ctx, batch)
	var batchErr error
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil && batchErr == nil {
			if isUniqueViolation(err) {
				batchErr = fmt.Errorf("%w: tracking number %s is taken", apperrors.ErrDuplicate, delivery.Packages[i].TrackingNumber)
			} else {
				batchErr = fmt.Errorf("failed to register tracking number: %w", err)
			}
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("failed to close tracking batch: %w", err)
	}
	if batchErr != nil {
		return batchErr
	}

	return r.Commit(ctx, tx)
}

func (r *PgxDeliveryRepository) FindDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return r.findOne(ctx, r.Pool, `SELECT `+deliveryColumns+` FROM deliveries WHERE delivery_id = $1;`, deliveryID)
}

// FindDeliveryByIDForUpdate locks the delivery row. Must be called within a transaction.
func (r *PgxDeliveryRepository) FindDeliveryByIDForUpdate(ctx context.Context, tx pgx.Tx, deliveryID string) (*domain.Delivery, error) {
	return r.findOne(ctx, tx, `SELECT `+deliveryColumns+` FROM deliveries WHERE delivery_id = $1 FOR UPDATE;`, deliveryID)
}

func (r *PgxDeliveryRepository) FindDeliveryByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE delivery_id = (SELECT delivery_id FROM package_tracking WHERE tracking_number = $1);
	`
	return r.findOne(ctx, r.Pool, query, trackingNumber)
}

// ListDeliveries retrieves a page of deliveries, newest first, using token-based pagination.
func (r *PgxDeliveryRepository) ListDeliveries(ctx context.Context, filter domain.DeliveryFilter, limit int, nextToken *string) ([]domain.Delivery, *string, error) {
	if limit <= 0 {
		limit = defaultDeliveryPageSize
	}
	if limit > maxDeliveryPageSize {
		limit = maxDeliveryPageSize
	}

	conds := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != nil {
		conds = append(conds, "status = "+arg(string(*filter.Status)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if filter.DeliveryType != nil {
		conds = append(conds, "delivery_type = "+arg(string(*filter.DeliveryType)))
	}
	if filter.DeliveryManID != nil {
		conds = append(conds, "delivery_man_id = "+arg(*filter.DeliveryManID))
	}
	if filter.Unassigned {
		conds = append(conds, "delivery_man_id IS NULL")
	}
	if filter.CreatedRange.From != nil {
		conds = append(conds, "created_at >= "+arg(*filter.CreatedRange.From))
	}
	if filter.CreatedRange.To != nil {
		conds = append(conds, "created_at <= "+arg(*filter.CreatedRange.To))
	}

	if nextToken != nil && *nextToken != "" {
		lastCreatedAt, lastID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", err)
		}
		conds = append(conds, "(created_at, delivery_id) < ("+arg(lastCreatedAt)+", "+arg(lastID)+")")
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, delivery_id DESC LIMIT ` + arg(limit+1) + `;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to query deliveries", err)
	}
	deliveries, err := collectDeliveries(rows)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to read deliveries", err)
	}

	var next *string
	if len(deliveries) > limit {
		last := deliveries[limit-1]
		token := pagination.EncodeCursor(last.CreatedAt, last.DeliveryID)
		next = &token
		deliveries = deliveries[:limit]
	}
	return deliveries, next, nil
}

const updateDeliveryQuery = `
	UPDATE deliveries
	SET delivery_type = $2, client_name = $3, client_phone = $4, client_address = $5, notes = $6,
		packages = $7, issues = $8, delivery_man_id = $9, delivery_man_name = $10, total_amount = $11,
		status = $12, settlement_status = $13, settled_at = $14, settled_by = $15, receipt_url = $16,
		receipt_public_id = $17, assigned_at = $18, accepted_at = $19, started_at = $20, completed_at = $21,
		transferred_at = $22, failed_at = $23, cancelled_at = $24, last_updated_at = $25, last_updated_by = $26
	WHERE delivery_id = $1;
`

// updateDeliveryArgs lists the parameters of updateDeliveryQuery in order.
func updateDeliveryArgs(m models.Delivery) []any {
	return []any{
		m.DeliveryID, m.DeliveryType, m.ClientName, m.ClientPhone, m.ClientAddress, m.Notes,
		m.Packages, m.Issues, m.DeliveryManID, m.DeliveryManName, m.TotalAmount,
		m.Status, m.SettlementStatus, m.SettledAt, m.SettledBy, m.ReceiptURL,
		m.ReceiptPublicID, m.AssignedAt, m.AcceptedAt, m.StartedAt, m.CompletedAt,
		m.TransferredAt, m.FailedAt, m.CancelledAt, m.LastUpdatedAt, m.LastUpdatedBy,
	}
}

// groupByCourier keys deliveries by their courier. Unassigned deliveries are dropped.
func groupByCourier(deliveries []domain.Delivery) map[string][]domain.Delivery {
	grouped := map[string][]domain.Delivery{}
	for _, d := range deliveries {
		if d.DeliveryManID == nil {
			continue
		}
		grouped[*d.DeliveryManID] = append(grouped[*d.DeliveryManID], d)
	}
	return grouped
}

func (r *PgxDeliveryRepository) FindDeliveriesByCourier(ctx context.Context, courierID string) ([]domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE delivery_man_id = $1 AND status <> 'cancelled'
		ORDER BY created_at DESC, delivery_id DESC;
	`
	rows, err := r.Pool.Query(ctx, query, courierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries of courier %s: %w", courierID, err)
	}
	return collectDeliveries(rows)
}

// FindDeliveriesByCouriers loads the non-cancelled deliveries of several couriers in one query.
func (r *PgxDeliveryRepository) FindDeliveriesByCouriers(ctx context.Context, courierIDs []string) (map[string][]domain.Delivery, error) {
	if len(courierIDs) == 0 {
		return map[string][]domain.Delivery{}, nil
	}
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE delivery_man_id = ANY($1) AND status <> 'cancelled'
		ORDER BY created_at DESC, delivery_id DESC;
	`
	rows, err := r.Pool.Query(ctx, query, courierIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries of %d couriers: %w", len(courierIDs), err)
	}
	deliveries, err := collectDeliveries(rows)
	if err != nil {
		return nil, err
	}
	return groupByCourier(deliveries), nil
}

// GetDeliveryStats counts deliveries per status. Collected is the total of
// delivered and transferred deliveries.
func (r *PgxDeliveryRepository) GetDeliveryStats(ctx context.Context) (*domain.DeliveryStats, error) {
	query := `
		SELECT status, COUNT(*),
			COALESCE(SUM(total_amount) FILTER (WHERE status IN ('delivered', 'transferred')), 0)
		FROM deliveries
		GROUP BY status;
	`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.DeliveryStats{ByStatus: map[domain.DeliveryStatus]int{}, TotalCollected: decimal.Zero}
	for rows.Next() {
		var status string
		var count int
		var collected decimal.Decimal
		if err := rows.Scan(&status, &count, &collected); err != nil {
			return nil, fmt.Errorf("failed to scan delivery stats row: %w", err)
		}
		stats.ByStatus[domain.DeliveryStatus(status)] = count
		stats.Total += count
		stats.TotalCollected = stats.TotalCollected.Add(collected)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery stats rows: %w", err)
	}
	return stats, nil
}

func (r *PgxDeliveryRepository) UpdateDelivery(ctx context.Context, delivery domain.Delivery) error {
	return r.updateOne(ctx, r.Pool, delivery)
}

// FindCourierDeliveriesForUpdate locks every non-cancelled delivery of the courier.
// Rows are locked in id order. Must be called within a transaction.
func (r *PgxDeliveryRepository) FindCourierDeliveriesForUpdate(ctx context.Context, tx pgx.Tx, courierID string) ([]domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE delivery_man_id = $1 AND status <> 'cancelled'
		ORDER BY delivery_id
		FOR UPDATE;
	`
	rows, err := tx.Query(ctx, query, courierID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock deliveries of courier %s: %w", courierID, err)
	}
	return collectDeliveries(rows)
}

func (r *PgxDeliveryRepository) UpdateDeliveryInTx(ctx context.Context, tx pgx.Tx, delivery domain.Delivery) error {
	return r.updateOne(ctx, tx, delivery)
}

// UpdateDeliveriesInTx writes every delivery in one batch.
func (r *PgxDeliveryRepository) UpdateDeliveriesInTx(ctx context.Context, tx pgx.Tx, deliveries []domain.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deliveries {
		m, err := toModelDelivery(d)
		if err != nil {
			return fmt.Errorf("failed to encode delivery %s: %w", d.DeliveryID, err)
		}
		batch.Queue(updateDeliveryQuery, updateDeliveryArgs(m)...)
	}

	br := tx.SendBatch(ctx, batch)
	var batchErr error
	for i := 0; i < batch.Len(); i++ {
		ct, err := br.Exec()
		if err != nil {
			if batchErr == nil {
				batchErr = fmt.Errorf("failed to update delivery %s: %w", deliveries[i].DeliveryID, err)
			}
		} else if ct.RowsAffected() == 0 && batchErr == nil {
			batchErr = fmt.Errorf("%w: delivery %s not found during update", apperrors.ErrNotFound, deliveries[i].DeliveryID)
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("failed to close delivery update batch: %w", err)
	}
	return batchErr
}

func (r *PgxDeliveryRepository) updateOne(ctx context.Context, db execer, delivery domain.Delivery) error {
	m, err := toModelDelivery(delivery)
	if err != nil {
		return fmt.Errorf("failed to encode delivery %s: %w", delivery.DeliveryID, err)
	}
	ct, err := db.Exec(ctx, updateDeliveryQuery, updateDeliveryArgs(m)...)
	if err != nil {
		return fmt.Errorf("failed to update delivery %s: %w", m.DeliveryID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: delivery %s not found during update", apperrors.ErrNotFound, m.DeliveryID)
	}
	return nil
}
