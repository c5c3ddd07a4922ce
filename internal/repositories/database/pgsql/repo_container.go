package pgsql

import (
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:          &BaseRepository{Pool: dbPool},
		UserRepo:           newPgxUserRepository(dbPool),
		DeliveryRepo:       newPgxDeliveryRepository(dbPool),
		DebtRepo:           newPgxDebtRepository(dbPool),
		SettlementRepo:     newPgxSettlementRepository(dbPool),
		ReconciliationRepo: newPgxReconciliationRepository(dbPool),
		PayrollRepo:        newPgxPayrollRepository(dbPool),
		NotificationRepo:   newPgxNotificationRepository(dbPool),
	}
}
