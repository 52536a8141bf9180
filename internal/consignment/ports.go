package consignment

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=consignment

import (
	"context"

	"github.com/consigna/consigna/internal/catalog"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
)

// Catalog looks up products; prices are read at the moment they are needed.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (catalog.Product, error)
}

// StoreDirectory resolves store settings.
type StoreDirectory interface {
	StoreConfig(ctx context.Context, storeID int64) (stores.Config, error)
}

// Scorer folds lifecycle outcomes into supplier reliability. It runs inside the lifecycle
// transaction so an outcome is scored exactly when it commits.
type Scorer interface {
	OnCompleted(ctx context.Context, supplierID, storeID int64, c reliability.Completion) (reliability.SupplierStats, error)
	OnSupplierCancelled(ctx context.Context, supplierID, storeID int64) (reliability.SupplierStats, error)
}

// AuditPort receives one entry per lifecycle operation.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog)
}

// Notifier hands lifecycle events to the delivery channel.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error
}
