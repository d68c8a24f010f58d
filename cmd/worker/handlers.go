package main

import (
	"github.com/hibiken/asynq"

	inventoryJob "library-lending/internal/domains/inventory/job"
	lendingJob "library-lending/internal/domains/lending/job"
	"library-lending/internal/shared"
	"library-lending/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	reconcile     *lendingJob.ReconcileHandler
	overdueSweep  *lendingJob.OverdueSweepHandler
	stockSnapshot *inventoryJob.StockSnapshotHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	lending := c.Config.Lending

	return &HandlerRegistry{
		reconcile:    lendingJob.NewReconcileHandler(c.LoanRepo, c.InventoryService),
		overdueSweep: lendingJob.NewOverdueSweepHandler(c.LendingService, lending.DailyFine, nil),
		stockSnapshot: inventoryJob.NewStockSnapshotHandler(
			c.InventoryRepo,
			c.CatalogRepo,
			c.Cache,
			lending.StockSnapshotTTL,
			nil,
		),
	}
}

func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Lending
	mux.HandleFunc(shared.TypeReconcileReservation, h.reconcile.ProcessTask)
	mux.HandleFunc(shared.TypeOverdueSweep, h.overdueSweep.ProcessTask)

	// Inventory
	mux.HandleFunc(shared.TypeSyncStockSnapshot, h.stockSnapshot.ProcessTask)
}
