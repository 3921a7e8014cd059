package adapters

import (
	"context"

	"hatchseed/internal/ledger"
	"hatchseed/internal/slots/ports"
	id "hatchseed/pkg/domain"
)

// LedgerAdapter implements ports.TransactionLedger with the in-process
// ledger service. When ctx carries a SQL transaction the ledger row joins it.
type LedgerAdapter struct {
	ledger *ledger.Service
}

func NewLedgerAdapter(l *ledger.Service) ports.TransactionLedger {
	return &LedgerAdapter{ledger: l}
}

func (a *LedgerAdapter) RecordSale(ctx context.Context, sale ports.Sale) (id.TransactionID, error) {
	txn, err := a.ledger.RecordSale(ctx, ledger.Sale{
		SetID:      sale.SetID,
		RecordName: sale.RecordName,
		OwnerID:    sale.OwnerID,
		ReviewerID: sale.ReviewerID,
		Slots:      sale.Slots,
	})
	if err != nil {
		return id.TransactionID{}, err
	}
	return txn.ID, nil
}

func (a *LedgerAdapter) VoidSale(ctx context.Context, txnID id.TransactionID) error {
	return a.ledger.VoidSale(ctx, txnID)
}
