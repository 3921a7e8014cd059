package adapters

import (
	"context"

	"hatchseed/internal/entitlement"
	"hatchseed/internal/slots/ports"
	id "hatchseed/pkg/domain"
)

// EntitlementAdapter implements ports.Entitlements with the allocation service.
type EntitlementAdapter struct {
	entitlements *entitlement.Service
}

func NewEntitlementAdapter(e *entitlement.Service) ports.Entitlements {
	return &EntitlementAdapter{entitlements: e}
}

func (a *EntitlementAdapter) Revoke(ctx context.Context, owner id.OwnerID) (ports.Allowance, error) {
	prev, err := a.entitlements.Revoke(ctx, owner)
	if err != nil {
		return ports.Allowance{}, err
	}
	return ports.Allowance{
		Remaining: prev.Remaining,
		RevokedAt: prev.RevokedAt,
		UpdatedAt: prev.UpdatedAt,
	}, nil
}

func (a *EntitlementAdapter) Restore(ctx context.Context, owner id.OwnerID, prev ports.Allowance) error {
	return a.entitlements.Restore(ctx, &entitlement.Allocation{
		OwnerID:   owner,
		Remaining: prev.Remaining,
		RevokedAt: prev.RevokedAt,
		UpdatedAt: prev.UpdatedAt,
	})
}
