package ports

import "github.com/adedayo14/shopifycart-sub000/internal/domain"

// EntitlementPublisher broadcasts entitlement changes to in-process
// subscribers. Publishing is best-effort and must never block.
type EntitlementPublisher interface {
	Publish(event *domain.EntitlementEvent)
}
