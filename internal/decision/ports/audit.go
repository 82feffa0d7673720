package ports

import (
	"context"

	"trustline/pkg/platform/audit"
)

// AuditPort emits compliance events. Defined here so the decision package
// does not depend on a concrete publisher.
type AuditPort interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}
