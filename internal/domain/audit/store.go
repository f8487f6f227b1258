package audit

import (
	"context"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Reader provides operator queries over audit logs.
// Writes happen through session.RecordStore so they share the decision's unit of work.
type Reader interface {
	// ListAuditLogs returns the organization's entries newest first
	// (CreatedAt DESC, ID DESC), skipping offset and returning at most limit.
	ListAuditLogs(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]Log, error)
}
