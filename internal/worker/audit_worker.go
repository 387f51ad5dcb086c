package worker

import (
	"context"

	"github.com/spec-kit/repair-shop-service/internal/service"
)

// StartAuditWorker registers audit handlers and starts webhook delivery,
// which stops when ctx is cancelled.
func StartAuditWorker(ctx context.Context, auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
	go auditService.DeliverWebhooks(ctx)
}
