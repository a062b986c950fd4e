package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMeta carries request metadata attached to audit rows.
type AuditMeta struct {
	ActorID   string
	IP        string
	UserAgent string
}

// recordAudit writes an audit row; failures are logged and never block the operation.
func recordAudit(ctx context.Context, w auditLogWriter, logger *zap.Logger, meta AuditMeta, action, resource, resourceID string, oldValues, newValues interface{}) {
	if w == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		OldValues: marshalAudit(oldValues),
		NewValues: marshalAudit(newValues),
	}
	if meta.ActorID != "" {
		actor := meta.ActorID
		entry.UserID = &actor
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if err := w.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
