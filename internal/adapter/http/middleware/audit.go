package middleware

import (
	"net/http"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful writes.
// Actions are looked up by route pattern.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath())
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

// CtxResourceID lets a handler name the entity it created or changed.
const CtxResourceID = "audit_resource_id"

func mapPathToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/wallet/buy":
		return domain.AuditActionPurchase, "transaction"
	case "/api/v1/wallet/sell":
		return domain.AuditActionSale, "transaction"
	case "/api/v1/wallet/swap":
		return domain.AuditActionSwap, "transaction"
	case "/api/v1/wallet/balance":
		return domain.AuditActionSetBalance, "wallet"
	}
	return "", ""
}
