package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// AuditLogger appends account actions to the audit_log table. Best effort:
// a failed insert is logged, never surfaced to the caller.
type AuditLogger struct {
	DB     *pgxpool.Pool
	Logger *logrus.Logger
}

func NewAuditLogger(db *pgxpool.Pool, logger *logrus.Logger) *AuditLogger {
	return &AuditLogger{DB: db, Logger: logger}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// Record writes one audit row. userID 0 means "no authenticated user"
// (e.g. a failed login) and is stored as NULL.
func (a *AuditLogger) Record(c *gin.Context, userID int64, username, action string, metadata map[string]any) {
	if a == nil || a.DB == nil {
		return
	}
	md, _ := json.Marshal(metadata)

	var uid any
	if userID != 0 {
		uid = userID
	}

	_, err := a.DB.Exec(c.Request.Context(), `
		INSERT INTO audit_log (user_id, username, action, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uid, username, action, clientIP(c), c.GetHeader("User-Agent"), md)
	if err != nil && a.Logger != nil {
		a.Logger.WithError(err).WithFields(logrus.Fields{"action": action, "username": username}).Warn("audit insert failed")
	}
}
