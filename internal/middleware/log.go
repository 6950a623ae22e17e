package middleware

import (
	"bytes"
	"io"
	"log"

	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxAuditBody is the largest request body copied into an audit action.
const maxAuditBody = 2000

// AuditMiddleware records every authenticated call. Path and action (method,
// path and small bodies) are stored encrypted only.
func AuditMiddleware(db *gorm.DB, encryptKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint
		if v, ok := c.Get("currentUser"); ok {
			if user, ok := v.(*models.User); ok && user != nil {
				userID = user.ID
			}
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		if userID == 0 {
			return
		}

		path := c.Request.URL.Path
		action := c.Request.Method + " " + path
		if len(bodyBytes) > 0 && len(bodyBytes) < maxAuditBody {
			action += " " + string(bodyBytes)
		}

		encPath, err := util.EncryptField(encryptKey, path)
		if err != nil {
			log.Printf("audit: encrypt path: %v", err)
			return
		}
		encAction, err := util.EncryptField(encryptKey, action)
		if err != nil {
			log.Printf("audit: encrypt action: %v", err)
			return
		}

		entry := models.AuditLog{
			UserID:    &userID,
			PathEnc:   encPath,
			Method:    c.Request.Method,
			ActionEnc: encAction,
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: truncate(c.Request.UserAgent(), 255),
		}
		if err := db.Create(&entry).Error; err != nil {
			log.Printf("audit: save: %v", err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
