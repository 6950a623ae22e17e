package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LogHandler serves the audit log.
type LogHandler struct {
	DB         *gorm.DB
	EncryptKey string
}

func NewLogHandler(db *gorm.DB, encryptKey string) *LogHandler {
	return &LogHandler{DB: db, EncryptKey: encryptKey}
}

type logResp struct {
	ID        uint      `json:"id"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	Status    int       `json:"status"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *LogHandler) decrypt(enc string) string {
	plain, err := util.DecryptField(h.EncryptKey, enc)
	if err != nil {
		return ""
	}
	return plain
}

// ListLogs pages through the user's audit log. start/end (YYYY-MM-DD) bound
// the time and q matches the decrypted path or action.
func (h *LogHandler) ListLogs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	p, size := page(c, 20)

	base := h.DB.WithContext(c.Request.Context()).Model(&models.AuditLog{}).Where("user_id = ?", user.ID)
	if s := c.Query("start"); s != "" {
		start, err := time.Parse("2006-01-02", s)
		if err != nil {
			badRequest(c, "invalid start date")
			return
		}
		base = base.Where("created_at >= ?", start)
	}
	if s := c.Query("end"); s != "" {
		end, err := time.Parse("2006-01-02", s)
		if err != nil {
			badRequest(c, "invalid end date")
			return
		}
		base = base.Where("created_at < ?", end.Add(24*time.Hour))
	}
	if m := strings.ToUpper(strings.TrimSpace(c.Query("method"))); m != "" {
		base = base.Where("method = ?", m)
	}
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	var logs []models.AuditLog
	if err := base.Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	// path and action are only stored encrypted, so q is matched after decryption
	items := make([]logResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		item := logResp{
			ID:        l.ID,
			Path:      h.decrypt(l.PathEnc),
			Action:    h.decrypt(l.ActionEnc),
			Method:    l.Method,
			Status:    l.Status,
			IP:        l.IP,
			UserAgent: l.UserAgent,
			CreatedAt: l.CreatedAt,
		}
		if q != "" && !strings.Contains(strings.ToLower(item.Path), q) && !strings.Contains(strings.ToLower(item.Action), q) {
			continue
		}
		items = append(items, item)
	}

	total := len(items)
	from := (p - 1) * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}

	util.Success(c, util.Response{
		"items": items[from:to],
		"total": total,
		"page":  p,
		"size":  size,
	})
}
