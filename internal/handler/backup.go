package handler

import (
	"fmt"

	"github.com/Jezerjjv/saving-back/internal/backup"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/gin-gonic/gin"
)

// BackupHandler serves encrypted ledger snapshots.
type BackupHandler struct {
	Service *backup.Service
	Timeout Timeout
}

func NewBackupHandler(svc *backup.Service, timeout Timeout) *BackupHandler {
	return &BackupHandler{Service: svc, Timeout: timeout}
}

func backupView(b *models.Backup) gin.H {
	return gin.H{
		"id":         b.ID,
		"file_name":  b.FileName,
		"size":       b.Size,
		"created_at": b.CreatedAt,
	}
}

func (h *BackupHandler) CreateBackup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	b, err := h.Service.Create(ctx, user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Created(c, util.Response{"backup": backupView(b)})
}

func (h *BackupHandler) ListBackups(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Service.List(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	items := make([]gin.H, 0, len(list))
	for i := range list {
		items = append(items, backupView(&list[i]))
	}
	util.Success(c, util.Response{"items": items})
}

func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.Service.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", b.FileName))
	c.File(b.FilePath)
}

func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// RestoreBackup replaces the user's whole ledger with the backup contents.
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := h.Timeout.ctx(c)
	defer cancel()
	stats, err := h.Service.RestoreFile(ctx, user.ID, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	util.Success(c, util.Response{"message": "restored", "restored": stats})
}
