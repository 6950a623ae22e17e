// Package backup writes AES-encrypted snapshots of a user's ledger to disk
// and restores them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jezerjjv/saving-back/internal/apperr"
	"github.com/Jezerjjv/saving-back/internal/ledger"
	"github.com/Jezerjjv/saving-back/internal/models"
	"github.com/Jezerjjv/saving-back/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	store      *ledger.Store
	encryptKey string
	dir        string
}

func NewService(store *ledger.Store, encryptKey, dir string) *Service {
	return &Service{store: store, encryptKey: encryptKey, dir: dir}
}

// Create snapshots the user's ledger into backup-<uid>-<uuid>.bin and
// records it.
func (s *Service) Create(ctx context.Context, userID uint) (*models.Backup, error) {
	snap, err := s.Take(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	enc, err := util.EncryptAES(s.encryptKey, raw)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	fileName := fmt.Sprintf("backup-%d-%s.bin", userID, uuid.NewString())
	filePath := filepath.Join(s.dir, fileName)
	if err := os.WriteFile(filePath, enc, 0o600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	b := models.Backup{
		UserID:   userID,
		FileName: fileName,
		FilePath: filePath,
		Size:     int64(len(enc)),
	}
	if err := s.store.DB().WithContext(ctx).Create(&b).Error; err != nil {
		_ = os.Remove(filePath)
		return nil, apperr.Infra("save backup record", err)
	}
	return &b, nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Backup, error) {
	list := []models.Backup{}
	if err := s.store.DB().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, apperr.Infra("list backups", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*models.Backup, error) {
	var b models.Backup
	err := s.store.DB().WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("backup %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Infra("load backup", err)
	}
	return &b, nil
}

// Delete removes the file first, then the record.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(b.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup file: %w", err)
	}
	if err := s.store.DB().WithContext(ctx).Delete(b).Error; err != nil {
		return apperr.Infra("delete backup record", err)
	}
	return nil
}

// Open decrypts and decodes a stored backup.
func (s *Service) Open(ctx context.Context, userID, id uint) (*Snapshot, error) {
	b, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	enc, err := os.ReadFile(b.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	raw, err := util.DecryptAES(s.encryptKey, enc)
	if err != nil {
		return nil, apperr.Invalid("backup", "cannot be decrypted")
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, apperr.Invalid("backup", "is not a ledger snapshot")
	}
	return &snap, nil
}

// RestoreFile restores the user's ledger from a stored backup.
func (s *Service) RestoreFile(ctx context.Context, userID, id uint) (*RestoreStats, error) {
	snap, err := s.Open(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.Restore(ctx, userID, snap)
}
