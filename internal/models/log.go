package models

import "time"

// AuditLog records authenticated API calls. Path and action are stored
// AES-encrypted only.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    *uint     `gorm:"index"`
	PathEnc   string    `gorm:"size:1024"`
	Method    string    `gorm:"size:16"`
	ActionEnc string    `gorm:"size:4096"`
	Status    int
	IP        string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index"`
}

// Backup is an encrypted snapshot of one user's ledger written to disk.
type Backup struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	FileName  string `gorm:"size:255;not null"`
	FilePath  string `gorm:"size:1024;not null"`
	Size      int64
	CreatedAt time.Time
}
