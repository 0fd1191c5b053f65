package model

import (
	"time"

	"github.com/google/uuid"
)

type FileKind string

const (
	FileKindStock FileKind = "stock"
	FileKindSales FileKind = "sales"
)

type ImportMode string

const (
	// ModeMerge upserts row by row: additive quantity, overwrite metadata.
	ModeMerge ImportMode = "merge"
	// ModeReplaceAll swaps the owner's whole stock table for the source snapshot.
	ModeReplaceAll ImportMode = "replace_all"
	// ModeReplaceWindow re-syncs a trailing window of sales history.
	ModeReplaceWindow ImportMode = "replace_window"
)

type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	StatusFailed     BatchStatus = "failed"
)

// UploadedFile tracks one unit of bulk ingestion work through its lifecycle:
// pending -> processing -> completed | failed. Terminal batches are never
// reprocessed in place; a retry is a new record pointing at the same source.
type UploadedFile struct {
	BaseModel
	UserID           uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id" validate:"uuid_required"`
	User             *User       `gorm:"foreignKey:UserID" json:"user,omitempty" validate:"-"`
	FileName         string      `gorm:"type:varchar(255);not null" json:"file_name" validate:"required"`
	FilePath         string      `gorm:"type:varchar(512);not null" json:"-"`
	Kind             FileKind    `gorm:"type:varchar(20);not null" json:"kind" validate:"required,oneof=stock sales"`
	Mode             ImportMode  `gorm:"type:varchar(20);not null;default:'merge'" json:"mode" validate:"required,oneof=merge replace_all replace_window"`
	SyncWindow       int64       `gorm:"default:0" json:"sync_window_seconds"` // seconds; 0 means server default
	Status           BatchStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RecordsProcessed int         `gorm:"default:0" json:"records_processed"`
	ErrorMessage     *string     `gorm:"type:text" json:"error_message,omitempty"`
	UploadedAt       time.Time   `gorm:"not null" json:"uploaded_at"`
}

func (UploadedFile) TableName() string {
	return "uploaded_files"
}

// IsTerminal reports whether the batch reached a final state.
func (u *UploadedFile) IsTerminal() bool {
	return u.Status == StatusCompleted || u.Status == StatusFailed
}

// Window converts the stored sync window to a duration.
func (u *UploadedFile) Window() time.Duration {
	return time.Duration(u.SyncWindow) * time.Second
}
