package repository

import (
	"go-stock-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadRepository interface {
	Create(upload *model.UploadedFile) error
	FindByID(id uuid.UUID) (*model.UploadedFile, error)
	FindRecent(ownerID uuid.UUID, limit int) ([]model.UploadedFile, error)
	FindPending() ([]model.UploadedFile, error)
	Update(upload *model.UploadedFile) error

	// MarkProcessing claims a pending batch with a conditional update.
	// Returns false when the batch was no longer pending, so exactly one
	// caller wins a concurrent claim.
	MarkProcessing(id uuid.UUID) (bool, error)
}

type uploadRepo struct {
	db *gorm.DB
}

func NewUploadRepo(db *gorm.DB) UploadRepository {
	return &uploadRepo{db}
}

func (r *uploadRepo) Create(upload *model.UploadedFile) error {
	return r.db.Create(upload).Error
}

func (r *uploadRepo) FindByID(id uuid.UUID) (*model.UploadedFile, error) {
	var upload model.UploadedFile
	err := r.db.First(&upload, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *uploadRepo) FindRecent(ownerID uuid.UUID, limit int) ([]model.UploadedFile, error) {
	var uploads []model.UploadedFile
	err := r.db.
		Where("user_id = ?", ownerID).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&uploads).Error
	return uploads, err
}

func (r *uploadRepo) FindPending() ([]model.UploadedFile, error) {
	var uploads []model.UploadedFile
	err := r.db.
		Where("status = ?", model.StatusPending).
		Order("uploaded_at ASC").
		Find(&uploads).Error
	return uploads, err
}

func (r *uploadRepo) Update(upload *model.UploadedFile) error {
	return r.db.Save(upload).Error
}

func (r *uploadRepo) MarkProcessing(id uuid.UUID) (bool, error) {
	res := r.db.Model(&model.UploadedFile{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("status", model.StatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
