package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"complaintdesk/internal/models"
)

type ComplaintRepo struct{ DB *gorm.DB }

func NewComplaintRepo(db *gorm.DB) *ComplaintRepo { return &ComplaintRepo{DB: db} }

func (r *ComplaintRepo) Create(ctx context.Context, c *models.Complaint) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *ComplaintRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var c models.Complaint
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByUser returns one page of the user's complaints, optionally filtered
// by status, newest first, plus the unpaginated total.
func (r *ComplaintRepo) ListByUser(ctx context.Context, userID uuid.UUID, status string, offset, limit int) ([]models.Complaint, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Complaint{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Complaint
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ComplaintRepo) ListAll(ctx context.Context, status string, offset, limit int) ([]models.Complaint, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Complaint{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Complaint
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ComplaintRepo) CountByStatus(ctx context.Context, userID uuid.UUID, status string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&n).Error
	return n, err
}

func (r *ComplaintRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *ComplaintRepo) AddFeedback(ctx context.Context, f *models.Feedback) error {
	return r.DB.WithContext(ctx).Create(f).Error
}

func (r *ComplaintRepo) ListFeedback(ctx context.Context, complaintID uuid.UUID) ([]models.Feedback, error) {
	var out []models.Feedback
	err := r.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
