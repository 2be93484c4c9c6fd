package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"complaintdesk/internal/models"
)

// OtpRepo keeps at most one active code per email.
type OtpRepo struct{ DB *gorm.DB }

func NewOtpRepo(db *gorm.DB) *OtpRepo { return &OtpRepo{DB: db} }

// Replace deletes any existing row for the email and inserts the new one in
// a single transaction, so two active codes for one address can never
// coexist.
func (r *OtpRepo) Replace(ctx context.Context, email, codeHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(&models.Otp{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Otp{Email: email, CodeHash: codeHash}).Error
	})
}

func (r *OtpRepo) GetByEmail(ctx context.Context, email string) (*models.Otp, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var otp models.Otp
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&otp).Error; err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *OtpRepo) Delete(ctx context.Context, otp *models.Otp) error {
	return r.DB.WithContext(ctx).Where("id = ?", otp.ID).Delete(&models.Otp{}).Error
}
