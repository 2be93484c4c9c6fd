package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"complaintdesk/internal/models"
)

// TokenRepo is the persisted ledger of every issued token and its
// revocation state.
type TokenRepo struct{ DB *gorm.DB }

func NewTokenRepo(db *gorm.DB) *TokenRepo { return &TokenRepo{DB: db} }

// CreateSessionPair inserts an access row and its refresh row atomically.
// The refresh row's access_jti must already point at the access row's jti.
func (r *TokenRepo) CreateSessionPair(ctx context.Context, access, refresh *models.Token) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(access).Error; err != nil {
			return err
		}
		return tx.Create(refresh).Error
	})
}

func (r *TokenRepo) FindByJTI(ctx context.Context, jti string) (*models.Token, error) {
	var t models.Token
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepo) revoke(db *gorm.DB, jti, reason string) error {
	now := time.Now().UTC()
	return db.Model(&models.Token{}).
		Where("jti = ?", jti).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &now,
			"reason":     reason,
		}).Error
}

// Revoke flips the row to revoked. Revoking an already-revoked row rewrites
// the timestamp and reason.
func (r *TokenRepo) Revoke(ctx context.Context, jti, reason string) error {
	return r.revoke(r.DB.WithContext(ctx), jti, reason)
}

// RevokeAllActive revokes every non-revoked token owned by userID with a
// shared timestamp and reason.
func (r *TokenRepo) RevokeAllActive(ctx context.Context, userID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	return r.DB.WithContext(ctx).Model(&models.Token{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": &now,
			"reason":     reason,
		}).Error
}

// Rotate applies the refresh exchange as one transaction: persist the new
// access row, revoke the access row the refresh row currently points at,
// and relink the refresh row to the new jti. A failure at any step leaves
// the ledger untouched.
func (r *TokenRepo) Rotate(ctx context.Context, refresh *models.Token, newAccess *models.Token, reason string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.Token
		if err := tx.Where("jti = ?", refresh.AccessJTI).First(&old).Error; err != nil {
			return fmt.Errorf("linked access token %s: %w", refresh.AccessJTI, err)
		}

		if err := tx.Create(newAccess).Error; err != nil {
			return err
		}

		if err := r.revoke(tx, old.JTI, reason); err != nil {
			return err
		}

		return tx.Model(&models.Token{}).
			Where("jti = ?", refresh.JTI).
			Update("access_jti", newAccess.JTI).Error
	})
}

// PurgeRevoked deletes every revoked row and reports how many went away.
func (r *TokenRepo) PurgeRevoked(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Where("revoked = ?", true).Delete(&models.Token{})
	return res.RowsAffected, res.Error
}
