package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ottsonly-backend/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = models.NewID()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrUserNotFound)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, notFound(err, models.ErrUserNotFound)
	}
	return &u, nil
}

// GetUserByReferralCode matches codes case-insensitively; codes are stored upper case.
func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "referral_code = ?", strings.ToUpper(code)).Error
	if err != nil {
		return nil, notFound(err, models.ErrReferralCodeNotFound)
	}
	return &u, nil
}

// SetReferralCode sets the code only while the user has none. It returns
// false when a code was already present and ErrDuplicateEntry when another
// user holds the code.
func (s *Store) SetReferralCode(ctx context.Context, userID, code string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND referral_code IS NULL", userID).
		Updates(map[string]any{"referral_code": code, "updated_at": s.now()})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, models.ErrDuplicateEntry
		}
		return false, fmt.Errorf("set referral code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		ok, err := exists(s.db.WithContext(ctx), &models.User{}, userID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, models.ErrUserNotFound
		}
		return false, nil
	}
	return true, nil
}

// SetReferredBy links the user to a referrer once.
func (s *Store) SetReferredBy(ctx context.Context, userID, referrerID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND referred_by IS NULL", userID).
		Updates(map[string]any{"referred_by": referrerID, "referral_applied_at": at, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("set referred by: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		ok, err := exists(s.db.WithContext(ctx), &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrUserNotFound
		}
		return models.ErrAlreadyReferred
	}
	return nil
}

func (s *Store) ListReferredUsers(ctx context.Context, referrerID string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("referred_by = ?", referrerID).
		Order("referral_applied_at DESC").
		Find(&users).Error
	return users, err
}

func (s *Store) CountReferredUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("referred_by IS NOT NULL").Count(&n).Error
	return n, err
}

// AdjustBalances is the conditional counter update for both balances.
// The withdrawable column is assigned first and capped at the new wallet
// value so the statement means the same on MySQL (left to right) and
// Postgres (old values).
func (s *Store) AdjustBalances(ctx context.Context, userID string, ch models.BalanceChange) (models.Balances, error) {
	var out models.Balances

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Exec(
			`UPDATE users
			    SET withdrawable_balance = LEAST(withdrawable_balance + ?, wallet_balance + ?),
			        wallet_balance = wallet_balance + ?,
			        updated_at = ?
			  WHERE id = ? AND wallet_balance >= ? AND withdrawable_balance >= ?`,
			ch.Withdrawable, ch.Wallet, ch.Wallet, now,
			userID, ch.RequireWallet, ch.RequireWithdrawable,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			ok, err := exists(tx, &models.User{}, userID)
			if err != nil {
				return err
			}
			if !ok {
				return models.ErrUserNotFound
			}
			return models.ErrConstraintViolated
		}

		// Same transaction: reads the row this statement just wrote and still locks.
		var u models.User
		if err := tx.Select("wallet_balance", "withdrawable_balance").First(&u, "id = ?", userID).Error; err != nil {
			return err
		}
		out = u.Balances()

		if ch.Entry == nil {
			return nil
		}
		e := ch.Entry
		if e.ID == "" {
			e.ID = models.NewLedgerID()
		}
		e.UserID = userID
		e.BalanceAfter = out.Wallet
		e.CreatedAt = now
		if err := tx.Create(e).Error; err != nil {
			if isDuplicate(err) {
				return models.ErrDuplicateEntry
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.Balances{}, err
	}
	return out, nil
}
