package game

import (
	"context"
	"fmt"
)

const checkinLayout = "2006-01-02"

func (s *Service) Checkin(ctx context.Context, userID string) (CheckinResult, error) {
	var out CheckinResult
	err := s.withUser(ctx, userID, "", "checkin", func(tx *userTx) error {
		now := s.now()
		today := now.Format(checkinLayout)
		if tx.wallet.LastCheckin == today {
			return fmt.Errorf("%w: come back tomorrow (streak %d)", ErrAlreadyCheckedIn, tx.wallet.Streak)
		}
		yesterday := now.AddDate(0, 0, -1).Format(checkinLayout)
		if tx.wallet.LastCheckin == yesterday {
			tx.wallet.Streak++
		} else {
			tx.wallet.Streak = 1
		}
		tx.wallet.LastCheckin = today

		out.Streak = tx.wallet.Streak
		out.Bonus = int64(s.rollRange(0, MaxCheckinBonus))
		out.Reward = int64(out.Streak) + out.Bonus
		tx.credit(out.Reward, 0, 0)
		out.Balance = tx.wallet.Coins
		out.Message = fmt.Sprintf("Checked in! Streak %d day(s): %d + %d bonus = %d coins. Balance: %d coins.",
			out.Streak, out.Streak, out.Bonus, out.Reward, out.Balance)
		return nil
	})
	return out, err
}

// Boom burns the stake and pays back a uniform amount in [0, 2*stake].
func (s *Service) Boom(ctx context.Context, userID string, stake int64, idempotencyKey string) (BoomResult, error) {
	out := BoomResult{Stake: stake}
	if stake < MinBoomStake {
		return out, fmt.Errorf("%w: stake at least %d coins, got %d", ErrStakeTooSmall, MinBoomStake, stake)
	}
	if stake > MaxCoins {
		return out, fmt.Errorf("%w: stake at most %d coins, got %d", ErrAmountTooLarge, MaxCoins, stake)
	}
	err := s.withUser(ctx, userID, idempotencyKey, "boom", func(tx *userTx) error {
		if tx.wallet.Coins < stake {
			return fmt.Errorf("%w: need %d coins, have %d", ErrInsufficientFunds, stake, tx.wallet.Coins)
		}
		out.Payout = int64(s.rollRange(0, int(2*stake)))
		tx.credit(out.Payout-stake, 0, 0)
		out.Balance = tx.wallet.Coins
		out.Message = fmt.Sprintf("You blew up %d coins and dug %d out of the rubble. Balance: %d coins.", stake, out.Payout, out.Balance)
		return nil
	})
	return out, err
}

func (s *Service) Balance(ctx context.Context, userID string) (Ledger, error) {
	return s.Ensure(ctx, userID)
}

// AdjustLedger applies signed deltas to a wallet. A delta that would drive
// any counter below zero or above MaxCoins rejects the whole adjustment.
func (s *Service) AdjustLedger(ctx context.Context, in LedgerInput) (Ledger, error) {
	var out Ledger
	err := s.withUser(ctx, in.UserID, in.IdempotencyKey, "ledger", func(tx *userTx) error {
		w := tx.wallet
		if in.Coins < 0 && w.Coins+in.Coins < 0 {
			return fmt.Errorf("%w: need %d coins, have %d", ErrInsufficientFunds, -in.Coins, w.Coins)
		}
		if in.UpgradeItems < 0 && w.UpgradeItems+in.UpgradeItems < 0 {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientItems, -in.UpgradeItems, w.UpgradeItems)
		}
		if in.RerollItems < 0 && w.RerollItems+in.RerollItems < 0 {
			return fmt.Errorf("%w: need %d reroll items, have %d", ErrInsufficientItems, -in.RerollItems, w.RerollItems)
		}
		for _, c := range []struct {
			name        string
			have, delta int64
		}{
			{"coins", w.Coins, in.Coins},
			{"upgrade items", w.UpgradeItems, in.UpgradeItems},
			{"reroll items", w.RerollItems, in.RerollItems},
		} {
			if c.delta > 0 && c.have > MaxCoins-c.delta {
				return fmt.Errorf("%w: %d + %d %s exceeds %d", ErrAmountTooLarge, c.have, c.delta, c.name, MaxCoins)
			}
		}
		tx.credit(in.Coins, in.UpgradeItems, in.RerollItems)
		out = ledgerOf(w)
		return nil
	})
	return out, err
}

func (s *Service) AdjustBalance(ctx context.Context, userID string, delta int64) (Ledger, error) {
	return s.AdjustLedger(ctx, LedgerInput{UserID: userID, Coins: delta})
}

func (s *Service) AdjustUpgradeItems(ctx context.Context, userID string, delta int64) (Ledger, error) {
	return s.AdjustLedger(ctx, LedgerInput{UserID: userID, UpgradeItems: delta})
}

func (s *Service) AdjustRerollItems(ctx context.Context, userID string, delta int64) (Ledger, error) {
	return s.AdjustLedger(ctx, LedgerInput{UserID: userID, RerollItems: delta})
}
