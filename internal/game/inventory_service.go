package game

import (
	"context"
	"fmt"
)

// Draw spends the draw cost and rolls one gacha outcome.
func (s *Service) Draw(ctx context.Context, userID, idempotencyKey string) (DrawResult, error) {
	out := DrawResult{Cost: s.cfg.DrawCost}
	err := s.withUser(ctx, userID, idempotencyKey, "draw", func(tx *userTx) error {
		if tx.wallet.Coins < s.cfg.DrawCost {
			return fmt.Errorf("%w: a draw costs %d coins, you have %d", ErrInsufficientFunds, s.cfg.DrawCost, tx.wallet.Coins)
		}
		tx.credit(-s.cfg.DrawCost, 0, 0)

		out.Roll = s.rollRange(1, 100)
		switch {
		case out.Roll <= 5:
			out.Outcome = DrawArtifact
			a, placement, err := s.generateInto(tx)
			if err != nil {
				return err
			}
			out.Artifact = a
			out.Placement = &placement
			out.Message = "Jackpot! " + placementMessage(a, placement)
		case out.Roll <= 15:
			out.Outcome = DrawReroll
			out.ItemsWon = 1
			tx.credit(0, 0, 1)
			out.Message = "You won 1 reroll item."
		case out.Roll <= 35:
			out.Outcome = DrawUpgrade
			out.ItemsWon = int64(s.rollRange(1, 3))
			tx.credit(0, out.ItemsWon, 0)
			out.Message = fmt.Sprintf("You won %d enhancement items.", out.ItemsWon)
		default:
			out.Outcome = DrawCoins
			out.CoinsWon = int64(s.rollRange(1, 120))
			tx.credit(out.CoinsWon, 0, 0)
			out.Message = fmt.Sprintf("You won %d coins.", out.CoinsWon)
		}
		out.Balance = tx.wallet.Coins
		out.UpgradeItems = tx.wallet.UpgradeItems
		out.RerollItems = tx.wallet.RerollItems
		out.Message += fmt.Sprintf(" Balance: %d coins.", out.Balance)
		return nil
	})
	return out, err
}

// GrantArtifact generates an artifact for the user without charging them.
func (s *Service) GrantArtifact(ctx context.Context, userID, idempotencyKey string) (GrantResult, error) {
	var out GrantResult
	err := s.withUser(ctx, userID, idempotencyKey, "grant", func(tx *userTx) error {
		a, placement, err := s.generateInto(tx)
		if err != nil {
			return err
		}
		out.Artifact = *a
		out.Placement = placement
		out.Message = placementMessage(a, placement)
		return nil
	})
	return out, err
}

func (s *Service) generateInto(tx *userTx) (*Artifact, AddOutcome, error) {
	inv, err := tx.inventory()
	if err != nil {
		return nil, AddOutcome{}, err
	}
	a, err := newArtifact(inv, s.rollRange, s.now())
	if err != nil {
		return nil, AddOutcome{}, err
	}
	placement, err := s.addArtifact(tx, a)
	return a, placement, err
}

func (s *Service) addArtifact(tx *userTx, a *Artifact) (AddOutcome, error) {
	inv, err := tx.inventory()
	if err != nil {
		return AddOutcome{}, err
	}
	placement := inv.Add(a)
	if placement.Evicted != nil {
		tx.deleteArtifact(placement.Evicted.ID)
		tx.credit(0, placement.EvictedYield, 0)
	}
	if placement.Stored {
		if err := tx.putArtifact(a); err != nil {
			return placement, err
		}
	} else {
		tx.credit(0, placement.ConvertedYield, 0)
	}
	s.log.Info("artifact placed",
		"user_id", tx.userID,
		"artifact_id", a.ID,
		"rarity", a.Rarity.String(),
		"stored", placement.Stored,
	)
	return placement, nil
}

func placementMessage(a *Artifact, p AddOutcome) string {
	switch {
	case !p.Stored:
		return fmt.Sprintf("You found %s%s %s, but every slot is locked. It dissolved into %d enhancement items.",
			a.Rarity.Glyph(), a.Rarity, a.Name, p.ConvertedYield)
	case p.Evicted != nil:
		return fmt.Sprintf("You found %s%s %s (ID:%d). Storage was full, so ID:%d %s was disassembled for %d enhancement items.",
			a.Rarity.Glyph(), a.Rarity, a.Name, a.ID, p.Evicted.ID, p.Evicted.Name, p.EvictedYield)
	default:
		return fmt.Sprintf("You found %s%s %s (ID:%d).", a.Rarity.Glyph(), a.Rarity, a.Name, a.ID)
	}
}

func (s *Service) Disassemble(ctx context.Context, userID string, artifactID int, idempotencyKey string) (DisassembleResult, error) {
	var out DisassembleResult
	err := s.withUser(ctx, userID, idempotencyKey, "disassemble", func(tx *userTx) error {
		inv, err := tx.inventory()
		if err != nil {
			return err
		}
		a, ok := inv.Get(artifactID)
		if !ok {
			return fmt.Errorf("%w: id %d", ErrArtifactNotFound, artifactID)
		}
		if a.Locked {
			return fmt.Errorf("%w: unlock ID:%d before disassembling it", ErrArtifactLocked, artifactID)
		}
		out.Yield = a.DisassemblyYield()
		out.Artifact = *a
		inv.Remove(artifactID)
		tx.deleteArtifact(artifactID)
		tx.credit(0, out.Yield, 0)
		out.UpgradeItems = tx.wallet.UpgradeItems
		out.Message = fmt.Sprintf("Disassembled %s for %d enhancement items. You now hold %d.", a.Name, out.Yield, out.UpgradeItems)
		return nil
	})
	return out, err
}

// Enhance raises an artifact one level. Items are taken from the wallet ledger.
func (s *Service) Enhance(ctx context.Context, userID string, artifactID int, idempotencyKey string) (EnhanceResult, error) {
	var out EnhanceResult
	err := s.withUser(ctx, userID, idempotencyKey, "enhance", func(tx *userTx) error {
		inv, err := tx.inventory()
		if err != nil {
			return err
		}
		a, ok := inv.Get(artifactID)
		if !ok {
			return fmt.Errorf("%w: id %d", ErrArtifactNotFound, artifactID)
		}
		items, coins := EnhanceCost(a.Level)
		if tx.wallet.UpgradeItems < items {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientItems, items, tx.wallet.UpgradeItems)
		}
		if tx.wallet.Coins < coins {
			return fmt.Errorf("%w: need %d coins, have %d", ErrInsufficientFunds, coins, tx.wallet.Coins)
		}
		tx.credit(-coins, -items, 0)
		a.Level++
		if err := tx.putArtifact(a); err != nil {
			return err
		}
		out.Artifact = *a
		out.ItemsSpent = items
		out.CoinsSpent = coins
		out.Balance = tx.wallet.Coins
		out.UpgradeItems = tx.wallet.UpgradeItems
		out.Message = fmt.Sprintf("%s is now Lv.%d. Spent %d enhancement items and %d coins.", a.Name, a.Level, items, coins)
		return nil
	})
	return out, err
}

func (s *Service) Lock(ctx context.Context, userID string, artifactID int) (LockResult, error) {
	return s.setLocked(ctx, userID, artifactID, true)
}

func (s *Service) Unlock(ctx context.Context, userID string, artifactID int) (LockResult, error) {
	return s.setLocked(ctx, userID, artifactID, false)
}

func (s *Service) setLocked(ctx context.Context, userID string, artifactID int, locked bool) (LockResult, error) {
	var out LockResult
	err := s.withUser(ctx, userID, "", "lock", func(tx *userTx) error {
		inv, err := tx.inventory()
		if err != nil {
			return err
		}
		a, ok := inv.Get(artifactID)
		if !ok {
			return fmt.Errorf("%w: id %d", ErrArtifactNotFound, artifactID)
		}
		if a.Locked != locked {
			a.Locked = locked
			if err := tx.putArtifact(a); err != nil {
				return err
			}
		}
		out.Artifact = *a
		verb := "unlocked"
		if locked {
			verb = "locked"
		}
		out.Message = fmt.Sprintf("%s %s is %s.", a.LockGlyph(), a.Name, verb)
		return nil
	})
	return out, err
}

func (s *Service) Storage(ctx context.Context, userID string) (StorageView, error) {
	out := StorageView{Capacity: InventoryCapacity, Artifacts: []Artifact{}}
	err := s.withUser(ctx, userID, "", "storage", func(tx *userTx) error {
		inv, err := tx.inventory()
		if err != nil {
			return err
		}
		for _, a := range inv.Sorted() {
			out.Artifacts = append(out.Artifacts, *a)
		}
		out.Message = storageReport(inv)
		return nil
	})
	return out, err
}
