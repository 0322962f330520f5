package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinforge/internal/store"
)

// loadMarketLocked fills the cached market from the store, seeding the
// default symbols on first start. Caller holds marketMu.
func (s *Service) loadMarketLocked(ctx context.Context) error {
	if s.market != nil {
		return nil
	}
	recs, err := s.store.List(ctx, store.NamespaceStocks, MarketOwner)
	if err != nil {
		return fmt.Errorf("load stocks: %w", err)
	}
	market := make(map[string]*Stock, len(defaultStocks))
	if len(recs) == 0 {
		now := s.now()
		ops := make([]store.Op, 0, len(defaultStocks))
		for _, seed := range defaultStocks {
			st := newStock(seed, now)
			doc, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("encode stock: %w", err)
			}
			ops = append(ops, store.PutOp(store.NamespaceStocks, MarketOwner, st.Symbol, doc))
			market[st.Symbol] = st
		}
		if err := s.store.Apply(ctx, ops); err != nil {
			return fmt.Errorf("seed stocks: %w", err)
		}
		s.log.Info("seeded default stocks", "count", len(ops))
	}
	for _, r := range recs {
		var st Stock
		if err := json.Unmarshal(r.Doc, &st); err != nil {
			return fmt.Errorf("decode stock %s: %w", r.Key, err)
		}
		if st.History == nil {
			st.History = map[Period][]PricePoint{}
		}
		market[st.Symbol] = &st
	}
	s.market = market
	if s.lastTick.IsZero() {
		s.lastTick = s.now()
	}
	return nil
}

func (s *Service) SeedDefaults(ctx context.Context) error {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	return s.loadMarketLocked(ctx)
}

// RunMarketTick moves every price one step. The cached market is only
// replaced after the store accepted the new prices.
func (s *Service) RunMarketTick(ctx context.Context) error {
	updates, err := s.tick(ctx)
	if err != nil {
		return err
	}
	if s.sink != nil {
		if err := s.sink.PublishPrices(ctx, updates); err != nil {
			s.log.Warn("publish prices failed", "err", err)
		}
	}
	return nil
}

func (s *Service) tick(ctx context.Context) ([]PriceUpdate, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	if err := s.loadMarketLocked(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	params := volatilityParams(s.cfg.Volatility)
	next := make(map[string]*Stock, len(s.market))
	ops := make([]store.Op, 0, len(s.market))
	updates := make([]PriceUpdate, 0, len(s.market))
	for _, sym := range sortedSymbols(s.market) {
		st := s.market[sym].clone()
		prev := st.Price
		st.Price = evolvePrice(prev, tickReturn(params, st.Weight, s.nextFloat))
		st.UpdatedAt = now.UTC()
		recordPrice(st, now, st.Price)

		doc, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("encode stock: %w", err)
		}
		ops = append(ops, store.PutOp(store.NamespaceStocks, MarketOwner, sym, doc))
		next[sym] = st
		updates = append(updates, PriceUpdate{
			Symbol: sym,
			Name:   st.Name,
			Price:  st.Price,
			Prev:   prev,
			Weight: st.Weight,
			TickAt: now.UTC(),
		})
	}
	if err := s.store.Apply(ctx, ops); err != nil {
		return nil, fmt.Errorf("commit market tick: %w", err)
	}
	s.market = next
	s.lastTick = now
	s.log.Info("market tick", "stocks", len(updates), "volatility", s.cfg.Volatility)
	return updates, nil
}

func (s *Service) Buy(ctx context.Context, userID, symbol string, quantity int64, idempotencyKey string) (OrderResult, error) {
	return s.PlaceOrder(ctx, OrderInput{UserID: userID, Symbol: symbol, Side: "buy", Quantity: quantity, IdempotencyKey: idempotencyKey})
}

func (s *Service) Sell(ctx context.Context, userID, symbol string, quantity int64, idempotencyKey string) (OrderResult, error) {
	return s.PlaceOrder(ctx, OrderInput{UserID: userID, Symbol: symbol, Side: "sell", Quantity: quantity, IdempotencyKey: idempotencyKey})
}

func (s *Service) PlaceOrder(ctx context.Context, in OrderInput) (OrderResult, error) {
	var out OrderResult
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	in.Side = strings.ToLower(strings.TrimSpace(in.Side))
	if in.Quantity <= 0 {
		return out, fmt.Errorf("%w: got %d", ErrInvalidQuantity, in.Quantity)
	}
	if in.Side != "buy" && in.Side != "sell" {
		return out, fmt.Errorf("%w: got %q", ErrInvalidSide, in.Side)
	}

	err := s.withUserAndMarket(ctx, in.UserID, in.IdempotencyKey, in.Side, func(tx *userTx) error {
		cur, ok := s.market[in.Symbol]
		if !ok {
			return fmt.Errorf("%w: %s", ErrStockNotFound, in.Symbol)
		}
		st := cur.clone()
		total, ok := tradeTotal(st.Price, in.Quantity)
		if !ok {
			if in.Side == "buy" {
				return fmt.Errorf("%w: %d x %s is worth more than %d coins, have %d", ErrInsufficientFunds, in.Quantity, in.Symbol, MaxCoins, tx.wallet.Coins)
			}
			return fmt.Errorf("%w: %d x %s is worth more than %d coins", ErrAmountTooLarge, in.Quantity, in.Symbol, MaxCoins)
		}
		fee := tradeFee(total)
		held := tx.wallet.Holdings[in.Symbol]

		switch in.Side {
		case "buy":
			if tx.wallet.Coins < total+fee {
				return fmt.Errorf("%w: need %d coins (%d + %d fee), have %d", ErrInsufficientFunds, total+fee, total, fee, tx.wallet.Coins)
			}
			tx.credit(-(total + fee), 0, 0)
			held += in.Quantity
		case "sell":
			if held < in.Quantity {
				return fmt.Errorf("%w: need %d shares of %s, have %d", ErrInsufficientHoldings, in.Quantity, in.Symbol, held)
			}
			if fee >= total {
				return fmt.Errorf("%w: fee %d, proceeds %d", ErrFeeExceedsProceeds, fee, total)
			}
			tx.credit(total-fee, 0, 0)
			held -= in.Quantity
		}
		if held == 0 {
			delete(tx.wallet.Holdings, in.Symbol)
		} else {
			tx.wallet.Holdings[in.Symbol] = held
		}

		st.Weight = weightAfterTrade(st.Weight, in.Quantity, in.Side)
		if st.Weight != cur.Weight {
			if err := tx.putStock(st); err != nil {
				return err
			}
			tx.onCommit = append(tx.onCommit, func() { s.market[in.Symbol] = st })
		}

		out = OrderResult{
			Symbol:   in.Symbol,
			Side:     in.Side,
			Quantity: in.Quantity,
			Price:    st.Price,
			Total:    total,
			Fee:      fee,
			Balance:  tx.wallet.Coins,
			Holding:  held,
			Weight:   st.Weight,
		}
		if in.Side == "buy" {
			out.Message = fmt.Sprintf("Bought %d x %s %s at %.2f for %d coins (fee %d). Balance: %d coins.",
				in.Quantity, st.Symbol, st.Name, st.Price, total, fee, out.Balance)
		} else {
			out.Message = fmt.Sprintf("Sold %d x %s %s at %.2f for %d coins (fee %d). Balance: %d coins.",
				in.Quantity, st.Symbol, st.Name, st.Price, total-fee, fee, out.Balance)
		}
		return nil
	})
	if err != nil {
		return OrderResult{}, err
	}
	s.log.Info("order filled",
		"user_id", in.UserID,
		"symbol", out.Symbol,
		"side", out.Side,
		"quantity", out.Quantity,
		"fee", out.Fee,
	)
	return out, nil
}

func (s *Service) History(ctx context.Context, symbol, period string) (HistoryView, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return HistoryView{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	if err := s.loadMarketLocked(ctx); err != nil {
		return HistoryView{}, err
	}
	st, ok := s.market[symbol]
	if !ok {
		return HistoryView{}, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	points := append([]PricePoint{}, st.History[p]...)
	return HistoryView{
		Symbol:  st.Symbol,
		Name:    st.Name,
		Period:  p,
		Points:  points,
		Message: historyReport(st, p, points),
	}, nil
}

func (s *Service) Market(ctx context.Context) (MarketView, error) {
	s.marketMu.Lock()
	defer s.marketMu.Unlock()
	if err := s.loadMarketLocked(ctx); err != nil {
		return MarketView{}, err
	}
	out := MarketView{NextUpdate: s.nextUpdateLocked()}
	for _, sym := range sortedSymbols(s.market) {
		out.Stocks = append(out.Stocks, s.market[sym].view())
	}
	out.Message = marketReport(out.Stocks, out.NextUpdate)
	return out, nil
}

func (s *Service) nextUpdateLocked() time.Time {
	last := s.lastTick
	if last.IsZero() {
		last = s.now()
	}
	return last.Add(s.cfg.TickEvery).UTC()
}

func (s *Service) Portfolio(ctx context.Context, userID string) (Portfolio, error) {
	var out Portfolio
	err := s.withUserAndMarket(ctx, userID, "", "portfolio", func(tx *userTx) error {
		inv, err := tx.inventory()
		if err != nil {
			return err
		}
		w := tx.wallet
		out = Portfolio{
			UserID:       w.UserID,
			Coins:        w.Coins,
			UpgradeItems: w.UpgradeItems,
			RerollItems:  w.RerollItems,
			Streak:       w.Streak,
			LastCheckin:  w.LastCheckin,
			Holdings:     []HoldingView{},
			Artifacts:    inv.Len(),
		}
		for _, sym := range sortedSymbols(s.market) {
			qty := w.Holdings[sym]
			if qty == 0 {
				continue
			}
			st := s.market[sym]
			value, ok := tradeTotal(st.Price, qty)
			if !ok {
				value = MaxCoins
			}
			h := HoldingView{Symbol: sym, Name: st.Name, Quantity: qty, Price: st.Price, Value: value}
			out.Holdings = append(out.Holdings, h)
			out.HoldingsValue += h.Value
		}
		out.Message = portfolioReport(out)
		return nil
	})
	return out, err
}

func portfolioReport(p Portfolio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Coins: %d | Enhancement items: %d | Reroll items: %d | Artifacts: %d/%d",
		p.Coins, p.UpgradeItems, p.RerollItems, p.Artifacts, InventoryCapacity)
	if len(p.Holdings) == 0 {
		b.WriteString("\nNo stock holdings.")
		return b.String()
	}
	for _, h := range p.Holdings {
		fmt.Fprintf(&b, "\n%s %s x%d @ %.2f = %d", h.Symbol, h.Name, h.Quantity, h.Price, h.Value)
	}
	fmt.Fprintf(&b, "\nHoldings value: %d coins", p.HoldingsValue)
	return b.String()
}
