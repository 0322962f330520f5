package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"coinforge/internal/store"
)

// Dice is the randomness source. *math/rand.Rand satisfies it.
type Dice interface {
	Intn(n int) int
	Float64() float64
}

// PriceSink receives the price changes of every market tick.
type PriceSink interface {
	PublishPrices(ctx context.Context, updates []PriceUpdate) error
}

type Settings struct {
	DrawCost     int64
	StarterCoins int64
	Volatility   string
	TickEvery    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		DrawCost:     DrawCost,
		StarterCoins: StarterCoins,
		Volatility:   "mor",
		TickEvery:    6 * time.Minute,
	}
}

type Option func(*Service)

func WithSettings(cfg Settings) Option {
	return func(s *Service) {
		if cfg.DrawCost > 0 {
			s.cfg.DrawCost = cfg.DrawCost
		}
		if cfg.StarterCoins >= 0 {
			s.cfg.StarterCoins = cfg.StarterCoins
		}
		if cfg.TickEvery > 0 {
			s.cfg.TickEvery = cfg.TickEvery
		}
		s.cfg.Volatility = NormalizeVolatility(cfg.Volatility)
	}
}

func WithDice(d Dice) Option {
	return func(s *Service) { s.rand = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPriceSink(sink PriceSink) Option {
	return func(s *Service) { s.sink = sink }
}

type Service struct {
	store store.Store
	log   *slog.Logger
	cfg   Settings

	mu   sync.Mutex
	rand Dice
	now  func() time.Time
	sink PriceSink

	users *keyedMutex

	marketMu sync.Mutex
	market   map[string]*Stock
	lastTick time.Time
}

func NewService(st store.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store: st,
		log:   logger,
		cfg:   DefaultSettings(),
		rand:  mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		users: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Settings() Settings {
	return s.cfg
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

// rollRange returns a uniform integer in [lo, hi].
func (s *Service) rollRange(lo, hi int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rand.Intn(hi-lo+1)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// userTx collects every write a command makes so it can be committed with
// a single store.Apply.
type userTx struct {
	ctx    context.Context
	svc    *Service
	userID string
	wallet *Wallet
	inv    *Inventory

	walletDirty bool
	keys        map[string]int
	ops         []store.Op
	onCommit    []func()
}

func (s *Service) loadWallet(ctx context.Context, userID string) (*Wallet, bool, error) {
	raw, err := s.store.Get(ctx, store.NamespaceWallets, userID, "wallet")
	if errors.Is(err, store.ErrNotFound) {
		return &Wallet{
			UserID:       userID,
			Coins:        s.cfg.StarterCoins,
			Holdings:     map[string]int64{},
			RegisteredAt: s.now().UTC(),
		}, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load wallet: %w", err)
	}
	var w Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("decode wallet %s: %w", userID, err)
	}
	if w.Holdings == nil {
		w.Holdings = map[string]int64{}
	}
	w.UserID = userID
	return &w, false, nil
}

func (s *Service) loadInventory(ctx context.Context, userID string) (*Inventory, error) {
	recs, err := s.store.List(ctx, store.NamespaceArtifacts, userID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	arts := make([]*Artifact, 0, len(recs))
	for _, r := range recs {
		var a Artifact
		if err := json.Unmarshal(r.Doc, &a); err != nil {
			return nil, fmt.Errorf("decode artifact %s/%s: %w", userID, r.Key, err)
		}
		arts = append(arts, &a)
	}
	return NewInventory(InventoryCapacity, arts), nil
}

// withUser runs fn with the user's state loaded under the user lock and
// commits the collected writes. Nothing is written when fn fails.
func (s *Service) withUser(ctx context.Context, userID, idempotencyKey, action string, fn func(tx *userTx) error) error {
	return s.runUser(ctx, userID, idempotencyKey, action, false, fn)
}

// withUserAndMarket also holds the market lock until the commit has landed,
// so a tick can never interleave with a trade.
func (s *Service) withUserAndMarket(ctx context.Context, userID, idempotencyKey, action string, fn func(tx *userTx) error) error {
	return s.runUser(ctx, userID, idempotencyKey, action, true, fn)
}

func (s *Service) runUser(ctx context.Context, userID, idempotencyKey, action string, market bool, fn func(tx *userTx) error) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	unlock := s.users.Lock(userID)
	defer unlock()

	wallet, isNew, err := s.loadWallet(ctx, userID)
	if err != nil {
		return err
	}
	if market {
		s.marketMu.Lock()
		defer s.marketMu.Unlock()
		if err := s.loadMarketLocked(ctx); err != nil {
			return err
		}
	}
	tx := &userTx{ctx: ctx, svc: s, userID: userID, wallet: wallet, walletDirty: isNew, keys: map[string]int{}}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(idempotencyKey, action)
}

func (tx *userTx) inventory() (*Inventory, error) {
	if tx.inv != nil {
		return tx.inv, nil
	}
	inv, err := tx.svc.loadInventory(tx.ctx, tx.userID)
	if err != nil {
		return nil, err
	}
	tx.inv = inv
	return inv, nil
}

func (tx *userTx) stage(op store.Op) {
	k := op.Namespace + "\x00" + op.Owner + "\x00" + op.Key
	if i, ok := tx.keys[k]; ok {
		tx.ops[i] = op
		return
	}
	tx.keys[k] = len(tx.ops)
	tx.ops = append(tx.ops, op)
}

func (tx *userTx) putArtifact(a *Artifact) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	tx.stage(store.PutOp(store.NamespaceArtifacts, tx.userID, strconv.Itoa(a.ID), doc))
	return nil
}

func (tx *userTx) deleteArtifact(id int) {
	tx.stage(store.DeleteOp(store.NamespaceArtifacts, tx.userID, strconv.Itoa(id)))
}

func (tx *userTx) putStock(st *Stock) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode stock: %w", err)
	}
	tx.stage(store.PutOp(store.NamespaceStocks, MarketOwner, st.Symbol, doc))
	return nil
}

func (tx *userTx) credit(coins, upgradeItems, rerollItems int64) {
	tx.wallet.Coins += coins
	tx.wallet.UpgradeItems += upgradeItems
	tx.wallet.RerollItems += rerollItems
	tx.walletDirty = true
}

func (tx *userTx) commit(idempotencyKey, action string) error {
	if tx.walletDirty {
		doc, err := json.Marshal(tx.wallet)
		if err != nil {
			return fmt.Errorf("encode wallet: %w", err)
		}
		tx.stage(store.PutOp(store.NamespaceWallets, tx.userID, "wallet", doc))
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" && len(tx.ops) > 0 {
		doc, _ := json.Marshal(map[string]any{"action": action, "claimed_at": tx.svc.now().UTC()})
		tx.stage(store.CreateOp(store.NamespaceIdempotency, tx.userID, key, doc))
	}
	if len(tx.ops) == 0 {
		return nil
	}
	if err := tx.svc.store.Apply(tx.ctx, tx.ops); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateIdempotency
		}
		return fmt.Errorf("commit %s: %w", action, err)
	}
	for _, fn := range tx.onCommit {
		fn()
	}
	return nil
}

// Ensure registers the user with the starter balance if they are new.
func (s *Service) Ensure(ctx context.Context, userID string) (Ledger, error) {
	var out Ledger
	err := s.withUser(ctx, userID, "", "register", func(tx *userTx) error {
		out = ledgerOf(tx.wallet)
		return nil
	})
	return out, err
}

func ledgerOf(w *Wallet) Ledger {
	return Ledger{UserID: w.UserID, Coins: w.Coins, UpgradeItems: w.UpgradeItems, RerollItems: w.RerollItems}
}

func sortedSymbols(m map[string]*Stock) []string {
	out := make([]string, 0, len(m))
	for sym := range m {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
