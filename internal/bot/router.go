package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"coinforge/internal/game"
	"coinforge/internal/identity"
)

const Prefix = "."

var ErrNotCommand = errors.New("not a command")

type Game interface {
	Balance(ctx context.Context, userID string) (game.Ledger, error)
	Draw(ctx context.Context, userID, idempotencyKey string) (game.DrawResult, error)
	Storage(ctx context.Context, userID string) (game.StorageView, error)
	Disassemble(ctx context.Context, userID string, artifactID int, idempotencyKey string) (game.DisassembleResult, error)
	Enhance(ctx context.Context, userID string, artifactID int, idempotencyKey string) (game.EnhanceResult, error)
	Lock(ctx context.Context, userID string, artifactID int) (game.LockResult, error)
	Unlock(ctx context.Context, userID string, artifactID int) (game.LockResult, error)
	Market(ctx context.Context) (game.MarketView, error)
	PlaceOrder(ctx context.Context, in game.OrderInput) (game.OrderResult, error)
	Portfolio(ctx context.Context, userID string) (game.Portfolio, error)
	History(ctx context.Context, symbol, period string) (game.HistoryView, error)
	Checkin(ctx context.Context, userID string) (game.CheckinResult, error)
	Boom(ctx context.Context, userID string, stake int64, idempotencyKey string) (game.BoomResult, error)
}

type Command struct {
	Platform       string `json:"platform"`
	RawUserID      string `json:"user"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type Reply struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Router struct {
	game Game
	log  *slog.Logger
}

func NewRouter(g Game, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{game: g, log: logger}
}

func IsCommand(text string) bool {
	text = strings.TrimSpace(text)
	return len(text) > len(Prefix) && strings.HasPrefix(text, Prefix)
}

// Handle runs one chat command. Domain failures come back as an unsuccessful
// Reply with a nil error; the error is only set for infrastructure failures.
func (r *Router) Handle(ctx context.Context, cmd Command) (Reply, error) {
	if !IsCommand(cmd.Text) {
		return Reply{}, ErrNotCommand
	}
	fields := strings.Fields(strings.TrimSpace(cmd.Text))
	name := strings.ToLower(strings.TrimPrefix(fields[0], Prefix))
	args := fields[1:]
	reply := Reply{Command: name}

	userID, err := identity.Resolve(cmd.Platform, cmd.RawUserID)
	if err != nil {
		reply.Message = "Could not identify you: " + err.Error()
		return reply, nil
	}

	msg, err := r.dispatch(ctx, userID, name, args, cmd.IdempotencyKey)
	switch {
	case err == nil:
		reply.Success = true
		reply.Message = msg
		return reply, nil
	case errors.Is(err, errUsage), errors.Is(err, errUnknownCommand), game.IsDomainError(err):
		reply.Message = capitalize(err.Error())
		return reply, nil
	default:
		r.log.Error("command failed", "command", name, "platform", cmd.Platform, "user_id", userID, "err", err)
		reply.Message = "Something went wrong, please try again later."
		return reply, err
	}
}

var (
	errUsage          = errors.New("usage")
	errUnknownCommand = errors.New("unknown command")
)

func usage(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

func (r *Router) dispatch(ctx context.Context, userID, name string, args []string, key string) (string, error) {
	switch name {
	case "help":
		return HelpText, nil
	case "balance":
		l, err := r.game.Balance(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Coins: %d | Enhancement items: %d | Reroll items: %d", l.Coins, l.UpgradeItems, l.RerollItems), nil
	case "draw":
		res, err := r.game.Draw(ctx, userID, key)
		return res.Message, err
	case "storage":
		res, err := r.game.Storage(ctx, userID)
		return res.Message, err
	case "disassemble", "enhance", "lock", "unlock":
		id, err := artifactArg(name, args)
		if err != nil {
			return "", err
		}
		return r.artifactCommand(ctx, userID, name, id, key)
	case "market":
		res, err := r.game.Market(ctx)
		return res.Message, err
	case "buy", "sell":
		if len(args) != 2 {
			return "", usage(".%s <symbol> <quantity>", name)
		}
		qty, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", usage(".%s <symbol> <quantity>", name)
		}
		res, err := r.game.PlaceOrder(ctx, game.OrderInput{
			UserID:         userID,
			Symbol:         args[0],
			Side:           name,
			Quantity:       qty,
			IdempotencyKey: key,
		})
		return res.Message, err
	case "portfolio":
		res, err := r.game.Portfolio(ctx, userID)
		return res.Message, err
	case "history":
		if len(args) < 1 || len(args) > 2 {
			return "", usage(".history <symbol> [6m|1h|1d]")
		}
		period := ""
		if len(args) == 2 {
			period = args[1]
		}
		res, err := r.game.History(ctx, args[0], period)
		return res.Message, err
	case "checkin":
		res, err := r.game.Checkin(ctx, userID)
		return res.Message, err
	case "boom":
		if len(args) != 1 {
			return "", usage(".boom <stake>")
		}
		stake, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return "", usage(".boom <stake>")
		}
		res, err := r.game.Boom(ctx, userID, stake, key)
		return res.Message, err
	default:
		return "", fmt.Errorf("%w .%s, try .help", errUnknownCommand, name)
	}
}

func (r *Router) artifactCommand(ctx context.Context, userID, name string, id int, key string) (string, error) {
	switch name {
	case "disassemble":
		res, err := r.game.Disassemble(ctx, userID, id, key)
		return res.Message, err
	case "enhance":
		res, err := r.game.Enhance(ctx, userID, id, key)
		return res.Message, err
	case "lock":
		res, err := r.game.Lock(ctx, userID, id)
		return res.Message, err
	default:
		res, err := r.game.Unlock(ctx, userID, id)
		return res.Message, err
	}
}

func artifactArg(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, usage(".%s <artifact id>", name)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(args[0]), "ID:"))
	if err != nil || id <= 0 {
		return 0, usage(".%s <artifact id>", name)
	}
	return id, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const HelpText = `Coinforge commands:
.checkin              daily coins, streaks pay more
.balance              coins and items
.draw                 spend 100 coins on a gacha draw
.storage              list your artifacts
.disassemble <id>     break an artifact into enhancement items
.enhance <id>         level up an artifact
.lock <id> / .unlock <id>
.market               stock board
.buy <symbol> <qty>   5% fee, minimum 1 coin
.sell <symbol> <qty>
.portfolio            wallet and holdings
.history <symbol> [6m|1h|1d]
.boom <stake>         stake at least 5 coins, win back 0 to 2x`
