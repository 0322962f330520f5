package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"coinforge/internal/bot"
	"coinforge/internal/game"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderReply(r bot.Reply) {
	if r.Success {
		printSuccess(r.Message)
		return
	}
	printError(r.Message)
}

func rarityLabel(r game.Rarity) string {
	label := r.Glyph() + r.String()
	switch r {
	case game.Legendary:
		return warn.Sprint(label)
	case game.Epic:
		return color.New(color.FgMagenta, color.Bold).Sprint(label)
	case game.Rare:
		return accent.Sprint(label)
	default:
		return label
	}
}

func renderDraw(d game.DrawResult) {
	accent.Printf("\n== DRAW (roll %d) ==\n", d.Roll)
	switch d.Outcome {
	case game.DrawArtifact:
		printSuccess(d.Message)
		if d.Artifact != nil {
			renderArtifactRow(*d.Artifact)
		}
	default:
		printInfo(d.Message)
	}
	fmt.Printf("Coins: %d | Enhancement items: %d | Reroll items: %d\n\n", d.Balance, d.UpgradeItems, d.RerollItems)
}

func renderStorage(v game.StorageView) {
	accent.Printf("\n== STORAGE (%d/%d) ==\n", len(v.Artifacts), v.Capacity)
	if len(v.Artifacts) == 0 {
		printInfo("No artifacts yet. Try `cfk draw`.")
		return
	}
	fmt.Printf("%-6s %-14s %-4s %-28s %8s %-6s\n", "ID", "RARITY", "LV", "NAME", "YIELD", "LOCK")
	for _, a := range v.Artifacts {
		renderArtifactRow(a)
	}
	fmt.Println()
}

func renderArtifactRow(a game.Artifact) {
	lock := ""
	if a.Locked {
		lock = "🔒"
	}
	fmt.Printf("%-6d %-14s %-4d %-28s %8d %-6s\n",
		a.ID,
		rarityLabel(a.Rarity),
		a.Level,
		truncate(a.Name, 28),
		a.DisassemblyYield(),
		lock,
	)
}

func renderMarket(v game.MarketView) {
	accent.Println("\n== STOCK MARKET ==")
	if len(v.Stocks) == 0 {
		printInfo("No stocks found.")
		return
	}
	fmt.Printf("%-6s %-22s %-12s %10s %10s %8s\n", "SYMBOL", "NAME", "CATEGORY", "PRICE", "CHANGE", "WEIGHT")
	for _, s := range v.Stocks {
		fmt.Printf("%-6s %-22s %-12s %10.2f %10s %8.2f\n",
			s.Symbol,
			truncate(s.Name, 22),
			truncate(s.Category, 12),
			s.Price,
			colorizeChange(s.Change),
			s.Weight,
		)
	}
	if !v.NextUpdate.IsZero() {
		printInfo("Next update: " + v.NextUpdate.Local().Format("15:04:05"))
	}
	fmt.Println()
}

func renderHistory(v game.HistoryView) {
	accent.Printf("\n== %s %s (%s) ==\n", v.Symbol, v.Name, v.Period.Label())
	if len(v.Points) == 0 {
		printInfo("No history yet.")
		return
	}
	prices := make([]float64, 0, len(v.Points))
	for _, p := range v.Points {
		prices = append(prices, p.Price)
	}
	fmt.Println(sparkline(prices))
	for _, p := range v.Points {
		fmt.Printf("%s  %10.2f\n", p.TickAt.Local().Format("01-02 15:04"), p.Price)
	}
	fmt.Println()
}

func renderPortfolio(p game.Portfolio) {
	accent.Println("\n== PORTFOLIO ==")
	fmt.Printf("Coins:              %s\n", comma(p.Coins))
	fmt.Printf("Enhancement items:  %d\n", p.UpgradeItems)
	fmt.Printf("Reroll items:       %d\n", p.RerollItems)
	fmt.Printf("Check-in streak:    %d\n", p.Streak)
	fmt.Printf("Artifacts:          %d/%d\n", p.Artifacts, game.InventoryCapacity)

	fmt.Println()
	accent.Println("Holdings")
	if len(p.Holdings) == 0 {
		printInfo("No holdings yet.")
	} else {
		fmt.Printf("%-6s %-22s %8s %10s %12s\n", "SYMBOL", "NAME", "QTY", "PRICE", "VALUE")
		for _, h := range p.Holdings {
			fmt.Printf("%-6s %-22s %8d %10.2f %12s\n", h.Symbol, truncate(h.Name, 22), h.Quantity, h.Price, comma(h.Value))
		}
		fmt.Printf("Holdings value: %s coins\n", comma(p.HoldingsValue))
	}
	fmt.Println()
}

func renderOrder(o game.OrderResult) {
	verb := "Bought"
	if o.Side == "sell" {
		verb = "Sold"
	}
	printSuccess(fmt.Sprintf("%s %d x %s at %.2f", verb, o.Quantity, o.Symbol, o.Price))
	fmt.Printf("Total: %d | Fee: %d | Balance: %s | Holding: %d\n", o.Total, o.Fee, comma(o.Balance), o.Holding)
}

func renderBoom(b game.BoomResult) {
	diff := b.Payout - b.Stake
	switch {
	case diff > 0:
		printSuccess(b.Message)
	case diff < 0:
		printWarn(b.Message)
	default:
		printInfo(b.Message)
	}
}

func colorizeChange(v float64) string {
	text := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
