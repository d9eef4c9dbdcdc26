package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/flub/pool-engine/internal/model"
)

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "warning: cannot render markdown: %v\n", err)
	fmt.Print(md)
}

// formatUSD formats v as dollars, rounded to cents.
func formatUSD(v decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	factor := decimal.New(1, int32(cur.Fraction))
	return money.New(v.Mul(factor).Round(0).IntPart(), money.USD).Display()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func statsMarkdown(s *model.AdminStats) string {
	var b strings.Builder
	b.WriteString("# Pool statistics\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Pool value | %s |\n", formatUSD(s.PoolValue))
	fmt.Fprintf(&b, "| NAV | %s |\n", s.NAV.StringFixed(6))
	fmt.Fprintf(&b, "| Total shares | %s |\n", s.TotalShares.StringFixed(2))
	fmt.Fprintf(&b, "| Users | %d |\n", s.UserCount)
	fmt.Fprintf(&b, "| Deposited | %s |\n", formatUSD(s.TotalUserDeposited))
	fmt.Fprintf(&b, "| Current value | %s |\n", formatUSD(s.TotalUserValue))
	fmt.Fprintf(&b, "| P&L | %s%% |\n", s.PnLPercent.StringFixed(2))
	b.WriteString("\n## Activity\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Deposits | %d |\n", s.DepositCount)
	fmt.Fprintf(&b, "| Trades | %d |\n", s.TradeCount)
	fmt.Fprintf(&b, "| Withdrawals | %d |\n", s.WithdrawalCount)
	if s.LastDeposit != nil {
		fmt.Fprintf(&b, "| Last deposit | %s by %s at %s |\n", formatUSD(s.LastDepositAmount), s.LastDepositWallet, formatTime(s.LastDeposit))
	} else {
		b.WriteString("| Last deposit | never |\n")
	}
	fmt.Fprintf(&b, "| Last user joined | %s |\n", formatTime(s.LastUserJoined))
	return b.String()
}

func leaderboardMarkdown(board []model.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("# Leaderboard\n\n")
	if len(board) == 0 {
		b.WriteString("No participants yet.\n")
		return b.String()
	}
	b.WriteString("| # | Wallet | Value | Deposited | Allocation |\n")
	b.WriteString("|---:|---|---:|---:|---:|\n")
	for _, e := range board {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s%% |\n",
			e.Rank, e.WalletShort, formatUSD(e.CurrentValue), formatUSD(e.TotalDeposited), e.Allocation.StringFixed(2))
	}
	return b.String()
}

func auditMarkdown(a *model.ShareAudit) string {
	var b strings.Builder
	b.WriteString("# Share audit\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Total shares | %s |\n", a.TotalShares.StringFixed(6))
	fmt.Fprintf(&b, "| User shares | %s |\n", a.UserShares.StringFixed(6))
	fmt.Fprintf(&b, "| Unattributed | %s |\n", a.Unattributed.StringFixed(6))
	fmt.Fprintf(&b, "| Allocation sum | %s%% |\n", a.AllocationSum.StringFixed(4))
	fmt.Fprintf(&b, "| Holders | %d |\n", a.ActiveHolders)
	if a.Unattributed.IsNegative() {
		b.WriteString("\n**Users hold more shares than the pool has issued.**\n")
	}
	return b.String()
}

// selectPath evaluates a JSONPath expression against the trader state.
func selectPath(state model.TraderState, path string) (any, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", path, err)
	}
	return v, nil
}
