package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"payday/internal/economy"
	"payday/internal/game"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
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

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderPlayer(v game.PlayerView) {
	accent.Printf("\n== %s ==\n", v.PlayerID)
	fmt.Printf("Funds:        %s coins\n", colorizeMicros(v.FundsMicros))
	if len(v.Achievements) > 0 {
		fmt.Printf("Achievements: %s\n", strings.Join(v.Achievements, ", "))
	}
	fmt.Println()
	renderBusinessList(v.Businesses)
}

func renderBusinessList(list []economy.Business) {
	accent.Println("Businesses")
	if len(list) == 0 {
		printInfo("No businesses yet.")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		rows = append(rows, []string{
			b.ID,
			string(b.Type),
			fmt.Sprintf("%.2f", b.Rating),
			fmt.Sprintf("%.0f", b.InventoryLevel),
			strconv.Itoa(len(b.Employees)),
			strconv.Itoa(len(b.Upgrades)),
			strconv.Itoa(len(b.Events)),
		})
	}
	fmt.Println(renderTable([]string{"ID", "TYPE", "RATING", "STOCK", "STAFF", "UPGRADES", "EVENTS"}, rows))
}

func renderBusiness(b economy.Business, now time.Time) {
	accent.Printf("\n== %s (%s) ==\n", b.ID, b.Type)
	fmt.Printf("Rating:     %.2f\n", b.Rating)
	fmt.Printf("Inventory:  %.1f\n", b.InventoryLevel)
	if b.LowInventoryStreak > 0 {
		printWarn(fmt.Sprintf("Low stock for %d day(s)", b.LowInventoryStreak))
	}
	if len(b.Employees) > 0 {
		fmt.Println()
		accent.Println("Staff")
		rows := make([][]string, 0, len(b.Employees))
		for _, e := range b.Employees {
			rows = append(rows, []string{e.ID, string(e.Type), e.HiredAt.Local().Format("2006-01-02")})
		}
		fmt.Println(renderTable([]string{"ID", "ROLE", "HIRED"}, rows))
	}
	if len(b.Upgrades) > 0 {
		fmt.Println()
		accent.Println("Upgrades")
		rows := make([][]string, 0, len(b.Upgrades))
		for _, u := range b.Upgrades {
			until := "permanent"
			if u.ExpiresAt != nil {
				until = u.ExpiresAt.Local().Format("2006-01-02")
			}
			state := "active"
			if !u.Active(now) {
				state = "expired"
			}
			rows = append(rows, []string{string(u.Type), until, state})
		}
		fmt.Println(renderTable([]string{"UPGRADE", "UNTIL", "STATE"}, rows))
	}
	if len(b.Events) > 0 {
		fmt.Println()
		accent.Println("Events")
		rows := make([][]string, 0, len(b.Events))
		for _, e := range b.Events {
			until := "until resolved"
			if e.ExpiresAt != nil {
				until = e.ExpiresAt.Local().Format("2006-01-02")
			}
			rows = append(rows, []string{e.ID, string(e.Type), string(e.Outcome), until})
		}
		fmt.Println(renderTable([]string{"ID", "EVENT", "OUTCOME", "UNTIL"}, rows))
	}
	fmt.Println()
}

func renderMutation(action string, out game.MutationResult) {
	printSuccess(fmt.Sprintf("%s: %s (%s)", action, out.Business.ID, out.Business.Type))
	if out.CostMicros != 0 {
		fmt.Printf("Cost:  %s coins\n", formatMicros(out.CostMicros))
	}
	fmt.Printf("Funds: %s coins\n", colorizeMicros(out.FundsMicros))
}

func renderTick(r game.TickReport) {
	accent.Printf("\n== DAY %s ==\n", r.TickAt.Local().Format("2006-01-02"))
	if len(r.Businesses) == 0 {
		printInfo("No businesses to run.")
		return
	}
	rows := make([][]string, 0, len(r.Businesses))
	for _, b := range r.Businesses {
		note := ""
		if b.Closed {
			note = "closed"
		}
		for _, ev := range b.NewEvents {
			note = strings.TrimSpace(note + " " + string(ev.Type) + "/" + string(ev.Outcome))
		}
		rows = append(rows, []string{
			b.BusinessID,
			formatMicros(b.RevenueMicros),
			formatMicros(b.ExpensesMicros),
			formatMicros(b.EventCostsMicros),
			colorizeMicros(b.NetProfitMicros),
			fmt.Sprintf("%.2f", b.Rating),
			fmt.Sprintf("%.0f", b.InventoryLevel),
			note,
		})
	}
	fmt.Println(renderTable([]string{"BUSINESS", "REVENUE", "EXPENSES", "EVENTS", "NET", "RATING", "STOCK", "NOTES"}, rows))
	fmt.Printf("Net:   %s coins\n", colorizeMicros(r.TotalNetProfitMicros))
	fmt.Printf("Funds: %s coins\n", colorizeMicros(r.FundsMicros))
	for _, a := range r.NewAchievements {
		printSuccess("Achievement unlocked: " + a)
	}
	fmt.Println()
}

func renderCatalog(c economy.TablesConfig) {
	accent.Println("\n== BUSINESSES ==")
	rows := make([][]string, 0, len(c.Businesses))
	for _, b := range c.Businesses {
		rows = append(rows, []string{string(b.Type), b.DisplayName, formatMicros(b.CostMicros), formatMicros(b.BaseRevenueMicros), formatMicros(b.BaseRentMicros), strconv.Itoa(b.MaxEmployees)})
	}
	fmt.Println(renderTable([]string{"TYPE", "NAME", "COST", "REVENUE/DAY", "RENT/DAY", "STAFF"}, rows))

	accent.Println("== EMPLOYEES ==")
	rows = rows[:0]
	for _, e := range c.Employees {
		rows = append(rows, []string{string(e.Type), formatMicros(e.SalaryMicros), fmt.Sprintf("x%.2f", e.RevenueMultiplier), fmt.Sprintf("%+.1f", e.RatingBonus)})
	}
	fmt.Println(renderTable([]string{"ROLE", "SALARY/DAY", "REVENUE", "RATING"}, rows))

	accent.Println("== UPGRADES ==")
	rows = rows[:0]
	for _, u := range c.Upgrades {
		duration := "permanent"
		if !u.Permanent() {
			duration = fmt.Sprintf("%d days", u.DurationDays)
		}
		rows = append(rows, []string{string(u.Type), formatMicros(u.CostMicros), fmt.Sprintf("x%.2f", u.RevenueMultiplier), duration})
	}
	fmt.Println(renderTable([]string{"UPGRADE", "COST", "REVENUE", "DURATION"}, rows))
	fmt.Printf("Restock: %s coins for +%.0f stock\n\n", formatMicros(c.Inventory.RestockCostMicros), c.Inventory.RestockAmount)
}

func colorizeMicros(v int64) string {
	text := signedMicros(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / economy.MicrosPerCoin
	frac := (v % economy.MicrosPerCoin) / 10_000
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedMicros(v int64) string {
	if v > 0 {
		return "+" + formatMicros(v)
	}
	return formatMicros(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
