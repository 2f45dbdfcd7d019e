package game

import (
	"time"

	"payday/internal/economy"
)

type BusinessReport struct {
	BusinessID           string                  `json:"business_id"`
	Type                 economy.BusinessType    `json:"type"`
	RevenueMicros        int64                   `json:"revenue_micros"`
	ExpensesMicros       int64                   `json:"expenses_micros"`
	EventCostsMicros     int64                   `json:"event_costs_micros"`
	NetProfitMicros      int64                   `json:"net_profit_micros"`
	InventoryLevel       float64                 `json:"inventory_level"`
	Rating               float64                 `json:"rating"`
	Closed               bool                    `json:"closed"`
	StreakPenaltyApplied bool                    `json:"streak_penalty_applied"`
	ExpiredUpgrades      []economy.UpgradeType   `json:"expired_upgrades,omitempty"`
	NewEvents            []economy.BusinessEvent `json:"new_events"`
}

type TickReport struct {
	PlayerID             string           `json:"player_id"`
	TickAt               time.Time        `json:"tick_at"`
	Businesses           []BusinessReport `json:"businesses"`
	TotalRevenueMicros   int64            `json:"total_revenue_micros"`
	TotalExpensesMicros  int64            `json:"total_expenses_micros"`
	TotalEventCostMicros int64            `json:"total_event_cost_micros"`
	TotalNetProfitMicros int64            `json:"total_net_profit_micros"`
	FundsMicros          int64            `json:"funds_micros"`
	NewAchievements      []string         `json:"new_achievements"`
}

type PlayerView struct {
	PlayerID     string             `json:"player_id"`
	FundsMicros  int64              `json:"funds_micros"`
	Businesses   []economy.Business `json:"businesses"`
	Achievements []string           `json:"achievements"`
}

type CreateBusinessInput struct {
	PlayerID       string
	Type           string
	IdempotencyKey string
}

type HireEmployeeInput struct {
	PlayerID       string
	BusinessID     string
	Type           string
	IdempotencyKey string
}

type FireEmployeeInput struct {
	PlayerID       string
	BusinessID     string
	EmployeeID     string
	IdempotencyKey string
}

type BuyInventoryInput struct {
	PlayerID       string
	BusinessID     string
	IdempotencyKey string
}

type PurchaseUpgradeInput struct {
	PlayerID       string
	BusinessID     string
	Type           string
	IdempotencyKey string
}

type SellBusinessInput struct {
	PlayerID       string
	BusinessID     string
	IdempotencyKey string
}

type ResolveEventInput struct {
	PlayerID       string
	BusinessID     string
	EventID        string
	IdempotencyKey string
}

type MutationResult struct {
	Business    economy.Business `json:"business"`
	CostMicros  int64            `json:"cost_micros"`
	FundsMicros int64            `json:"funds_micros"`
}

type SellResult struct {
	BusinessID   string `json:"business_id"`
	RefundMicros int64  `json:"refund_micros"`
	FundsMicros  int64  `json:"funds_micros"`
}
