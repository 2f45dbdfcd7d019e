package economy

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type BusinessSpec struct {
	Type              BusinessType `yaml:"type" json:"type"`
	DisplayName       string       `yaml:"display_name" json:"display_name"`
	CostMicros        int64        `yaml:"cost_micros" json:"cost_micros"`
	BaseRevenueMicros int64        `yaml:"base_revenue_micros" json:"base_revenue_micros"`
	BaseRentMicros    int64        `yaml:"base_rent_micros" json:"base_rent_micros"`
	MaxEmployees      int          `yaml:"max_employees" json:"max_employees"`
}

type EmployeeSpec struct {
	Type              EmployeeType `yaml:"type" json:"type"`
	DisplayName       string       `yaml:"display_name" json:"display_name"`
	SalaryMicros      int64        `yaml:"salary_micros" json:"salary_micros"`
	RevenueMultiplier float64      `yaml:"revenue_multiplier" json:"revenue_multiplier"`
	RatingBonus       float64      `yaml:"rating_bonus" json:"rating_bonus"`
}

type UpgradeSpec struct {
	Type              UpgradeType `yaml:"type" json:"type"`
	DisplayName       string      `yaml:"display_name" json:"display_name"`
	CostMicros        int64       `yaml:"cost_micros" json:"cost_micros"`
	RevenueMultiplier float64     `yaml:"revenue_multiplier" json:"revenue_multiplier"`
	RatingBonus       float64     `yaml:"rating_bonus" json:"rating_bonus"`
	DurationDays      int         `yaml:"duration_days" json:"duration_days"` // 0 = permanent
}

func (s UpgradeSpec) Permanent() bool {
	return s.DurationDays <= 0
}

type OutcomeSpec struct {
	Outcome           EventOutcome `yaml:"outcome" json:"outcome"`
	Weight            float64      `yaml:"weight" json:"weight"`
	RevenueMultiplier float64      `yaml:"revenue_multiplier" json:"revenue_multiplier"`
	CostMicros        int64        `yaml:"cost_micros" json:"cost_micros"`
	RatingDelta       float64      `yaml:"rating_delta" json:"rating_delta"`
	DurationDays      int          `yaml:"duration_days" json:"duration_days"`
	RepairCostMicros  int64        `yaml:"repair_cost_micros" json:"repair_cost_micros"`
}

func (s OutcomeSpec) Closure() bool {
	return s.Outcome == OutcomeClosure
}

func (s OutcomeSpec) RequiresAction() bool {
	return s.Outcome == OutcomeRequiresRepair
}

// Expiry is nil for outcomes that wait for the player; zero-duration
// outcomes expire at the moment they trigger.
func (s OutcomeSpec) Expiry(triggeredAt time.Time) *time.Time {
	if s.RequiresAction() {
		return nil
	}
	at := triggeredAt.Add(time.Duration(s.DurationDays) * Day)
	return &at
}

type EventSpec struct {
	Type        EventType     `yaml:"type" json:"type"`
	DisplayName string        `yaml:"display_name" json:"display_name"`
	Probability float64       `yaml:"probability" json:"probability"`
	Outcomes    []OutcomeSpec `yaml:"outcomes" json:"outcomes"`
}

func (s EventSpec) Outcome(o EventOutcome) (OutcomeSpec, bool) {
	for _, spec := range s.Outcomes {
		if spec.Outcome == o {
			return spec, true
		}
	}
	return OutcomeSpec{}, false
}

type InventorySpec struct {
	RestockCostMicros   int64   `yaml:"restock_cost_micros" json:"restock_cost_micros"`
	RestockAmount       float64 `yaml:"restock_amount" json:"restock_amount"`
	LowThreshold        float64 `yaml:"low_threshold" json:"low_threshold"`
	DecayFactor         float64 `yaml:"decay_factor" json:"decay_factor"`
	LowStockPenalty     float64 `yaml:"low_stock_penalty" json:"low_stock_penalty"`
	PenaltyStreakDays   int     `yaml:"penalty_streak_days" json:"penalty_streak_days"`
	StreakRatingPenalty float64 `yaml:"streak_rating_penalty" json:"streak_rating_penalty"`
}

type AchievementSpec struct {
	BusinessmanNetProfitMicros int64        `yaml:"businessman_net_profit_micros" json:"businessman_net_profit_micros"`
	TycoonBusinessType         BusinessType `yaml:"tycoon_business_type" json:"tycoon_business_type"`
}

// TablesConfig is the serializable form of the economy tables.
type TablesConfig struct {
	Businesses      []BusinessSpec  `yaml:"businesses" json:"businesses"`
	Employees       []EmployeeSpec  `yaml:"employees" json:"employees"`
	Upgrades        []UpgradeSpec   `yaml:"upgrades" json:"upgrades"`
	Events          []EventSpec     `yaml:"events" json:"events"`
	Inventory       InventorySpec   `yaml:"inventory" json:"inventory"`
	Achievements    AchievementSpec `yaml:"achievements" json:"achievements"`
	SellRefundRatio float64         `yaml:"sell_refund_ratio" json:"sell_refund_ratio"`
}

func coins(v int64) int64 { return v * MicrosPerCoin }

func DefaultTablesConfig() TablesConfig {
	return TablesConfig{
		Businesses: []BusinessSpec{
			{Type: Kiosk, DisplayName: "Shawarma Kiosk", CostMicros: coins(50_000), BaseRevenueMicros: coins(8_000), BaseRentMicros: coins(2_000), MaxEmployees: 2},
			{Type: Cafe, DisplayName: "Cafe", CostMicros: coins(300_000), BaseRevenueMicros: coins(40_000), BaseRentMicros: coins(10_000), MaxEmployees: 4},
			{Type: Restaurant, DisplayName: "Restaurant", CostMicros: coins(1_000_000), BaseRevenueMicros: coins(150_000), BaseRentMicros: coins(30_000), MaxEmployees: 6},
			{Type: RestaurantChain, DisplayName: "Restaurant Chain", CostMicros: coins(5_000_000), BaseRevenueMicros: coins(800_000), BaseRentMicros: coins(150_000), MaxEmployees: 10},
		},
		Employees: []EmployeeSpec{
			{Type: Chef, DisplayName: "Chef", SalaryMicros: coins(5_000), RevenueMultiplier: 1.0, RatingBonus: 0.5},
			{Type: Cashier, DisplayName: "Cashier", SalaryMicros: coins(3_000), RevenueMultiplier: 1.0},
			{Type: Manager, DisplayName: "Manager", SalaryMicros: coins(8_000), RevenueMultiplier: 1.25},
		},
		Upgrades: []UpgradeSpec{
			{Type: NewMenu, DisplayName: "New Menu", CostMicros: coins(50_000), RevenueMultiplier: 1.30},
			{Type: Delivery, DisplayName: "Delivery", CostMicros: coins(80_000), RevenueMultiplier: 1.50},
			{Type: Renovation, DisplayName: "Renovation", CostMicros: coins(100_000), RevenueMultiplier: 1.0, RatingBonus: 1.0},
			{Type: Advertising, DisplayName: "Advertising", CostMicros: coins(30_000), RevenueMultiplier: 1.20, DurationDays: 7},
		},
		Events: []EventSpec{
			{Type: HealthInspection, DisplayName: "Health Inspection", Probability: 0.05, Outcomes: []OutcomeSpec{
				{Outcome: OutcomeFine, Weight: 0.7, RevenueMultiplier: 1.0, CostMicros: coins(50_000), RatingDelta: -1.0},
				{Outcome: OutcomeClosure, Weight: 0.3, RevenueMultiplier: 0.0, DurationDays: 2},
			}},
			{Type: CompetitorOpens, DisplayName: "Competitor Opens", Probability: 0.03, Outcomes: []OutcomeSpec{
				{Outcome: OutcomeRevenuePenalty, Weight: 1.0, RevenueMultiplier: 0.80, DurationDays: 14},
			}},
			{Type: ViralPost, DisplayName: "Viral Post", Probability: 0.02, Outcomes: []OutcomeSpec{
				{Outcome: OutcomeRevenueBoost, Weight: 1.0, RevenueMultiplier: 1.50, DurationDays: 3},
			}},
			{Type: EquipmentBreakdown, DisplayName: "Equipment Breakdown", Probability: 0.04, Outcomes: []OutcomeSpec{
				{Outcome: OutcomeRequiresRepair, Weight: 1.0, RevenueMultiplier: 0.70, RepairCostMicros: coins(20_000)},
			}},
		},
		Inventory: InventorySpec{
			RestockCostMicros:   coins(5_000),
			RestockAmount:       50,
			LowThreshold:        20,
			DecayFactor:         0.9,
			LowStockPenalty:     0.5,
			PenaltyStreakDays:   3,
			StreakRatingPenalty: 0.5,
		},
		Achievements: AchievementSpec{
			BusinessmanNetProfitMicros: coins(100_000),
			TycoonBusinessType:         RestaurantChain,
		},
		SellRefundRatio: 0.5,
	}
}

// Tables holds the immutable economy lookup tables. The zero value is not
// usable; build one with NewTables, DefaultTables or LoadTables.
type Tables struct {
	businesses map[BusinessType]BusinessSpec
	employees  map[EmployeeType]EmployeeSpec
	upgrades   map[UpgradeType]UpgradeSpec
	events     map[EventType]EventSpec

	// roll order must be stable for seeded runs to be reproducible
	eventOrder []EventType

	inventory    InventorySpec
	achievements AchievementSpec
	refundRatio  float64
	config       TablesConfig
}

func DefaultTables() *Tables {
	t, err := NewTables(DefaultTablesConfig())
	if err != nil {
		panic(fmt.Sprintf("default economy tables invalid: %v", err))
	}
	return t
}

// LoadTables reads a YAML file on top of the defaults. A list section
// present in the file (businesses, employees, upgrades or events) replaces
// the default list wholesale. The inventory and achievements sections merge
// field by field, so a file can change one knob and keep the rest.
func LoadTables(path string) (*Tables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultTablesConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("economy tables %s: %w", path, err)
	}
	return NewTables(cfg)
}

func NewTables(cfg TablesConfig) (*Tables, error) {
	t := &Tables{
		businesses:   make(map[BusinessType]BusinessSpec, len(cfg.Businesses)),
		employees:    make(map[EmployeeType]EmployeeSpec, len(cfg.Employees)),
		upgrades:     make(map[UpgradeType]UpgradeSpec, len(cfg.Upgrades)),
		events:       make(map[EventType]EventSpec, len(cfg.Events)),
		inventory:    cfg.Inventory,
		achievements: cfg.Achievements,
		refundRatio:  cfg.SellRefundRatio,
	}
	for _, b := range cfg.Businesses {
		if _, err := ParseBusinessType(string(b.Type)); err != nil {
			return nil, err
		}
		if b.MaxEmployees < 0 || b.CostMicros < 0 {
			return nil, fmt.Errorf("business %s: negative cost or capacity", b.Type)
		}
		t.businesses[b.Type] = b
	}
	for _, e := range cfg.Employees {
		if _, err := ParseEmployeeType(string(e.Type)); err != nil {
			return nil, err
		}
		t.employees[e.Type] = e
	}
	for _, u := range cfg.Upgrades {
		if _, err := ParseUpgradeType(string(u.Type)); err != nil {
			return nil, err
		}
		t.upgrades[u.Type] = u
	}
	for _, ev := range cfg.Events {
		if _, err := ParseEventType(string(ev.Type)); err != nil {
			return nil, err
		}
		if ev.Probability < 0 || ev.Probability > 1 {
			return nil, fmt.Errorf("event %s: probability %.4f outside [0,1]", ev.Type, ev.Probability)
		}
		if len(ev.Outcomes) == 0 {
			return nil, fmt.Errorf("event %s: no outcomes", ev.Type)
		}
		total := 0.0
		for _, o := range ev.Outcomes {
			if _, err := ParseEventOutcome(string(o.Outcome)); err != nil {
				return nil, err
			}
			if o.Weight < 0 {
				return nil, fmt.Errorf("event %s: negative weight for %s", ev.Type, o.Outcome)
			}
			total += o.Weight
		}
		if math.Abs(total-1.0) > 1e-9 {
			return nil, fmt.Errorf("event %s: outcome weights sum to %.6f, want 1.0", ev.Type, total)
		}
		ev.Outcomes = append([]OutcomeSpec(nil), ev.Outcomes...)
		if _, dup := t.events[ev.Type]; !dup {
			t.eventOrder = append(t.eventOrder, ev.Type)
		}
		t.events[ev.Type] = ev
	}
	if t.refundRatio < 0 || t.refundRatio > 1 {
		return nil, fmt.Errorf("sell refund ratio %.4f outside [0,1]", t.refundRatio)
	}
	if t.inventory.DecayFactor < 0 || t.inventory.DecayFactor > 1 {
		return nil, fmt.Errorf("inventory decay factor %.4f outside [0,1]", t.inventory.DecayFactor)
	}
	t.config = cloneConfig(cfg)
	return t, nil
}

func (t *Tables) Business(bt BusinessType) (BusinessSpec, bool) {
	s, ok := t.businesses[bt]
	return s, ok
}

func (t *Tables) Employee(et EmployeeType) (EmployeeSpec, bool) {
	s, ok := t.employees[et]
	return s, ok
}

func (t *Tables) Upgrade(ut UpgradeType) (UpgradeSpec, bool) {
	s, ok := t.upgrades[ut]
	return s, ok
}

func (t *Tables) Event(et EventType) (EventSpec, bool) {
	s, ok := t.events[et]
	if !ok {
		return EventSpec{}, false
	}
	s.Outcomes = append([]OutcomeSpec(nil), s.Outcomes...)
	return s, true
}

func (t *Tables) EventTypes() []EventType {
	return append([]EventType(nil), t.eventOrder...)
}

func (t *Tables) Inventory() InventorySpec {
	return t.inventory
}

func (t *Tables) Achievements() AchievementSpec {
	return t.achievements
}

func (t *Tables) SellRefundRatio() float64 {
	return t.refundRatio
}

// Config returns a copy of the tables in their serializable form.
func (t *Tables) Config() TablesConfig {
	return cloneConfig(t.config)
}

func cloneConfig(cfg TablesConfig) TablesConfig {
	out := cfg
	out.Businesses = append([]BusinessSpec(nil), cfg.Businesses...)
	out.Employees = append([]EmployeeSpec(nil), cfg.Employees...)
	out.Upgrades = append([]UpgradeSpec(nil), cfg.Upgrades...)
	out.Events = make([]EventSpec, len(cfg.Events))
	for i, ev := range cfg.Events {
		out.Events[i] = ev
		out.Events[i].Outcomes = append([]OutcomeSpec(nil), ev.Outcomes...)
	}
	return out
}
