package economy

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	MinRating     = 1.0
	MaxRating     = 5.0
	DefaultRating = 3.0

	MinInventory = 0.0
	MaxInventory = 100.0

	Day = 24 * time.Hour
)

type BusinessType string

const (
	Kiosk           BusinessType = "kiosk"
	Cafe            BusinessType = "cafe"
	Restaurant      BusinessType = "restaurant"
	RestaurantChain BusinessType = "restaurant_chain"
)

type EmployeeType string

const (
	Chef    EmployeeType = "chef"
	Cashier EmployeeType = "cashier"
	Manager EmployeeType = "manager"
)

type UpgradeType string

const (
	NewMenu     UpgradeType = "new_menu"
	Delivery    UpgradeType = "delivery"
	Renovation  UpgradeType = "renovation"
	Advertising UpgradeType = "advertising"
)

type EventType string

const (
	HealthInspection   EventType = "health_inspection"
	CompetitorOpens    EventType = "competitor_opens"
	ViralPost          EventType = "viral_post"
	EquipmentBreakdown EventType = "equipment_breakdown"
)

type EventOutcome string

const (
	OutcomeFine           EventOutcome = "fine"
	OutcomeClosure        EventOutcome = "closure"
	OutcomeRevenueBoost   EventOutcome = "revenue_boost"
	OutcomeRevenuePenalty EventOutcome = "revenue_penalty"
	OutcomeRequiresRepair EventOutcome = "requires_repair"
)

func ParseBusinessType(s string) (BusinessType, error) {
	switch v := BusinessType(normalizeEnum(s)); v {
	case Kiosk, Cafe, Restaurant, RestaurantChain:
		return v, nil
	}
	return "", fmt.Errorf("%w: business type %q", ErrInvalidEnumValue, s)
}

func ParseEmployeeType(s string) (EmployeeType, error) {
	switch v := EmployeeType(normalizeEnum(s)); v {
	case Chef, Cashier, Manager:
		return v, nil
	}
	return "", fmt.Errorf("%w: employee type %q", ErrInvalidEnumValue, s)
}

func ParseUpgradeType(s string) (UpgradeType, error) {
	switch v := UpgradeType(normalizeEnum(s)); v {
	case NewMenu, Delivery, Renovation, Advertising:
		return v, nil
	}
	return "", fmt.Errorf("%w: upgrade type %q", ErrInvalidEnumValue, s)
}

func ParseEventType(s string) (EventType, error) {
	switch v := EventType(normalizeEnum(s)); v {
	case HealthInspection, CompetitorOpens, ViralPost, EquipmentBreakdown:
		return v, nil
	}
	return "", fmt.Errorf("%w: event type %q", ErrInvalidEnumValue, s)
}

func ParseEventOutcome(s string) (EventOutcome, error) {
	switch v := EventOutcome(normalizeEnum(s)); v {
	case OutcomeFine, OutcomeClosure, OutcomeRevenueBoost, OutcomeRevenuePenalty, OutcomeRequiresRepair:
		return v, nil
	}
	return "", fmt.Errorf("%w: event outcome %q", ErrInvalidEnumValue, s)
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type Employee struct {
	ID      string       `json:"id"`
	Type    EmployeeType `json:"type"`
	HiredAt time.Time    `json:"hired_at"`
}

type Upgrade struct {
	Type        UpgradeType `json:"type"`
	PurchasedAt time.Time   `json:"purchased_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	Expired     bool        `json:"expired"`
}

func (u Upgrade) Permanent() bool {
	return u.ExpiresAt == nil
}

// Active reports whether the upgrade still contributes at now.
func (u Upgrade) Active(now time.Time) bool {
	if u.Expired {
		return false
	}
	return u.ExpiresAt == nil || now.Before(*u.ExpiresAt)
}

type BusinessEvent struct {
	ID          string       `json:"id"`
	Type        EventType    `json:"type"`
	Outcome     EventOutcome `json:"outcome"`
	TriggeredAt time.Time    `json:"triggered_at"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Resolved    bool         `json:"resolved"`
}

// Active reports whether the event still applies its effect at now.
func (e BusinessEvent) Active(now time.Time) bool {
	if e.Resolved {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

func (e BusinessEvent) RequiresAction() bool {
	return e.Outcome == OutcomeRequiresRepair
}

type Business struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Type               BusinessType    `json:"type"`
	CreatedAt          time.Time       `json:"created_at"`
	InventoryLevel     float64         `json:"inventory_level"`
	Rating             float64         `json:"rating"`
	LowInventoryStreak int             `json:"low_inventory_streak_days"`
	Employees          []Employee      `json:"employees"`
	Upgrades           []Upgrade       `json:"upgrades"`
	Events             []BusinessEvent `json:"events"`
}

// Stamp normalizes a timestamp to UTC at microsecond precision, the finest
// resolution every store keeps.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func NewBusiness(id, ownerID string, t BusinessType, now time.Time) Business {
	return Business{
		ID:             id,
		OwnerID:        ownerID,
		Type:           t,
		CreatedAt:      Stamp(now),
		InventoryLevel: MaxInventory,
		Rating:         DefaultRating,
		Employees:      []Employee{},
		Upgrades:       []Upgrade{},
		Events:         []BusinessEvent{},
	}
}

// Clone returns a deep copy so callers can mutate a snapshot without
// touching the original.
func (b Business) Clone() Business {
	out := b
	out.Employees = append([]Employee(nil), b.Employees...)
	out.Upgrades = make([]Upgrade, len(b.Upgrades))
	for i, u := range b.Upgrades {
		out.Upgrades[i] = u
		out.Upgrades[i].ExpiresAt = cloneTime(u.ExpiresAt)
	}
	out.Events = make([]BusinessEvent, len(b.Events))
	for i, e := range b.Events {
		out.Events[i] = e
		out.Events[i].ExpiresAt = cloneTime(e.ExpiresAt)
	}
	if out.Employees == nil {
		out.Employees = []Employee{}
	}
	return out
}

func (b *Business) AdjustRating(delta float64) {
	b.Rating = ClampRating(b.Rating + delta)
}

func (b *Business) SetInventory(level float64) {
	b.InventoryLevel = ClampInventory(level)
}

func (b Business) Employee(id string) (Employee, int, bool) {
	for i, e := range b.Employees {
		if e.ID == id {
			return e, i, true
		}
	}
	return Employee{}, -1, false
}

func (b Business) Event(id string) (BusinessEvent, int, bool) {
	for i, e := range b.Events {
		if e.ID == id {
			return e, i, true
		}
	}
	return BusinessEvent{}, -1, false
}

// HasActiveEvent reports whether an unresolved event of type t is still live.
func (b Business) HasActiveEvent(t EventType, now time.Time) bool {
	for _, e := range b.Events {
		if e.Type == t && e.Active(now) {
			return true
		}
	}
	return false
}

func ClampRating(v float64) float64 {
	return clamp(v, MinRating, MaxRating)
}

func ClampInventory(v float64) float64 {
	return clamp(v, MinInventory, MaxInventory)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
