package game

import (
	"errors"
	"regexp"
	"strings"

	"payday/internal/economy"
	"payday/internal/store"
)

const (
	StarterFundsMicros = int64(100_000) * economy.MicrosPerCoin

	AchievementBusinessman = "businessman"
	AchievementTycoon      = "tycoon"
)

var (
	ErrInsufficientFunds    = economy.ErrInsufficientFunds
	ErrCapacityExceeded     = economy.ErrCapacityExceeded
	ErrDuplicateUpgrade     = economy.ErrDuplicateUpgrade
	ErrInvalidEnumValue     = economy.ErrInvalidEnumValue
	ErrUnauthorized         = economy.ErrUnauthorized
	ErrEventNotResolvable   = economy.ErrEventNotResolvable
	ErrNotFound             = economy.ErrNotFound
	ErrBusinessNotFound     = economy.ErrBusinessNotFound
	ErrEmployeeNotFound     = economy.ErrEmployeeNotFound
	ErrEventNotFound        = economy.ErrEventNotFound
	ErrPersistence          = store.ErrPersistence
	ErrDuplicateIdempotency = store.ErrDuplicateIdempotency

	ErrTickAlreadyApplied = errors.New("tick already applied for this day")
)

var playerIDRE = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,64}$`)

func ValidatePlayerID(id string) error {
	if !playerIDRE.MatchString(strings.TrimSpace(id)) {
		return ErrUnauthorized
	}
	return nil
}
