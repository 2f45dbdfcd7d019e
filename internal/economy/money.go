package economy

import "math"

const MicrosPerCoin = int64(1_000_000)

func CoinsToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerCoin)))
}

func MicrosToCoins(v int64) float64 {
	return float64(v) / float64(MicrosPerCoin)
}

// RoundMicros converts an unrounded simulation amount into the stored unit.
func RoundMicros(v float64) int64 {
	return int64(math.Round(v))
}
