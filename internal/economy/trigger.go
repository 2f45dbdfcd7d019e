package economy

import (
	"time"

	"github.com/google/uuid"
)

// RollEvents draws once per configured event type and records every event
// that fires on b. A type that already has a live unresolved event on b is
// skipped without consuming a draw. Rating penalties of the chosen outcomes
// are applied immediately.
func (t *Tables) RollEvents(b *Business, src Source, now time.Time) []BusinessEvent {
	var fired []BusinessEvent
	for _, et := range t.eventOrder {
		spec := t.events[et]
		if b.HasActiveEvent(et, now) {
			continue
		}
		if src.Float64() >= spec.Probability {
			continue
		}
		outcome := spec.Outcomes[0]
		if len(spec.Outcomes) > 1 {
			weights := make([]float64, len(spec.Outcomes))
			for i, o := range spec.Outcomes {
				weights[i] = o.Weight
			}
			if idx := WeightedChoice(src, weights); idx >= 0 {
				outcome = spec.Outcomes[idx]
			}
		}
		ev := BusinessEvent{
			ID:          uuid.NewString(),
			Type:        et,
			Outcome:     outcome.Outcome,
			TriggeredAt: now,
			ExpiresAt:   outcome.Expiry(now),
		}
		if outcome.RatingDelta != 0 {
			b.AdjustRating(outcome.RatingDelta)
		}
		b.Events = append(b.Events, ev)
		fired = append(fired, ev)
	}
	return fired
}
