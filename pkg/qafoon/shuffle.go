package qafoon

import "math/rand"

// ShuffleMethod selects one of the supported shuffling algorithms. Hard
// is a uniform Fisher-Yates shuffle; the others imitate physical
// shuffles and deliberately mix less thoroughly.
type ShuffleMethod int

const (
	ShuffleHard ShuffleMethod = iota
	ShuffleRiffle
	ShuffleCut
	ShuffleOverhand
	ShuffleHindu
)

// Shuffle reorders cards in place using the given method and rng.
func Shuffle(cards []Card, method ShuffleMethod, rng *rand.Rand) {
	switch method {
	case ShuffleRiffle:
		riffleShuffle(cards, rng)
	case ShuffleCut:
		cutShuffle(cards, rng)
	case ShuffleOverhand:
		overhandShuffle(cards, rng)
	case ShuffleHindu:
		hinduShuffle(cards, rng)
	default:
		rng.Shuffle(len(cards), func(i, j int) {
			cards[i], cards[j] = cards[j], cards[i]
		})
	}
}

func riffleShuffle(cards []Card, rng *rand.Rand) {
	if len(cards) < 2 {
		return
	}
	iterations := 1 + rng.Intn(2)
	for it := 0; it < iterations; it++ {
		split := len(cards)/2 + rng.Intn(5) - 2
		if split < 1 {
			split = 1
		}
		if split > len(cards)-1 {
			split = len(cards) - 1
		}
		left := append([]Card(nil), cards[:split]...)
		right := append([]Card(nil), cards[split:]...)
		out := cards[:0]
		li, ri := 0, 0
		for li < len(left) || ri < len(right) {
			leftRemaining := len(left) - li
			rightRemaining := len(right) - ri
			if leftRemaining == 0 {
				out = append(out, right[ri:]...)
				break
			}
			if rightRemaining == 0 {
				out = append(out, left[li:]...)
				break
			}
			drop := 1 + rng.Intn(3)
			if rng.Float64() < float64(leftRemaining)/float64(leftRemaining+rightRemaining) {
				if drop > leftRemaining {
					drop = leftRemaining
				}
				out = append(out, left[li:li+drop]...)
				li += drop
			} else {
				if drop > rightRemaining {
					drop = rightRemaining
				}
				out = append(out, right[ri:ri+drop]...)
				ri += drop
			}
		}
	}
}

func cutShuffle(cards []Card, rng *rand.Rand) {
	if len(cards) < 2 {
		return
	}
	cut := 1 + rng.Intn(len(cards)-1)
	rotated := append([]Card(nil), cards[cut:]...)
	rotated = append(rotated, cards[:cut]...)
	copy(cards, rotated)
}

func overhandShuffle(cards []Card, rng *rand.Rand) {
	if len(cards) < 3 {
		return
	}
	iterations := 3 + rng.Intn(3)
	for it := 0; it < iterations; it++ {
		remaining := append([]Card(nil), cards...)
		shuffled := make([]Card, 0, len(cards))
		for len(remaining) > 0 {
			size := 1 + rng.Intn(min(5, len(remaining)))
			packet := remaining[len(remaining)-size:]
			remaining = remaining[:len(remaining)-size]
			shuffled = append(append([]Card(nil), packet...), shuffled...)
		}
		copy(cards, shuffled)
	}
}

func hinduShuffle(cards []Card, rng *rand.Rand) {
	if len(cards) < 3 {
		return
	}
	iterations := 3 + rng.Intn(4)
	for it := 0; it < iterations; it++ {
		remaining := append([]Card(nil), cards...)
		result := make([]Card, 0, len(cards))
		for len(remaining) > 0 {
			size := 2 + rng.Intn(min(5, len(remaining)))
			if size > len(remaining) {
				size = len(remaining)
			}
			packet := remaining[:size]
			remaining = remaining[size:]
			for i := len(packet) - 1; i >= 0; i-- {
				result = append(result, packet[i])
			}
			if len(remaining) > 0 && rng.Float64() < 0.3 {
				for i := len(remaining) - 1; i >= 0; i-- {
					result = append(result, remaining[i])
				}
				remaining = nil
			}
		}
		copy(cards, result)
	}
}
