package game

import (
	"encoding/json"
	"sort"
	"strconv"
)

type Category int

const (
	HighCard Category = iota
	Pair
	Color
	Sequence
	PureSequence
	Trail
)

func (c Category) String() string {
	switch c {
	case Trail:
		return "trail"
	case PureSequence:
		return "pure_sequence"
	case Sequence:
		return "sequence"
	case Color:
		return "color"
	case Pair:
		return "pair"
	default:
		return "high_card"
	}
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// HandEvaluation ranks a three-card hand. Primary is the first tie-break and
// Values holds the remaining ones in comparison order.
type HandEvaluation struct {
	Category    Category `json:"category"`
	Primary     int      `json:"primary"`
	Values      []int    `json:"values"`
	Description string   `json:"description"`
}

func (h HandEvaluation) BetterThan(o HandEvaluation) bool {
	return Compare(h, o) > 0
}

func Compare(a, b HandEvaluation) int {
	if a.Category != b.Category {
		return cmpInt(int(a.Category), int(b.Category))
	}
	if a.Primary != b.Primary {
		return cmpInt(a.Primary, b.Primary)
	}
	for i := 0; i < len(a.Values) && i < len(b.Values); i++ {
		if a.Values[i] != b.Values[i] {
			return cmpInt(a.Values[i], b.Values[i])
		}
	}
	return cmpInt(len(a.Values), len(b.Values))
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func Evaluate(h Hand) HandEvaluation {
	values := []int{int(h[0].Rank), int(h[1].Rank), int(h[2].Rank)}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	flush := h[0].Suit == h[1].Suit && h[1].Suit == h[2].Suit
	run, runValues := straightValues(values)

	switch {
	case values[0] == values[1] && values[1] == values[2]:
		return HandEvaluation{
			Category:    Trail,
			Primary:     values[0],
			Values:      []int{values[0]},
			Description: "Trail of " + rankName(values[0]) + "s",
		}
	case run && flush:
		return HandEvaluation{Category: PureSequence, Primary: runValues[0], Values: runValues, Description: "Pure Sequence"}
	case run:
		return HandEvaluation{Category: Sequence, Primary: runValues[0], Values: runValues, Description: "Sequence"}
	case flush:
		return HandEvaluation{Category: Color, Primary: values[0], Values: values, Description: "Color"}
	case values[0] == values[1] || values[1] == values[2]:
		pair, kicker := values[1], values[2]
		if values[1] == values[2] {
			kicker = values[0]
		}
		return HandEvaluation{
			Category:    Pair,
			Primary:     pair,
			Values:      []int{pair, kicker},
			Description: "Pair of " + rankName(pair) + "s",
		}
	default:
		return HandEvaluation{Category: HighCard, Primary: values[0], Values: values, Description: rankName(values[0]) + " High"}
	}
}

// straightValues reports whether the descending ranks form a run. A-3-2 is
// the only wrap-around run and plays with the Ace low.
func straightValues(values []int) (bool, []int) {
	if values[0] == int(Ace) && values[1] == int(Three) && values[2] == int(Two) {
		return true, []int{3, 2, 1}
	}
	if values[0]-values[1] == 1 && values[1]-values[2] == 1 {
		return true, []int{values[0], values[1], values[2]}
	}
	return false, nil
}

func rankName(v int) string {
	switch Rank(v) {
	case Ace:
		return "Ace"
	case King:
		return "King"
	case Queen:
		return "Queen"
	case Jack:
		return "Jack"
	default:
		return strconv.Itoa(v)
	}
}

// FindWinner returns the index of the best hand. The first-seen hand wins a
// tie.
func FindWinner(hands []Hand) (int, HandEvaluation) {
	best := -1
	var bestEval HandEvaluation
	for i, h := range hands {
		ev := Evaluate(h)
		if best < 0 || ev.BetterThan(bestEval) {
			best = i
			bestEval = ev
		}
	}
	return best, bestEval
}
