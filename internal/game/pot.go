package game

// CommissionPercent is the house cut taken from every settled pot.
const CommissionPercent = 3

type Pot struct {
	Total      int64 `json:"total"`
	Commission int64 `json:"commission"`
	Net        int64 `json:"net"`
}

func Commission(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total * CommissionPercent / 100
}

// Settle fixes the commission and the winner's net payout.
func (p *Pot) Settle() {
	p.Commission = Commission(p.Total)
	p.Net = p.Total - p.Commission
}
