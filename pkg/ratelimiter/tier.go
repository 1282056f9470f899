package ratelimiter

// Tier is one row of the warm-up rate tier schedule.
type Tier struct {
	Label     string
	PerDay    int
	PerHour   int
	PerMinute int
}

// TierRow pairs a Tier with the minimum account age it applies from, used
// for config-driven overrides (the `rate_tiers` option).
type TierRow struct {
	MinAgeDays int
	Tier       Tier
}

// DefaultTiers is the static table from the data model, ordered by
// ascending MinAgeDays.
var DefaultTiers = []TierRow{
	{MinAgeDays: 0, Tier: Tier{Label: "New", PerDay: 50, PerHour: 10, PerMinute: 2}},
	{MinAgeDays: 4, Tier: Tier{Label: "Warming", PerDay: 100, PerHour: 20, PerMinute: 5}},
	{MinAgeDays: 8, Tier: Tier{Label: "Growing", PerDay: 200, PerHour: 40, PerMinute: 10}},
	{MinAgeDays: 15, Tier: Tier{Label: "Established", PerDay: 400, PerHour: 80, PerMinute: 20}},
	{MinAgeDays: 31, Tier: Tier{Label: "Mature", PerDay: 1000, PerHour: 200, PerMinute: 50}},
}

// TierTable resolves an account_age_days to its Tier. Rows must be sorted
// ascending by MinAgeDays; negative ages clamp to the first (most
// restrictive) row.
type TierTable struct {
	rows []TierRow
}

// NewTierTable builds a TierTable from rows, sorted ascending by
// MinAgeDays. Falls back to DefaultTiers if rows is empty.
func NewTierTable(rows []TierRow) TierTable {
	if len(rows) == 0 {
		rows = DefaultTiers
	}
	sorted := make([]TierRow, len(rows))
	copy(sorted, rows)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].MinAgeDays < sorted[j-1].MinAgeDays; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return TierTable{rows: sorted}
}

// Resolve returns the Tier for accountAgeDays, clamping negative ages to
// the most restrictive (first) row.
func (t TierTable) Resolve(accountAgeDays int) Tier {
	if accountAgeDays < 0 {
		accountAgeDays = 0
	}
	tier := t.rows[0].Tier
	for _, row := range t.rows {
		if accountAgeDays >= row.MinAgeDays {
			tier = row.Tier
		} else {
			break
		}
	}
	return tier
}
