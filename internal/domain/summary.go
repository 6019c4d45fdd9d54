package domain

// YearRange is the observed span of years in a table. Zero values mean empty.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Observe widens the range to include year.
func (r *YearRange) Observe(year int, first bool) {
	if first || year < r.Min {
		r.Min = year
	}
	if first || year > r.Max {
		r.Max = year
	}
}

// TidySummary reports what a tidier did to one wide table.
type TidySummary struct {
	Dataset        string    `json:"dataset"`
	Rows           int       `json:"rows"`
	YearColumns    int       `json:"yearColumns"`
	Candidates     int       `json:"candidates"`
	Emitted        int       `json:"emitted"`
	DroppedMissing int       `json:"droppedMissing"`
	DroppedWindow  int       `json:"droppedWindow"`
	SkippedColumns []string  `json:"skippedColumns"`
	Entities       int       `json:"entities"`
	Years          YearRange `json:"years"`
}

// MergeSummary reports join cardinalities.
type MergeSummary struct {
	MortalityRows int       `json:"mortalityRows"`
	GDPRows       int       `json:"gdpRows"`
	Matched       int       `json:"matched"`
	MortalityOnly int       `json:"mortalityOnly"`
	GDPOnly       int       `json:"gdpOnly"`
	Unnamed       []string  `json:"unnamed"`
	Excluded      int       `json:"excluded"`
	Emitted       int       `json:"emitted"`
	Entities      int       `json:"entities"`
	Years         YearRange `json:"years"`
	// EmptyJoin is set when both inputs had rows and none were emitted.
	EmptyJoin     bool      `json:"emptyJoin"`
}
