package model

// AnalysisResult is the per-dataset artifact handed to the presentation layer.
type AnalysisResult struct {
	Centers     Centers            `json:"centers"`
	Spread      Spread             `json:"spread"`
	Qualitative Qualitative        `json:"qualitative_analysis"`
	Averages    map[string]float64 `json:"averages"`
}

type Centers struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Mode   float64 `json:"mode"`
}

// Spread holds dispersion statistics. StdDev and Variance are nil when fewer
// than two values were available.
type Spread struct {
	Range    float64  `json:"range"`
	StdDev   *float64 `json:"std_dev"`
	Variance *float64 `json:"variance"`
}

type Qualitative struct {
	LeagueCount  int    `json:"league_count"`
	EarliestDate string `json:"earliest_date"`
	LatestDate   string `json:"latest_date"`
}

// Analysis wraps a result with where it was stored and what it was computed from.
type Analysis struct {
	Dataset  string         `json:"dataset"`
	Location string         `json:"location"`
	Samples  int            `json:"samples"`
	Excluded int            `json:"excluded_rows"`
	Result   AnalysisResult `json:"result"`
	// Groups holds the averages with Get and Pay kept apart, sorted by both.
	Groups []GroupAverage `json:"-"`
}

// GroupAverage is the mean Value of one (Get, Pay) pair.
type GroupAverage struct {
	Get  string
	Pay  string
	Mean float64
}
