package domain

import "strconv"

// Level grades a trip's total emission.
type Level string

const (
	LevelExcellent        Level = "excellent"
	LevelGood             Level = "good"
	LevelNeedsImprovement Level = "needs_improvement"
)

// Level thresholds in kg CO2e for the whole trip.
const (
	excellentBelow = 10.0
	goodBelow      = 30.0
)

// Category names one source of emission.
type Category string

const (
	CategoryTransportation Category = "transportation"
	CategoryAccommodation  Category = "accommodation"
	CategoryCourse         Category = "course"
)

// tips are reduction suggestions shown for the largest source.
var tips = map[Category][]string{
	CategoryTransportation: {
		"Take public transport such as buses, subways or trains.",
		"Prefer public transport over car sharing or rental cars where you can.",
		"Walk or cycle for short distances.",
	},
	CategoryAccommodation: {
		"Choose hotels or guesthouses with an eco certification.",
		"Look for accommodation that practises energy saving.",
		"Consider local homestays or guesthouses.",
	},
	CategoryCourse: {
		"Pick courses you can explore on foot or by bicycle.",
		"Visit sights reachable by public transport first.",
		"Group nearby sights to travel between them efficiently.",
	},
}

// Level grades the result's total.
func (r CalculationResult) Level() Level {
	switch {
	case r.TotalCarbonEmission < excellentBelow:
		return LevelExcellent
	case r.TotalCarbonEmission < goodBelow:
		return LevelGood
	default:
		return LevelNeedsImprovement
	}
}

// Highest returns the largest source. Ties go to transportation, then
// accommodation.
func (b EmissionBreakdown) Highest() Category {
	switch {
	case b.Transportation >= b.Accommodation && b.Transportation >= b.Course:
		return CategoryTransportation
	case b.Accommodation >= b.Course:
		return CategoryAccommodation
	default:
		return CategoryCourse
	}
}

// Tips returns reduction suggestions for c.
func (c Category) Tips() []string {
	return append([]string(nil), tips[c]...)
}

// Shares returns each source as a percentage of the total. All shares are
// zero when the total is zero.
func (r CalculationResult) Shares() EmissionBreakdown {
	if r.TotalCarbonEmission == 0 {
		return EmissionBreakdown{}
	}
	pct := func(v float64) float64 { return v / r.TotalCarbonEmission * 100 }
	return EmissionBreakdown{
		Transportation: pct(r.Result.Transportation),
		Accommodation:  pct(r.Result.Accommodation),
		Course:         pct(r.Result.Course),
	}
}

// CSVHeader names the columns written by CSVRecord.
var CSVHeader = []string{
	"result_id", "participant_count",
	"transportation", "accommodation", "course", "total",
	"level",
}

// CSVRecord flattens the result into one CSV row. Emissions are written with
// two decimals.
func (r CalculationResult) CSVRecord() []string {
	kg := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return []string{
		strconv.FormatInt(r.ResultID, 10),
		strconv.Itoa(r.ParticipantCount),
		kg(r.Result.Transportation),
		kg(r.Result.Accommodation),
		kg(r.Result.Course),
		kg(r.TotalCarbonEmission),
		string(r.Level()),
	}
}
