package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/grumeter/internal/domain"
)

func TestCalculationResult_Level(t *testing.T) {
	cases := []struct {
		total float64
		want  domain.Level
	}{
		{0, domain.LevelExcellent},
		{9.99, domain.LevelExcellent},
		{10, domain.LevelGood},
		{29.9, domain.LevelGood},
		{30, domain.LevelNeedsImprovement},
		{250, domain.LevelNeedsImprovement},
	}
	for _, tc := range cases {
		r := domain.CalculationResult{TotalCarbonEmission: tc.total}
		assert.Equal(t, tc.want, r.Level(), "total %v", tc.total)
	}
}

func TestEmissionBreakdown_Highest(t *testing.T) {
	assert.Equal(t, domain.CategoryTransportation, domain.EmissionBreakdown{Transportation: 5, Accommodation: 5, Course: 5}.Highest())
	assert.Equal(t, domain.CategoryAccommodation, domain.EmissionBreakdown{Transportation: 1, Accommodation: 5, Course: 5}.Highest())
	assert.Equal(t, domain.CategoryCourse, domain.EmissionBreakdown{Transportation: 1, Accommodation: 2, Course: 5}.Highest())
	assert.Len(t, domain.CategoryCourse.Tips(), 3)
}

func TestCalculationResult_SharesAndConsistency(t *testing.T) {
	r := domain.NewCalculationResult(1, domain.EmissionBreakdown{Transportation: 25, Accommodation: 50, Course: 25}, 2)

	assert.True(t, r.Consistent())
	assert.InDelta(t, 100, r.TotalCarbonEmission, 1e-9)
	s := r.Shares()
	assert.InDelta(t, 25, s.Transportation, 1e-9)
	assert.InDelta(t, 50, s.Accommodation, 1e-9)
	assert.InDelta(t, 100, s.Sum(), 1e-9)

	assert.Equal(t, domain.EmissionBreakdown{}, domain.CalculationResult{}.Shares())

	bad := r
	bad.TotalCarbonEmission = 101
	assert.False(t, bad.Consistent())
}

func TestCalculationResult_CSVRecord(t *testing.T) {
	r := domain.NewCalculationResult(3, domain.EmissionBreakdown{Transportation: 1.5, Accommodation: 2, Course: 0.25}, 1)

	rec := r.CSVRecord()

	assert.Len(t, rec, len(domain.CSVHeader))
	assert.Equal(t, []string{"3", "1", "1.50", "2.00", "0.25", "3.75", "excellent"}, rec)
}
