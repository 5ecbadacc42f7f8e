package handler_test

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/domain"
)

// resultFixture returns a calculated result for two travellers.
func resultFixture() domain.CalculationResult {
	return domain.NewCalculationResult(7, domain.EmissionBreakdown{Transportation: 26.95, Accommodation: 89.6, Course: 3}, 2)
}

func resultServicer() *mockCarbonServicer {
	return &mockCarbonServicer{
		result: func(context.Context, string, string) (domain.CalculationResult, error) { return resultFixture(), nil },
	}
}

func TestGetResult_JSONByDefault(t *testing.T) {
	rec := serve(t, carbonServer(resultServicer()), http.MethodGet, "/carbon/sessions/s-1/result", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, resultFixture(), decode[domain.CalculationResult](t, rec).Data)
}

func TestGetResult_CSV(t *testing.T) {
	rec := serve(t, carbonServer(resultServicer()), http.MethodGet, "/carbon/sessions/s-1/result?format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "header plus one row")
	assert.Equal(t, []string{"result_id", "participant_count", "transportation", "accommodation", "course", "total", "level"}, records[0])
	assert.Equal(t, []string{"7", "2", "26.95", "89.60", "3.00", "119.55", "needs_improvement"}, records[1])
}

func TestGetResult_NotCalculated_409(t *testing.T) {
	m := &mockCarbonServicer{
		result: func(context.Context, string, string) (domain.CalculationResult, error) {
			return domain.CalculationResult{}, domain.ErrStepOrder
		},
	}

	rec := serve(t, carbonServer(m), http.MethodGet, "/carbon/sessions/s-1/result?format=csv", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "step_order", decode[any](t, rec).Code)
}
