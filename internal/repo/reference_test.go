package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/grumeter/internal/repo"
	"github.com/pkordes/grumeter/testutil"
)

func TestReferenceRepo_Seeded(t *testing.T) {
	r := repo.NewReferenceRepo(testutil.NewTx(t))
	ctx := context.Background()

	transport, err := r.TransportationTypes(ctx)
	require.NoError(t, err)
	require.Len(t, transport, 12)
	assert.Equal(t, "walking", transport[0].Type)
	assert.Zero(t, transport[0].CarbonEmissionPerKm)

	stays, err := r.AccommodationTypes(ctx)
	require.NoError(t, err)
	require.Len(t, stays, 8)
	assert.Equal(t, "hotel_5", stays[0].Type)
	assert.Positive(t, stays[0].CarbonEmissionPerNight)

	locs, err := r.Locations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, "Seoul", locs[0].Name)
}
