package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spouty/spouty/internal/device"
	"github.com/spouty/spouty/internal/plant"
)

func TestInMemoryRepository_GetNotFound(t *testing.T) {
	repo := device.NewInMemoryRepository()

	_, err := repo.Get(context.Background(), "spouty")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}

func TestInMemoryRepository_MergeCreatesAndMerges(t *testing.T) {
	ctx := context.Background()
	repo := device.NewInMemoryRepository()

	loc := plant.Location{Lat: 10, Lon: 20}
	require.NoError(t, repo.Merge(ctx, "spouty", device.Patch{Location: &loc}))

	level := plant.Hard
	require.NoError(t, repo.Merge(ctx, "spouty", device.Patch{Difficulty: &level}))

	record, err := repo.Get(ctx, "spouty")
	require.NoError(t, err)
	assert.Equal(t, plant.Hard, record.Config.Difficulty)
	require.NotNil(t, record.Config.Location)
	assert.Equal(t, loc, *record.Config.Location)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := device.NewInMemoryRepository()

	loc := plant.Location{Lat: 10, Lon: 20}
	require.NoError(t, repo.Merge(ctx, "spouty", device.Patch{Location: &loc}))

	record, err := repo.Get(ctx, "spouty")
	require.NoError(t, err)
	record.Config.Location.Lat = 99

	again, err := repo.Get(ctx, "spouty")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Config.Location.Lat)
}

func TestInMemoryRepository_DevicesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := device.NewInMemoryRepository()

	on := device.LEDOn
	require.NoError(t, repo.Merge(ctx, "a", device.Patch{LEDState: &on}))

	_, err := repo.Get(ctx, "b")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}
