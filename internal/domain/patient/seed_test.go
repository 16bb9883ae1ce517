package patient

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalguard/careboard/internal/domain/vitals"
)

func TestSeed(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	n, err := Seed(ctx, repo, t0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, SeedCounts{Patients: 3, Vitals: 10, Medications: 6, Instructions: 6, Tasks: 6, Messages: 6, Reports: 3}, n)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	// newest admission first
	assert.Equal(t, "John Doe", active[0].Name)
	assert.Equal(t, "Sarah Smith", active[2].Name)

	for _, p := range active {
		samples, err := repo.ListVitals(ctx, p.ID)
		require.NoError(t, err)
		if !p.Monitored() {
			assert.Empty(t, samples)
			continue
		}
		require.Len(t, samples, seedVitalsPerPatient)
		assert.True(t, samples[0].Timestamp.Before(samples[4].Timestamp))
		for _, s := range samples {
			assert.NoError(t, vitals.Validate(*s))
		}

		tasks, err := repo.ListTasks(ctx, p.ID)
		require.NoError(t, err)
		done := 0
		for _, task := range tasks {
			if task.Status == TaskCompleted {
				done++
			}
		}
		assert.Equal(t, 1, done)
	}
}
