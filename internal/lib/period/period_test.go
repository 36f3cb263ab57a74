package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

func TestEnd(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		interval models.Interval
		want     time.Time
	}{
		{
			name:     "обычный месяц",
			start:    time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
			interval: models.IntervalMonthly,
			want:     time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "конец января прижимается к февралю",
			start:    time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			interval: models.IntervalMonthly,
			want:     time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "високосный февраль",
			start:    time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
			interval: models.IntervalMonthly,
			want:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "переход через год",
			start:    time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
			interval: models.IntervalMonthly,
			want:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "годовой тариф",
			start:    time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			interval: models.IntervalYearly,
			want:     time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := End(tt.start, tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnd_UnknownInterval(t *testing.T) {
	_, err := End(time.Now(), "weekly")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestDays(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC), Days(start, 14))
}
