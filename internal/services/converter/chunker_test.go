package converter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bounds(chunks []Chunk) [][2]int {
	out := make([][2]int, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, [2]int{c.Start, c.End})
	}
	return out
}

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		tail  int
		want  [][2]int
	}{
		{"single small document", 10, 20, 5, [][2]int{{0, 10}}},
		{"exactly one chunk", 20, 20, 5, [][2]int{{0, 20}}},
		{"tail absorbed into only chunk", 25, 20, 5, [][2]int{{0, 25}}},
		{"just over absorb limit", 26, 20, 5, [][2]int{{0, 20}, {20, 26}}},
		{"forty five pages", 45, 20, 5, [][2]int{{0, 20}, {20, 45}}},
		{"fifty pages", 50, 20, 5, [][2]int{{0, 20}, {20, 40}, {40, 50}}},
		{"sixty five pages", 65, 20, 5, [][2]int{{0, 20}, {20, 40}, {40, 65}}},
		{"sixty six pages", 66, 20, 5, [][2]int{{0, 20}, {20, 40}, {40, 60}, {60, 66}}},
		{"no tail merge", 41, 20, 0, [][2]int{{0, 20}, {20, 40}, {40, 41}}},
		{"custom size", 12, 5, 1, [][2]int{{0, 5}, {5, 10}, {10, 12}}},
		{"custom size absorbs", 11, 5, 1, [][2]int{{0, 5}, {5, 11}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := PlanChunks(tt.total, tt.size, tt.tail)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bounds(chunks))

			covered := 0
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				covered += c.Pages()
			}
			assert.Equal(t, tt.total, covered)
		})
	}
}

func TestPlanChunksInvalid(t *testing.T) {
	_, err := PlanChunks(0, 20, 5)
	assert.True(t, errors.Is(err, ErrNoPages))

	_, err = PlanChunks(-3, 20, 5)
	assert.True(t, errors.Is(err, ErrNoPages))

	_, err = PlanChunks(10, 0, 5)
	assert.Error(t, err)

	_, err = PlanChunks(10, 5, -1)
	assert.Error(t, err)
}
