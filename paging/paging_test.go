package paging

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPaginate_RejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
	}{
		{"zero page", 0, 10},
		{"negative page", -1, 10},
		{"zero size", 1, 0},
		{"negative size", 1, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Paginate(seq(3), tt.page, tt.size)
			assert.ErrorIs(t, err, ErrInvalidPage)
		})
	}
}

func TestPaginate_Slices(t *testing.T) {
	p, err := Paginate(seq(25), 3, 10)
	require.NoError(t, err)

	assert.Equal(t, []int{20, 21, 22, 23, 24}, p.Items)
	assert.Equal(t, 25, p.TotalCount)
	assert.Equal(t, 3, p.TotalPages)
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrevious())
}

func TestPaginate_BeyondEnd(t *testing.T) {
	p, err := Paginate(seq(5), 4, 2)
	require.NoError(t, err)

	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 5, p.TotalCount)
	assert.Equal(t, 3, p.TotalPages)

	p, err = Paginate(seq(5), math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
}

func TestPaginate_Empty(t *testing.T) {
	p, err := Paginate([]string(nil), 1, 10)
	require.NoError(t, err)

	assert.NotNil(t, p.Items)
	assert.Equal(t, 0, p.TotalCount)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext())
	assert.False(t, p.HasPrevious())
}

func TestPaginate_PagesCoverSequenceExactlyOnce(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for size := 1; size <= 7; size++ {
			t.Run(strconv.Itoa(n)+"/"+strconv.Itoa(size), func(t *testing.T) {
				items := seq(n)
				first, err := Paginate(items, 1, size)
				require.NoError(t, err)

				want := int(math.Ceil(float64(n) / float64(size)))
				assert.Equal(t, want, first.TotalPages)

				var collected []int
				for i := 1; i <= first.TotalPages; i++ {
					p, err := Paginate(items, i, size)
					require.NoError(t, err)
					assert.Equal(t, n, p.TotalCount)
					collected = append(collected, p.Items...)
				}
				assert.Len(t, collected, n)
				if n > 0 {
					assert.Equal(t, items, collected)
				}
			})
		}
	}
}

func TestPaginate_DoesNotAliasInput(t *testing.T) {
	items := seq(4)
	p, err := Paginate(items, 1, 2)
	require.NoError(t, err)

	p.Items[0] = 99
	assert.Equal(t, 0, items[0])
}

func TestMap(t *testing.T) {
	p, err := Paginate(seq(3), 1, 2)
	require.NoError(t, err)

	got := Map(p, strconv.Itoa)
	assert.Equal(t, []string{"0", "1"}, got.Items)
	assert.Equal(t, p.TotalPages, got.TotalPages)
	assert.Equal(t, p.TotalCount, got.TotalCount)
}
