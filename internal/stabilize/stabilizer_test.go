package stabilize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_MajorityVote(t *testing.T) {
	s := New(DefaultCapacity)

	var r Result
	for _, v := range []string{"ABC1234", "ABC1234", "ABC1234", "ABC1234", "XYZ9999"} {
		r = s.Observe(v)
	}

	assert.Equal(t, "ABC1234", r.Winner)
	assert.Equal(t, 4, r.Count)
}

func TestObserve_EvictsOldest(t *testing.T) {
	s := New(10)

	var seen []string
	for i := 0; i < 15; i++ {
		v := fmt.Sprintf("AB%04d", i)
		seen = append(seen, v)
		s.Observe(v)
	}

	require.Equal(t, 10, s.Len())
	assert.Equal(t, seen[5:], s.Snapshot())
}

func TestObserve_Invariant(t *testing.T) {
	s := New(10)
	values := []string{"A1", "B2", "A1", "C3", "A1", "B2", "B2", "B2", "D4", "A1", "A1", "E5", "B2"}

	for _, v := range values {
		r := s.Observe(v)
		require.GreaterOrEqual(t, r.Count, 1)
		require.LessOrEqual(t, r.Count, s.Len())
		require.LessOrEqual(t, s.Len(), s.Capacity())
	}
}

func TestVote_TieBreakMostRecent(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"all distinct", []string{"AAA111", "BBB222", "CCC333"}, "CCC333"},
		{"two-way tie", []string{"AAA111", "BBB222", "BBB222", "AAA111"}, "AAA111"},
		{"tie reversed", []string{"AAA111", "BBB222", "AAA111", "BBB222"}, "BBB222"},
		{"clear winner ignores recency", []string{"AAA111", "AAA111", "BBB222"}, "AAA111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(10)
			var r Result
			for _, v := range tt.values {
				r = s.Observe(v)
			}
			assert.Equal(t, tt.want, r.Winner)
		})
	}
}

func TestVote_CountsOnlyWindow(t *testing.T) {
	s := New(3)
	for _, v := range []string{"OLD1234", "OLD1234", "NEW5678", "NEW5678", "NEW5678"} {
		s.Observe(v)
	}

	r := s.Vote()
	assert.Equal(t, "NEW5678", r.Winner)
	assert.Equal(t, 3, r.Count)
}

func TestReset(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultCapacity, s.Capacity())

	s.Observe("ABC1234")
	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, Result{}, s.Vote())
}
