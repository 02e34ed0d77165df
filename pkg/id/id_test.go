package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	require.Len(t, a, 26)
	assert.Less(t, a, b)

	_, err := ulid.ParseStrict(a)
	assert.NoError(t, err)
}

func TestSequenceIsDeterministic(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	s1 := NewSequence(42)
	s2 := NewSequence(42)
	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i/2) * time.Minute)
		assert.Equal(t, s1.Next(at), s2.Next(at))
	}

	other := NewSequence(43)
	assert.NotEqual(t, NewSequence(42).Next(t0), other.Next(t0))
}

func TestSequenceCarriesTimestamp(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	s := NewSequence(1)

	first := s.Next(t0)
	second := s.Next(t0)
	assert.Less(t, first, second)

	u, err := ulid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(t0), u.Time())

	zero := s.Next(time.Time{})
	u, err = ulid.Parse(zero)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), u.Time())
}
