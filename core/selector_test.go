package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_Matches(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		dest Destination
		want bool
	}{
		{"any matches untagged", AnySource(), Untagged(), true},
		{"any matches tag", AnySource(), To("price"), true},
		{"any matches stage", AnySource(), ToStage(3), true},
		{"tag matches same tag", OnTag("price"), To("price"), true},
		{"tag ignores other tag", OnTag("price"), To("tip"), false},
		{"tag ignores untagged", OnTag("price"), Untagged(), false},
		{"tag ignores stage", OnTag("price"), ToStage(0), false},
		{"stage matches same stage", AtStage(2), ToStage(2), true},
		{"stage ignores other stage", AtStage(2), ToStage(3), false},
		{"stage ignores untagged", AtStage(0), Untagged(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sel.Matches(tt.dest))
		})
	}
}

func TestSelector_Valid(t *testing.T) {
	assert.True(t, AnySource().Valid())
	assert.True(t, OnTag("x").Valid())
	assert.False(t, OnTag("").Valid())
	assert.True(t, AtStage(0).Valid())
	assert.False(t, AtStage(-1).Valid())
}

func TestDestination_Resolve(t *testing.T) {
	d, err := NextStage().Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Stage())

	_, err = NextStage().Resolve(-1)
	assert.ErrorIs(t, err, ErrNoStage)

	d, err = To("tip").Resolve(-1)
	require.NoError(t, err)
	assert.Equal(t, Tag("tip"), d.Tag())
}

func TestDestination_Key(t *testing.T) {
	assert.Equal(t, OnTag("a"), To("a").Key())
	assert.Equal(t, AtStage(4), ToStage(4).Key())
	assert.Equal(t, AnySource(), Untagged().Key())
	assert.True(t, To("").IsUntagged())
}

type token struct{ markers []int }

func TestIdentityKey(t *testing.T) {
	a := &token{}
	b := &token{}

	ka, ok := IdentityKey(a)
	require.True(t, ok)
	a.markers = append(a.markers, 1)
	ka2, _ := IdentityKey(a)
	kb, _ := IdentityKey(b)

	assert.Equal(t, ka, ka2, "mutation keeps identity")
	assert.NotEqual(t, ka, kb)

	k1, ok := IdentityKey(42)
	require.True(t, ok)
	assert.Equal(t, 42, k1)

	_, ok = IdentityKey(struct{ s []int }{})
	assert.False(t, ok)

	_, ok = IdentityKey(nil)
	assert.False(t, ok)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			acc.Record(1.5)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	acc.Add(1)
	acc.Inc()

	assert.InDelta(t, 16.0, acc.Total(), 1e-9)
	assert.Equal(t, 11, acc.Count())
}
