//go:build !integration

package responder

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqRand struct {
	next  int
	calls int
}

func (r *seqRand) IntN(n int) int {
	r.calls++
	return r.next % n
}

func poolOf(t *testing.T, name string) []string {
	t.Helper()
	tbl := DefaultTable()
	if name == FallbackName {
		return tbl.Fallback.Replies
	}
	for _, c := range tbl.Categories {
		if c.Name == name {
			return c.Replies
		}
	}
	t.Fatalf("no category %q", name)
	return nil
}

func TestDefaultTableShape(t *testing.T) {
	tbl := DefaultTable()
	want := []struct {
		name  string
		pool  int
		first string
	}{
		{"greeting", 3, "hello"},
		{"anxiety", 3, "anxiety"},
		{"depression", 3, "depression"},
		{"stress", 3, "stress"},
		{"positive", 3, "good"},
		{"support", 5, "help"},
	}
	require.Len(t, tbl.Categories, len(want))
	for i, w := range want {
		c := tbl.Categories[i]
		assert.Equal(t, w.name, c.Name)
		assert.Len(t, c.Replies, w.pool, c.Name)
		assert.Equal(t, w.first, c.Triggers[0], c.Name)
	}
	assert.Equal(t, FallbackName, tbl.Fallback.Name)
	assert.Len(t, tbl.Fallback.Replies, 4)
	assert.Same(t, tbl, DefaultTable())
}

func TestClassify(t *testing.T) {
	s := NewSelector(nil)
	cases := []struct {
		in   string
		want string
	}{
		{"I feel so anxious today", "anxiety"},
		{"hello", "greeting"},
		{"HELLO THERE", "greeting"},
		{"purple elephants", FallbackName},
		{"I'm worried but also happy", "anxiety"},
		{"so much pressure at work", "stress"},
		{"I feel hopeless", "depression"},
		{"I feel scared", "support"},
		{"feeling better", "positive"},
		// plain substring matching: "think" contains "hi"
		{"I think so", "greeting"},
		// "sad" is tested before "stress"
		{"sad and stressed", "depression"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Classify(tc.in).Name)
		})
	}
}

func TestSelectPicksFromMatchedPool(t *testing.T) {
	r := &seqRand{next: 1}
	s := NewSelector(nil, WithRand(r))

	got := s.Select("I feel so anxious today")
	assert.Equal(t, "anxiety", got.Category)
	assert.Equal(t, poolOf(t, "anxiety")[1], got.Text)
	assert.Equal(t, 1, r.calls)

	got = s.Select("purple elephants")
	assert.Equal(t, FallbackName, got.Category)
	assert.Equal(t, poolOf(t, FallbackName)[1], got.Text)
}

func TestSelectResponseNonEmptyAndInPool(t *testing.T) {
	s := NewSelector(nil)
	inputs := []string{"hey", "nervous", "down", "overwhelmed", "fine", "alone", "xyz", "a"}
	for _, in := range inputs {
		for range 20 {
			reply := s.Select(in)
			require.NotEmpty(t, reply.Text)
			assert.True(t, slices.Contains(poolOf(t, reply.Category), reply.Text), "%q not in %s pool", reply.Text, reply.Category)
		}
	}
}

func TestLoadTableValidation(t *testing.T) {
	cases := map[string]string{
		"no categories": "fallback:\n  replies: [x]\n",
		"no name":       "categories:\n  - triggers: [a]\n    replies: [b]\nfallback:\n  replies: [x]\n",
		"no triggers":   "categories:\n  - name: c\n    replies: [b]\nfallback:\n  replies: [x]\n",
		"no replies":    "categories:\n  - name: c\n    triggers: [a]\nfallback:\n  replies: [x]\n",
		"empty trigger": "categories:\n  - name: c\n    triggers: ['  ']\n    replies: [b]\nfallback:\n  replies: [x]\n",
		"no fallback":   "categories:\n  - name: c\n    triggers: [a]\n    replies: [b]\n",
		"bad yaml":      "categories: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTable([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTableNormalizesTriggers(t *testing.T) {
	tbl, err := LoadTable([]byte("categories:\n  - name: calm\n    triggers: [' Breathe ']\n    replies: [ok]\nfallback:\n  replies: [x]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"breathe"}, tbl.Categories[0].Triggers)
	assert.Equal(t, FallbackName, tbl.Fallback.Name)

	s := NewSelector(tbl)
	assert.Equal(t, "calm", s.Classify("just BREATHE").Name)
	assert.Equal(t, "x", s.SelectResponse("nothing"))
}
