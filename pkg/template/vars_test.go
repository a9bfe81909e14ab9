package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVars_Immutable(t *testing.T) {
	src := map[string]any{"a": 1}
	base := NewVars(src)
	src["a"] = 2

	v, _ := base.Get("a")
	assert.Equal(t, 1, v, "NewVars must copy its input")

	page := base.With("offset", 50)
	assert.False(t, base.Has("offset"))
	assert.True(t, page.Has("offset"))

	m := page.Map()
	m["a"] = 99
	v, _ = page.Get("a")
	assert.Equal(t, 1, v, "Map must return a copy")
}

func TestVars_Merge(t *testing.T) {
	defaults := NewVars(map[string]any{"limit": 10, "lang": "en"})
	call := NewVars(map[string]any{"limit": 30})

	merged := defaults.Merge(call)

	limit, _ := merged.Get("limit")
	lang, _ := merged.Get("lang")
	assert.Equal(t, 30, limit)
	assert.Equal(t, "en", lang)
	assert.Equal(t, []string{"lang", "limit"}, merged.Keys())

	limit, _ = defaults.Get("limit")
	assert.Equal(t, 10, limit)
}

func TestVars_Rename(t *testing.T) {
	v := NewVars(map[string]any{"returned_number": 30, "q": "x"})

	renamed := v.Rename("returned_number", "count")
	assert.False(t, renamed.Has("returned_number"))
	n, _ := renamed.Get("count")
	assert.Equal(t, 30, n)
	assert.Equal(t, 2, renamed.Len())

	// Original untouched; missing source is a no-op.
	assert.True(t, v.Has("returned_number"))
	assert.Equal(t, v.Keys(), v.Rename("missing", "count").Keys())
}

func TestVars_Zero(t *testing.T) {
	var v Vars
	assert.False(t, v.Has("x"))
	assert.Equal(t, 0, v.Len())
	assert.True(t, v.With("x", 1).Has("x"))
}
