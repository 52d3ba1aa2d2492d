package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsConversions(t *testing.T) {
	s := Settings{
		"thread":        "true",
		"is_short":      false,
		"broken_bool":   "maybe",
		"duration":      "60",
		"json_number":   float64(1440),
		"count":         int64(3),
		"options_csv":   " tabs, spaces ,,",
		"options_any":   []any{"a", 2},
		"options_typed": []string{"x", " "},
		"privacy":       "  ",
		"poll":          map[string]any{"duration_minutes": 30},
		"nothing":       nil,
	}

	assert.True(t, s.Bool("thread", false))
	assert.False(t, s.Bool("is_short", true))
	assert.True(t, s.Bool("broken_bool", true))
	assert.True(t, s.Bool("missing", true))

	assert.Equal(t, 60, s.Int("duration", 0))
	assert.Equal(t, 1440, s.Int("json_number", 0))
	assert.Equal(t, 3, s.Int("count", 0))
	assert.Equal(t, 7, s.Int("thread", 7))

	assert.Equal(t, []string{"tabs", "spaces"}, s.Strings("options_csv"))
	assert.Equal(t, []string{"a", "2"}, s.Strings("options_any"))
	assert.Equal(t, []string{"x"}, s.Strings("options_typed"))
	assert.Empty(t, s.Strings("missing"))

	assert.Equal(t, "public", s.String("privacy", "public"))
	assert.Equal(t, "60", s.String("duration", ""))
	assert.False(t, s.Has("nothing"))
	assert.True(t, s.Has("privacy"))

	assert.Equal(t, 30, s.Map("poll").Int("duration_minutes", 0))
	assert.Nil(t, s.Map("thread"))
}

func TestSettingsFromJSON(t *testing.T) {
	var req PostRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"content": "hi",
		"platform_settings": {"twitter": {"poll_options": ["a","b"], "poll_duration_minutes": 60, "thread": true}}
	}`), &req))

	s := req.Settings(PlatformTwitter)
	assert.Equal(t, []string{"a", "b"}, s.Strings("poll_options"))
	assert.Equal(t, 60, s.Int("poll_duration_minutes", 0))
	assert.True(t, s.Bool("thread", false))
}
