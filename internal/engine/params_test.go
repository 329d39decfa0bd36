package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeParams(t *testing.T) {
	defaults := Params{"country": "1", "carTypes": []string{"B"}, "days": 30}
	var env Params
	require.NoError(t, json.Unmarshal([]byte(`{"country": 2, "carTypes": ["C", "D"]}`), &env))
	override := Params{"days": "7"}

	p := MergeParams(defaults, env, override)

	require.Equal(t, "2", p.String("country", ""))
	types, ok := p.Strings("carTypes")
	require.True(t, ok)
	require.Equal(t, []string{"C", "D"}, types)
	require.Equal(t, 7, p.Int("days", 30))
	require.Equal(t, "fallback", p.String("missing", "fallback"))

	_, ok = p.Strings("country")
	require.False(t, ok)
	require.Equal(t, []string{"B"}, defaults["carTypes"], "inputs must not be modified")
}
