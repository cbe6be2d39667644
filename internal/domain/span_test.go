package domain

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfile_ToJsonBytes(t *testing.T) {
	profile, endProfile := NewProfile()
	_, endSpan := profile.StartNewSpan("cluster sweep")
	endSpan()
	profile.StartNewSpan("embedding")
	endProfile()

	bytes, err := profile.ToJsonBytes()
	require.NoError(t, err)

	decoded := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(bytes, &decoded))
	require.ElementsMatch(t, []string{"spans", "totalMs"}, keys(decoded))

	spans := decoded["spans"].([]interface{})
	require.Len(t, spans, 2)
	for _, s := range spans {
		span := s.(map[string]interface{})
		require.ElementsMatch(t, []string{"name", "elapsedMs"}, keys(span))
		require.NotNil(t, span["elapsedMs"])
	}
}

func TestGetProfile(t *testing.T) {
	t.Run("detached without a profile on ctx", func(t *testing.T) {
		profile, endProfile := GetProfile(context.Background())
		require.NotNil(t, profile)
		endProfile()
		require.NotNil(t, profile.TotalMs)
	})

	t.Run("shared with the ctx profile", func(t *testing.T) {
		stored, _ := NewProfile()
		profile, _ := GetProfile(NewCtxWithProfile(context.Background(), stored))
		require.Same(t, stored, profile)
	})
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
