package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestFormatCmd(t *testing.T) {
	ctx := context.Background()

	t.Run("scrubs set payloads", func(t *testing.T) {
		cmd := redis.NewStatusCmd(ctx, "set", "user:42", `{"name":"Ann"}`, "ex", 300)
		assert.Equal(t, "set user:42 [scrubbed payload: 14 bytes] ex 300", FormatCmd(cmd))
	})

	t.Run("truncates long arguments", func(t *testing.T) {
		cmd := redis.NewStringCmd(ctx, "get", strings.Repeat("k", 100))
		assert.Equal(t, "get "+strings.Repeat("k", maxArgLength)+"...", FormatCmd(cmd))
	})

	t.Run("escapes newlines", func(t *testing.T) {
		cmd := redis.NewIntCmd(ctx, "del", "a\nb")
		assert.Equal(t, `del a\nb`, FormatCmd(cmd))
	})
}
