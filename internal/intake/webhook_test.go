package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatWebhook(t *testing.T) {
	evt, ok, err := ParseChatWebhook([]byte(`{"event":"messages.upsert","data":{"id":" X1 ","from":"5511988887777","text":"Quanto custa?","media":{"url":"https://cdn.example/a.jpg","id":"m1","mime_type":"image/png"}}}`), "chatapi")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "X1", evt.MessageID)
	assert.Equal(t, "Quanto custa?", evt.Body)
	assert.Equal(t, "https://cdn.example/a.jpg", evt.MediaRef, "url wins over media id")
	assert.Equal(t, "media", evt.Kind())
	assert.True(t, evt.ReceivedAt.IsZero())

	_, ok, err = ParseChatWebhook([]byte(`{"event":"presence.update","data":{"from":"5511988887777","text":"x"}}`), "chatapi")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseChatWebhook([]byte(`not json`), "chatapi")
	assert.Error(t, err)
}
