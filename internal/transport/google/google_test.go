package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/allmhq/allm"
)

func TestConvertMessagesRoles(t *testing.T) {
	contents := convertMessages([]allm.Message{
		{Role: allm.RoleUser, Content: "hi"},
		{Role: allm.RoleAssistant, Content: "hello"},
		{Role: allm.RoleSystem, Content: "be brief"},
	})
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	// System text rides as a user turn; the API has no system role here.
	assert.Equal(t, genai.RoleUser, contents[2].Role)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
}

func TestConvertMessagesSkipsEmpty(t *testing.T) {
	contents := convertMessages([]allm.Message{
		{Role: allm.RoleUser, Content: ""},
		{Role: allm.RoleUser, Content: "kept"},
	})
	assert.Len(t, contents, 1)
}
