package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendPreservesOrder(t *testing.T) {
	tr := New()
	tr.AppendUser("first prompt")
	tr.AppendAssistant("first reply")
	tr.AppendUser("second prompt")

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "first prompt"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "first reply"}, msgs[1])
	assert.Equal(t, Message{Role: RoleUser, Content: "second prompt"}, msgs[2])
}

func TestLastRole(t *testing.T) {
	tr := New()

	_, ok := tr.LastRole()
	assert.False(t, ok)

	tr.AppendUser("hello")
	role, ok := tr.LastRole()
	require.True(t, ok)
	assert.Equal(t, RoleUser, role)

	tr.AppendAssistant("hi")
	role, ok = tr.LastRole()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, role)
}

func TestMessagesReturnsCopy(t *testing.T) {
	tr := New()
	tr.AppendUser("original")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", tr.Messages()[0].Content)
}

func TestTextRendering(t *testing.T) {
	tr := New()
	tr.AppendUser("do the thing")
	tr.AppendAssistant("done")

	want := "user:\ndo the thing\n\nassistant:\ndone\n\n"
	assert.Equal(t, want, tr.Text())
}

func TestTextEmptyTranscript(t *testing.T) {
	assert.Equal(t, "", New().Text())
}
