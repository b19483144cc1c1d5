package stripe

import (
	"errors"
	"fmt"
	"testing"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("create session: %w", &stripego.Error{Msg: "Your card was declined."})
	msg, ok := UserMessage(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Your card was declined.", msg)

	_, ok = UserMessage(errors.New("dial tcp: timeout"))
	assert.False(t, ok)

	_, ok = UserMessage(&stripego.Error{})
	assert.False(t, ok)
}
