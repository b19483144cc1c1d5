package orgcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{OrgID: 10, UserID: 20})

	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.EqualValues(t, 10, p.OrgID)
	assert.EqualValues(t, 20, p.UserID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestUserWithoutOrganization(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: 20})

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	userID, ok := UserID(ctx)
	assert.True(t, ok)
	assert.EqualValues(t, 20, userID)
}
