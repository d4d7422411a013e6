package httpapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anrdraft/draft-backend/internal/engine"
	"github.com/anrdraft/draft-backend/internal/hub"
	"github.com/anrdraft/draft-backend/internal/lobby"
)

func TestRejectionText(t *testing.T) {
	// A command racing draft teardown reads like a missing draft, not an
	// internal failure.
	assert.Equal(t, "Draft does not exist.", rejectionText(lobby.ErrClosed))
	assert.Equal(t, "Draft does not exist.", rejectionText(hub.ErrNotFound))

	assert.Equal(t, "You are not in a draft.", rejectionText(hub.ErrNotEnrolled))
	assert.Equal(t, "That pack has already been picked from.", rejectionText(engine.ErrNoOpenPack))
	assert.Equal(t, "Something went wrong. Try again.", rejectionText(errors.New("boom")))
}
