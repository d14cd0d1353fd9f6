package notices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, "It is not your turn.", c.Text(NotYourTurn))
	assert.Equal(t, "alice offers a draw.", c.Text(DrawOffered, "alice"))
	assert.Equal(t, "noSuchKind", c.Text("noSuchKind"))
}

func TestEveryKindHasText(t *testing.T) {
	kinds := []string{
		RoomFull, RoomExpired, RateLimited, GameNotStarted, GameAlreadyEnded,
		NotYourTurn, InvalidMove, InvalidResult, DrawAlreadyPending,
		DrawQuotaExhausted, DrawNoOpponent, DrawNotAddressed, DrawOffered,
		DrawOfferSent, DrawDeclined, DrawDeclineSent, UnknownAction,
		OpponentDisconnected, OpponentReconnected, OpponentJoined,
	}

	c := Default()
	for _, k := range kinds {
		assert.NotEqual(t, k, c.Text(k), "missing text for %s", k)
	}
}

func TestOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notYourTurn: \"Wait for your opponent.\"\n"), 0o600))

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "Wait for your opponent.", c.Text(NotYourTurn))
	assert.Equal(t, "The game is already over.", c.Text(GameAlreadyEnded))
}

func TestOverrideMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
