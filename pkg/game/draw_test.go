package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/internal/notices"
)

func draw(r *Room, s seated, action string) {
	r.HandleDrawOffer(s.id, messages.DrawOffer{Action: action})
}

func TestDrawOfferAccepted(t *testing.T) {
	r, alice, bob := startedRoom(t, "", defaultTC())

	draw(r, alice, messages.DrawActionOffer)

	state := r.Snapshot()
	require.NotNil(t, state.DrawOffer)
	assert.Equal(t, DrawPending, state.DrawOffer.Status)
	assert.Equal(t, "alice", state.DrawOffer.From)
	assert.Equal(t, "bob", state.DrawOffer.To)
	assert.Equal(t, 1, state.DrawOfferCount["alice"])

	offer := bob.conn.lastEvent(t, messages.EventDrawOffer)
	payload := offer.Payload.(messages.DrawOfferPayload)
	assert.Equal(t, messages.DrawActionOffer, payload.Action)
	assert.Contains(t, payload.Message, "alice")

	draw(r, bob, messages.DrawActionAccept)

	state = r.Snapshot()
	assert.True(t, state.GameEnded)
	require.NotNil(t, state.GameResult)
	assert.Equal(t, ResultDraw, state.GameResult.ResultType)
	assert.Equal(t, ReasonAgreement, state.GameResult.Reason)
	assert.Empty(t, state.GameResult.WinColor)
	assert.False(t, r.ClockRunning())
}

func TestDrawOfferDeclined(t *testing.T) {
	r, alice, bob := startedRoom(t, "", defaultTC())

	draw(r, alice, messages.DrawActionOffer)
	draw(r, bob, messages.DrawActionDecline)

	state := r.Snapshot()
	assert.Nil(t, state.DrawOffer)
	assert.False(t, state.GameEnded)

	declined := alice.conn.lastEvent(t, messages.EventDrawOffer)
	payload := declined.Payload.(messages.DrawOfferPayload)
	assert.Equal(t, messages.DrawActionDecline, payload.Action)
	assert.Equal(t, string(DrawDeclined), payload.Status)
}

func TestDrawOfferOnlyAddresseeMayAnswer(t *testing.T) {
	r, alice, _ := startedRoom(t, "", defaultTC())

	draw(r, alice, messages.DrawActionOffer)
	draw(r, alice, messages.DrawActionAccept)
	draw(r, alice, messages.DrawActionDecline)

	state := r.Snapshot()
	assert.False(t, state.GameEnded)
	require.NotNil(t, state.DrawOffer)
	assert.Equal(t, DrawPending, state.DrawOffer.Status)

	kinds := alice.conn.noticeKinds()
	assert.Contains(t, kinds, notices.DrawNotAddressed)
}

func TestDrawOfferWhilePending(t *testing.T) {
	r, alice, bob := startedRoom(t, "", defaultTC())

	draw(r, alice, messages.DrawActionOffer)
	draw(r, bob, messages.DrawActionOffer)

	assert.Contains(t, bob.conn.noticeKinds(), notices.DrawAlreadyPending)
	assert.Equal(t, 0, r.Snapshot().DrawOfferCount["bob"])
}

func TestDrawOfferQuota(t *testing.T) {
	r, alice, bob := startedRoom(t, "", defaultTC())

	for i := 0; i < MaxDrawOffers; i++ {
		draw(r, alice, messages.DrawActionOffer)
		draw(r, bob, messages.DrawActionDecline)
	}

	draw(r, alice, messages.DrawActionOffer)

	state := r.Snapshot()
	assert.Nil(t, state.DrawOffer)
	assert.Equal(t, MaxDrawOffers, state.DrawOfferCount["alice"])
	assert.Contains(t, alice.conn.noticeKinds(), notices.DrawQuotaExhausted)

	// bob still has his own quota
	draw(r, bob, messages.DrawActionOffer)
	assert.NotNil(t, r.Snapshot().DrawOffer)
}

func TestUnknownDrawAction(t *testing.T) {
	r, alice, _ := startedRoom(t, "", defaultTC())

	draw(r, alice, "maybe")

	assert.Contains(t, alice.conn.noticeKinds(), notices.UnknownAction)
	assert.Nil(t, r.Snapshot().DrawOffer)
}

func TestDrawCountSurvivesReconnection(t *testing.T) {
	r, alice, bob := startedRoom(t, "", defaultTC())

	draw(r, alice, messages.DrawActionOffer)
	draw(r, bob, messages.DrawActionDecline)

	require.True(t, r.Leave("alice", alice.conn))
	res, err := r.Join(JoinRequest{UserName: "alice"}, newFakeConn())
	require.NoError(t, err)
	assert.Equal(t, alice.id, res.UserID)

	assert.Equal(t, 1, r.Snapshot().DrawOfferCount["alice"])
}
