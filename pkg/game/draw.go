package game

import (
	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/internal/notices"
)

// MaxDrawOffers is how many draw offers one user may make per game.
const MaxDrawOffers = 2

// HandleDrawOffer runs one step of the draw negotiation: offer, accept or
// decline. At most one offer is outstanding per room.
func (r *Room) HandleDrawOffer(userID string, m messages.DrawOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil || !r.acceptsGameMessageLocked(u) {
		return
	}

	switch m.Action {
	case messages.DrawActionOffer:
		r.offerDrawLocked(u)
	case messages.DrawActionAccept:
		r.acceptDrawLocked(u)
	case messages.DrawActionDecline:
		r.declineDrawLocked(u)
	default:
		u.send(r.noticeLocked(notices.UnknownAction, m.Action))
	}
}

func (r *Room) offerDrawLocked(u *User) {
	if r.state.DrawOffer != nil && r.state.DrawOffer.Status == DrawPending {
		u.send(r.noticeLocked(notices.DrawAlreadyPending))
		return
	}
	if r.state.DrawOfferCount[u.ID] >= MaxDrawOffers {
		u.send(r.noticeLocked(notices.DrawQuotaExhausted))
		return
	}

	opponent := r.otherUserLocked(u.ID)
	if opponent == nil {
		u.send(r.noticeLocked(notices.DrawNoOpponent))
		return
	}

	offer := &DrawOffer{
		From:   u.UserName,
		To:     opponent.UserName,
		Status: DrawPending,
		fromID: u.ID,
		toID:   opponent.ID,
	}
	r.state.DrawOffer = offer
	r.state.DrawOfferCount[u.ID]++

	opponent.send(messages.NewEvent(messages.EventDrawOffer,
		r.drawPayload(messages.DrawActionOffer, offer, notices.DrawOffered, u.UserName),
		r.viewLocked(opponent.ID)))
	u.send(messages.NewEvent(messages.EventDrawOffer,
		r.drawPayload(messages.DrawActionOffer, offer, notices.DrawOfferSent),
		r.viewLocked(u.ID)))
}

func (r *Room) acceptDrawLocked(u *User) {
	offer := r.pendingOfferToLocked(u)
	if offer == nil {
		return
	}

	offer.Status = DrawAccepted
	r.endGameLocked(Result{ResultType: ResultDraw, Reason: ReasonAgreement})
}

func (r *Room) declineDrawLocked(u *User) {
	offer := r.pendingOfferToLocked(u)
	if offer == nil {
		return
	}

	offer.Status = DrawDeclined
	r.state.DrawOffer = nil

	if from := r.users[offer.fromID]; from != nil {
		from.send(messages.NewEvent(messages.EventDrawOffer,
			r.drawPayload(messages.DrawActionDecline, offer, notices.DrawDeclined, u.UserName),
			r.viewLocked(from.ID)))
	}
	u.send(messages.NewEvent(messages.EventDrawOffer,
		r.drawPayload(messages.DrawActionDecline, offer, notices.DrawDeclineSent),
		r.viewLocked(u.ID)))
}

// pendingOfferToLocked returns the pending offer addressed to u, or sends a
// notice and returns nil.
func (r *Room) pendingOfferToLocked(u *User) *DrawOffer {
	offer := r.state.DrawOffer
	if offer == nil || offer.Status != DrawPending || offer.toID != u.ID {
		u.send(r.noticeLocked(notices.DrawNotAddressed))
		return nil
	}
	return offer
}

func (r *Room) drawPayload(action string, offer *DrawOffer, kind string, args ...any) messages.DrawOfferPayload {
	return messages.DrawOfferPayload{
		Action:  action,
		From:    offer.From,
		To:      offer.To,
		Status:  string(offer.Status),
		Message: r.notices.Text(kind, args...),
	}
}
