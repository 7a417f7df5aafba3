package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallActive    CallStatus = "active"
	CallEnded     CallStatus = "ended"
	CallRejected  CallStatus = "rejected"
	CallCancelled CallStatus = "cancelled"
)

const (
	// A pending call must be acknowledged promptly or expire.
	pendingCallTTL = 300 * time.Second
	activeCallTTL  = 3600 * time.Second
)

func callKey(callID string) string {
	return "call:" + callID
}

func userInCallKey(userID int) string {
	return fmt.Sprintf("user-in-call:%d", userID)
}

// callSession is the ephemeral state machine instance for one call. The
// durable CallRecord mirrors its meaningful transitions.
type callSession struct {
	ID             string     `json:"id"`
	ConversationID int        `json:"conversationId"`
	InitiatorID    int        `json:"initiatorId"`
	ParticipantID  int        `json:"participantId"`
	Status         CallStatus `json:"status"`
	StartedAt      int64      `json:"startedAt"` // unix millis
}

func (s *callSession) hasParty(userID int) bool {
	return userID == s.InitiatorID || userID == s.ParticipantID
}

func (s *callSession) channel() Channel {
	return ConversationChannel(s.ConversationID)
}

// loadSession returns the session if it still exists. Expired, ended and
// unreadable sessions all report !ok; callers decide between a scoped
// error and a silent drop.
func (co *Core) loadSession(ctx context.Context, callID string) (*callSession, bool) {
	raw, found, err := co.eph.Get(ctx, callKey(callID))
	if err != nil {
		co.logger.Error("call session read failed", "callId", callID, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var sess callSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		co.logger.Error("malformed call session", "callId", callID, "error", err)
		return nil, false
	}
	return &sess, true
}

func (co *Core) saveSession(ctx context.Context, sess *callSession, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return co.eph.SetWithTTL(ctx, callKey(sess.ID), string(raw), ttl)
}

// handleCallInitiate starts a call: both parties' user-in-call markers are
// claimed atomically (set-if-absent), the durable record is created, and
// the pending session goes into the ephemeral store with a 300s TTL.
func (co *Core) handleCallInitiate(ctx context.Context, c *Client, p *CallInitiate) {
	if p.ConversationID == 0 || p.ParticipantID == 0 {
		co.sendCallError(c, validationError("invalid call request"))
		return
	}

	conv, err := co.conversations.GetConversation(ctx, p.ConversationID)
	if err != nil || conv.OrgID != c.identity.OrgID {
		co.sendCallError(c, notFoundError("conversation not found"))
		return
	}
	// A caller outside the conversation gets the same reason as a missing
	// one; naming the distinction would leak membership.
	if !conv.HasParticipant(c.identity.UserID) {
		co.sendCallError(c, notFoundError("conversation not found"))
		return
	}
	if conv.OtherParticipant(c.identity.UserID) != p.ParticipantID {
		co.sendCallError(c, validationError("participant mismatch"))
		return
	}

	callID := uuid.NewString()
	now := co.now()

	claimed, err := co.eph.SetIfAbsent(ctx, userInCallKey(c.identity.UserID), callID, pendingCallTTL)
	if err != nil {
		co.sendCallError(c, storeError("call setup failed"))
		return
	}
	if !claimed {
		co.sendCallError(c, conflictError("already in a call"))
		return
	}
	claimed, err = co.eph.SetIfAbsent(ctx, userInCallKey(p.ParticipantID), callID, pendingCallTTL)
	if err != nil || !claimed {
		co.eph.Delete(ctx, userInCallKey(c.identity.UserID))
		if err != nil {
			co.sendCallError(c, storeError("call setup failed"))
		} else {
			co.sendCallError(c, conflictError("already in a call"))
		}
		return
	}

	rec := CallRecord{
		ID:             callID,
		ConversationID: p.ConversationID,
		InitiatorID:    c.identity.UserID,
		ParticipantID:  p.ParticipantID,
		Status:         CallPending,
		StartedAt:      now,
	}
	sess := &callSession{
		ID:             callID,
		ConversationID: p.ConversationID,
		InitiatorID:    c.identity.UserID,
		ParticipantID:  p.ParticipantID,
		Status:         CallPending,
		StartedAt:      now.UnixMilli(),
	}
	if err := co.calls.Create(ctx, rec); err != nil {
		co.eph.Delete(ctx, userInCallKey(c.identity.UserID), userInCallKey(p.ParticipantID))
		co.sendCallError(c, storeError("call setup failed"))
		return
	}
	if err := co.saveSession(ctx, sess, pendingCallTTL); err != nil {
		co.eph.Delete(ctx, userInCallKey(c.identity.UserID), userInCallKey(p.ParticipantID))
		co.sendCallError(c, storeError("call setup failed"))
		return
	}

	c.activeCall = callID
	co.broadcast(sess.channel(), evCallIncoming, map[string]any{
		"videoCallId":    callID,
		"conversationId": p.ConversationID,
		"initiator":      c.identity.UserID,
		"participant":    p.ParticipantID,
	}, nil)
}

func (co *Core) handleCallAccept(ctx context.Context, c *Client, p *CallAccept) {
	sess, ok := co.loadSession(ctx, p.VideoCallID)
	if !ok {
		co.sendCallError(c, notFoundError("call not found"))
		return
	}
	if c.identity.UserID != sess.ParticipantID {
		co.sendCallError(c, authorizationError("unauthorized"))
		return
	}
	if sess.Status != CallPending {
		co.sendCallError(c, conflictError("invalid call state"))
		return
	}

	sess.Status = CallActive
	if err := co.calls.SetStatus(ctx, sess.ID, CallActive); err != nil {
		co.logger.Error("call record update failed", "callId", sess.ID, "error", err)
	}
	if err := co.saveSession(ctx, sess, activeCallTTL); err != nil {
		co.logger.Error("call session update failed", "callId", sess.ID, "error", err)
	}
	co.eph.Expire(ctx, userInCallKey(sess.InitiatorID), activeCallTTL)
	co.eph.Expire(ctx, userInCallKey(sess.ParticipantID), activeCallTTL)

	c.activeCall = sess.ID
	co.broadcast(sess.channel(), evCallAccepted, map[string]any{
		"videoCallId":    sess.ID,
		"conversationId": sess.ConversationID,
	}, nil)
}

func (co *Core) handleCallReject(ctx context.Context, c *Client, p *CallReject) {
	sess, ok := co.loadSession(ctx, p.VideoCallID)
	if !ok {
		co.sendCallError(c, notFoundError("call not found"))
		return
	}
	if !sess.hasParty(c.identity.UserID) {
		co.sendCallError(c, authorizationError("unauthorized"))
		return
	}
	if sess.Status != CallPending {
		co.sendCallError(c, conflictError("invalid call state"))
		return
	}

	co.finishCall(ctx, c, sess, CallRejected, nil)
	co.broadcast(sess.channel(), evCallRejected, map[string]any{
		"videoCallId":    sess.ID,
		"conversationId": sess.ConversationID,
	}, nil)
}

// handleCallEnd terminates a call from either side. Ending an active call
// records its duration; ending one still pending collapses to a cancel,
// the only terminal transition reachable from pending by the caller. A
// second end finds no session and is silently dropped, keeping the first
// recorded duration.
func (co *Core) handleCallEnd(ctx context.Context, c *Client, p *CallEnd) {
	sess, ok := co.loadSession(ctx, p.VideoCallID)
	if !ok {
		return
	}
	if !sess.hasParty(c.identity.UserID) {
		co.sendCallError(c, authorizationError("unauthorized"))
		return
	}

	if sess.Status == CallActive {
		duration := co.callDuration(sess)
		co.finishCall(ctx, c, sess, CallEnded, &duration)
		co.broadcast(sess.channel(), evCallEnded, map[string]any{
			"videoCallId":    sess.ID,
			"conversationId": sess.ConversationID,
			"duration":       duration,
		}, nil)
		return
	}

	co.finishCall(ctx, c, sess, CallCancelled, nil)
	co.broadcast(sess.channel(), evCallCancelled, map[string]any{
		"videoCallId":    sess.ID,
		"conversationId": sess.ConversationID,
	}, nil)
}

// handleCallStatus carries both the explicit cancel transition and the
// generic status relay.
func (co *Core) handleCallStatus(ctx context.Context, c *Client, p *CallStatusUpdate) {
	sess, ok := co.loadSession(ctx, p.VideoCallID)
	if !ok {
		return
	}
	if !sess.hasParty(c.identity.UserID) {
		co.sendCallError(c, authorizationError("unauthorized"))
		return
	}

	if CallStatus(p.Status) == CallCancelled {
		if sess.Status != CallPending && sess.Status != CallActive {
			co.sendCallError(c, conflictError("invalid call state"))
			return
		}
		co.finishCall(ctx, c, sess, CallCancelled, nil)
		co.broadcast(sess.channel(), evCallCancelled, map[string]any{
			"videoCallId":    sess.ID,
			"conversationId": sess.ConversationID,
		}, nil)
		return
	}

	co.broadcast(sess.channel(), evCallStatus, map[string]any{
		"videoCallId": sess.ID,
		"status":      p.Status,
		"from":        c.identity.UserID,
	}, c)
}

// The signaling relays: verbatim fan-out, no persistence. A missing
// session is a normal race (expired, ended, hung up) and drops silently;
// a role violation is surfaced to the sender only.

func (co *Core) handleCallOffer(ctx context.Context, c *Client, p *CallOffer) {
	co.relaySignal(ctx, c, p.VideoCallID, evCallOffer, "offer", p.Offer, roleInitiator)
}

func (co *Core) handleCallAnswer(ctx context.Context, c *Client, p *CallAnswer) {
	co.relaySignal(ctx, c, p.VideoCallID, evCallAnswer, "answer", p.Answer, roleParticipant)
}

func (co *Core) handleCallICECandidate(ctx context.Context, c *Client, p *CallICECandidate) {
	co.relaySignal(ctx, c, p.VideoCallID, evCallICECandidate, "candidate", p.Candidate, roleAny)
}

type callRole int

const (
	roleAny callRole = iota
	roleInitiator
	roleParticipant
)

func (co *Core) relaySignal(ctx context.Context, c *Client, callID, event, field string, payload any, role callRole) {
	sess, ok := co.loadSession(ctx, callID)
	if !ok {
		return
	}

	allowed := sess.hasParty(c.identity.UserID)
	switch role {
	case roleInitiator:
		allowed = c.identity.UserID == sess.InitiatorID
	case roleParticipant:
		allowed = c.identity.UserID == sess.ParticipantID
	}
	if !allowed {
		co.sendCallError(c, authorizationError("unauthorized"))
		return
	}

	co.broadcast(sess.channel(), event, map[string]any{
		"videoCallId": sess.ID,
		field:         payload,
		"from":        c.identity.UserID,
	}, c)
}

func (co *Core) callDuration(sess *callSession) int {
	started := time.UnixMilli(sess.StartedAt)
	return int(co.now().Sub(started) / time.Second)
}

// finishCall records the terminal state durably and deletes the ephemeral
// session and both markers immediately rather than waiting out the TTL.
func (co *Core) finishCall(ctx context.Context, c *Client, sess *callSession, status CallStatus, durationSeconds *int) {
	if err := co.calls.Finish(ctx, sess.ID, status, co.now(), durationSeconds); err != nil {
		co.logger.Error("call record finish failed", "callId", sess.ID, "error", err)
	}
	if err := co.eph.Delete(ctx,
		callKey(sess.ID),
		userInCallKey(sess.InitiatorID),
		userInCallKey(sess.ParticipantID),
	); err != nil {
		co.logger.Error("call session cleanup failed", "callId", sess.ID, "error", err)
	}
	if c != nil && c.activeCall == sess.ID {
		c.activeCall = ""
	}
}

// teardownCallOnDisconnect closes out whatever call the disconnecting
// user was party to: pending becomes cancelled, active becomes ended with
// its duration.
func (co *Core) teardownCallOnDisconnect(ctx context.Context, c *Client) {
	callID := c.activeCall
	if callID == "" {
		marker, found, err := co.eph.Get(ctx, userInCallKey(c.identity.UserID))
		if err != nil || !found {
			return
		}
		callID = marker
	}

	sess, ok := co.loadSession(ctx, callID)
	if !ok {
		// Session already gone; drop the stale marker so the user can
		// call again before its TTL runs out.
		co.eph.Delete(ctx, userInCallKey(c.identity.UserID))
		return
	}

	if sess.Status == CallActive {
		duration := co.callDuration(sess)
		co.finishCall(ctx, c, sess, CallEnded, &duration)
		co.broadcast(sess.channel(), evCallEnded, map[string]any{
			"videoCallId":    sess.ID,
			"conversationId": sess.ConversationID,
			"duration":       duration,
		}, nil)
		return
	}

	co.finishCall(ctx, c, sess, CallCancelled, nil)
	co.broadcast(sess.channel(), evCallCancelled, map[string]any{
		"videoCallId":    sess.ID,
		"conversationId": sess.ConversationID,
	}, nil)
}
