package realtime

import (
	"context"
	"testing"
)

func TestDecodeInboundKnownEvent(t *testing.T) {
	raw := []byte(`{"event":"joinRoom","data":{"roomId":5,"userId":7}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	join, ok := ev.(*JoinRoom)
	if !ok {
		t.Fatalf("expected *JoinRoom, got %T", ev)
	}
	if join.RoomID != 5 || join.UserID != 7 {
		t.Fatalf("unexpected payload: %+v", join)
	}
}

func TestDecodeInboundRejectsUnknownEvent(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"event":"admin:shutdown","data":{}}`)); err == nil {
		t.Fatalf("unknown event name must be rejected")
	}
}

func TestDecodeInboundRejectsMalformedFrames(t *testing.T) {
	cases := []string{
		`{not json`,
		`{"event":"chat:message","data":{"roomId":"five"}}`,
	}
	for _, raw := range cases {
		if _, err := DecodeInbound([]byte(raw)); err == nil {
			t.Fatalf("expected decode error for %s", raw)
		}
	}
}

func TestDecodeInboundOfferCarriesSDP(t *testing.T) {
	raw := []byte(`{"event":"video:call:offer","data":{"videoCallId":"abc","offer":{"type":"offer","sdp":"v=0\r\n"}}}`)

	ev, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	offer, ok := ev.(*CallOffer)
	if !ok {
		t.Fatalf("expected *CallOffer, got %T", ev)
	}
	if offer.VideoCallID != "abc" || offer.Offer.SDP != "v=0\r\n" {
		t.Fatalf("unexpected offer: %+v", offer)
	}
}

func TestMalformedInboundFrameIsDroppedNotFatal(t *testing.T) {
	f := newFixture(Config{})
	c := f.client(1, "u1")

	f.core.HandleEvent(context.Background(), c, []byte(`{"event":"joinRoom","data":{"roomId":"x"}}`))

	if evs := drain(t, c); len(evs) != 0 {
		t.Fatalf("malformed frame must produce no outbound events: %v", evs)
	}
}
