package realtime

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func presenceKey(roomID int) string {
	return fmt.Sprintf("room:%d:users", roomID)
}

func roomIDFromChannel(ch Channel) (int, bool) {
	s, ok := strings.CutPrefix(string(ch), "room:")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// handleJoinRoom subscribes the connection, records presence, and tells
// the room. Rejoining is a no-op beyond the re-broadcast. Malformed
// payloads are logged and dropped, never surfaced.
func (co *Core) handleJoinRoom(ctx context.Context, c *Client, p *JoinRoom) {
	if p.RoomID == 0 || p.UserID == 0 {
		co.logger.Warn("joinRoom missing roomId or userId", "userId", c.identity.UserID)
		return
	}

	ch := RoomChannel(p.RoomID)
	co.hub.Subscribe(c, ch)

	if err := co.eph.SetAdd(ctx, presenceKey(p.RoomID), strconv.Itoa(p.UserID)); err != nil {
		co.logger.Error("presence add failed", "roomId", p.RoomID, "error", err)
	}

	co.broadcast(ch, evUserJoined, map[string]int{"userId": p.UserID}, c)
	co.broadcastRoomUsers(ctx, p.RoomID)
}

func (co *Core) handleLeaveRoom(ctx context.Context, c *Client, p *LeaveRoom) {
	if p.RoomID == 0 || p.UserID == 0 {
		co.logger.Warn("leaveRoom missing roomId or userId", "userId", c.identity.UserID)
		return
	}
	co.leaveRoom(ctx, c, p.RoomID, p.UserID)
}

func (co *Core) leaveRoom(ctx context.Context, c *Client, roomID, userID int) {
	ch := RoomChannel(roomID)
	co.hub.Unsubscribe(c, ch)

	if err := co.eph.SetRemove(ctx, presenceKey(roomID), strconv.Itoa(userID)); err != nil {
		co.logger.Error("presence remove failed", "roomId", roomID, "error", err)
	}

	co.broadcast(ch, evUserLeft, map[string]int{"userId": userID}, nil)
	co.broadcastRoomUsers(ctx, roomID)
}

// broadcastRoomUsers sends the full membership snapshot to everyone still
// subscribed. Snapshots reflect the set at the moment this handler ran;
// interleaving with concurrent joins is tolerated.
func (co *Core) broadcastRoomUsers(ctx context.Context, roomID int) {
	members, err := co.eph.SetMembers(ctx, presenceKey(roomID))
	if err != nil {
		co.logger.Error("presence read failed", "roomId", roomID, "error", err)
		return
	}

	users := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	sort.Ints(users)

	co.broadcast(RoomChannel(roomID), evRoomUsers, map[string]any{
		"roomId": roomID,
		"users":  users,
	}, nil)
}

// presenceDisconnect runs the leave sequence for every room this
// connection had joined and persists the offline flag.
func (co *Core) presenceDisconnect(ctx context.Context, c *Client) {
	for _, ch := range co.hub.ClientChannels(c) {
		if roomID, ok := roomIDFromChannel(ch); ok {
			co.leaveRoom(ctx, c, roomID, c.identity.UserID)
		}
	}

	if err := co.users.SetOnline(ctx, c.identity.UserID, false, co.now()); err != nil {
		co.logger.Error("offline flag write failed", "userId", c.identity.UserID, "error", err)
	}
}
