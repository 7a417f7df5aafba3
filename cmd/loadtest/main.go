// Load generator for the websocket event core: N clients join one room
// and spam chat messages while counting the frames fanned back out.
// Point it at a server running with PERMISSIVE_RELAY=true unless the
// generated user ids actually exist in the database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var (
	wsURL    = flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	secret   = flag.String("secret", "", "JWT signing secret (must match the server)")
	roomID   = flag.Int("room", 1, "room id to join")
	orgID    = flag.Int("org", 1, "organization id baked into the tokens")
	users    = flag.Int("users", 50, "concurrent clients")
	msgCount = flag.Int("messages", 20, "messages per client")
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	flag.Parse()
	if *secret == "" {
		log.Fatal("-secret is required")
	}

	log.Printf("starting load test: %d users, %d messages each", *users, *msgCount)

	var received atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *users; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			runClient(userID, &received)
		}(i + 1)
	}
	wg.Wait()

	log.Printf("load test complete: %d frames received", received.Load())
}

func runClient(userID int, received *atomic.Int64) {
	token, err := signToken(userID)
	if err != nil {
		log.Printf("token signing failed [user %d]: %v", userID, err)
		return
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", *wsURL, token), nil)
	if err != nil {
		log.Printf("dial failed [user %d]: %v", userID, err)
		return
	}
	defer conn.Close()

	// Drain broadcasts in the background so the server's send buffer for
	// this client never fills up.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	send := func(event string, data any) error {
		raw, _ := json.Marshal(data)
		return conn.WriteJSON(envelope{Event: event, Data: raw})
	}

	if err := send("joinRoom", map[string]int{"roomId": *roomID, "userId": userID}); err != nil {
		log.Printf("join failed [user %d]: %v", userID, err)
		return
	}

	for i := 0; i < *msgCount; i++ {
		err := send("chat:message", map[string]any{
			"roomId":  *roomID,
			"content": fmt.Sprintf("load test message %d from user %d", i, userID),
		})
		if err != nil {
			log.Printf("send failed [user %d]: %v", userID, err)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Linger briefly to keep receiving fan-out from the other clients.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func signToken(userID int) (string, error) {
	claims := jwt.MapClaims{
		"userId":         userID,
		"organizationId": *orgID,
		"username":       fmt.Sprintf("loadtest-%d", userID),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(*secret))
}
