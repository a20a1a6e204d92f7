package matching

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/fitmatch-backend/internal/auth"
)

func TestHubDeliversMatchNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r.WithContext(auth.WithUserID(r.Context(), 7)))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration is asynchronous; keep notifying until the client sees it.
	match := &MatchRecord{ID: 11, UserA: 3, UserB: 7, CreatedAt: testNow, Active: true}
	received := make(chan Message, 1)
	go func() {
		var msg struct {
			Type   string       `json:"type"`
			UserID int64        `json:"user_id"`
			Data   MatchMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err == nil {
			received <- Message{Type: msg.Type, UserID: msg.UserID, Data: msg.Data}
		}
	}()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case msg := <-received:
			assert.Equal(t, "new_match", msg.Type)
			assert.Equal(t, int64(7), msg.UserID)
			data := msg.Data.(MatchMessage)
			assert.Equal(t, int64(11), data.MatchID)
			assert.Equal(t, int64(3), data.PartnerID)
			return
		case <-ticker.C:
			hub.NotifyMatch(ctx, match)
		case <-deadline:
			t.Fatal("no notification received")
		}
	}
}

func TestServeWSRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHub().ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotifyMatchNeverBlocks(t *testing.T) {
	hub := NewHub()
	match := &MatchRecord{ID: 1, UserA: 1, UserB: 2}

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastSize; i++ {
			hub.NotifyMatch(context.Background(), match)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyMatch blocked without a running hub")
	}
}
