package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pulse/auth"
	"pulse/domain"
	"pulse/mocks"
	"pulse/runtime"
)

const testSecret = "test-secret"

type hubFixture struct {
	server   *httptest.Server
	registry *runtime.Registry
	rooms    *runtime.RoomIndex
}

func newHubFixture(t *testing.T, ctrl *gomock.Controller) *hubFixture {
	t.Helper()
	logger := slog.Default()
	registry := runtime.NewRegistry()
	rooms := runtime.NewRoomIndex()
	feed := runtime.NewFeed(logger, registry, rooms, time.Second)

	notifier := mocks.NewMockINotifier(ctrl)
	notifier.EXPECT().Replay(gomock.Any(), gomock.Any()).AnyTimes()

	wsServer := NewServer(logger, auth.NewVerifier([]byte(testSecret)),
		registry, rooms, feed, notifier, Config{
			HandshakeTimeout:     5 * time.Second,
			WriteTimeout:         5 * time.Second,
			PongTimeout:          time.Minute,
			PingInterval:         30 * time.Second,
			ReplayTimeout:        time.Second,
			ConnectionBufferSize: 16,
			MaxMessageSize:       4096,
		})

	server := httptest.NewServer(wsServer)
	t.Cleanup(server.Close)
	return &hubFixture{server: server, registry: registry, rooms: rooms}
}

func (f *hubFixture) dial(t *testing.T, identity domain.Identity) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken([]byte(testSecret), identity, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil drains frames until the wanted type shows up; other traffic from
// concurrent fan-out is skipped.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q", wantType)
		if f.Type == wantType {
			return f
		}
	}
}

func TestServer_Handshake(t *testing.T) {
	t.Run("should reject a missing or invalid credential with 401", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		req := require.New(t)
		fixture := newHubFixture(t, ctrl)

		url := "ws" + strings.TrimPrefix(fixture.server.URL, "http")
		_, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)

		req.Error(err)
		req.NotNil(resp)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should acknowledge the connection and register the session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		req := require.New(t)
		fixture := newHubFixture(t, ctrl)

		conn := fixture.dial(t, domain.Identity{UserID: "alice", DisplayName: "Alice"})

		ack := readUntil(t, conn, "connection_ack")
		var payload struct {
			UserID string `json:"user_id"`
		}
		req.NoError(json.Unmarshal(ack.Data, &payload))
		req.Equal("alice", payload.UserID)

		req.True(fixture.registry.IsOnline("alice"))
		req.ElementsMatch(
			[]domain.Room{domain.PersonalRoom("alice"), domain.RoomGeneral, domain.RoomBroadcast},
			fixture.rooms.RoomsOf("alice"))
	})

	t.Run("should also accept the credential as a query parameter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		req := require.New(t)
		fixture := newHubFixture(t, ctrl)

		token, err := auth.GenerateToken([]byte(testSecret),
			domain.Identity{UserID: "alice"}, time.Hour)
		req.NoError(err)

		url := "ws" + strings.TrimPrefix(fixture.server.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
		req.NoError(err)
		defer conn.Close()

		readUntil(t, conn, "connection_ack")
	})

	t.Run("should join the admin room for staff identities", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		req := require.New(t)
		fixture := newHubFixture(t, ctrl)

		conn := fixture.dial(t, domain.Identity{UserID: "root", Role: domain.RoleAdmin})
		readUntil(t, conn, "connection_ack")

		req.Contains(fixture.rooms.RoomsOf("root"), domain.RoomAdmin)
	})
}

func TestServer_RoomMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	fixture := newHubFixture(t, ctrl)

	conn := fixture.dial(t, domain.Identity{UserID: "alice"})
	readUntil(t, conn, "connection_ack")

	req.NoError(conn.WriteJSON(map[string]string{"type": "join_room", "room": "post:42"}))
	joined := readUntil(t, conn, "room_joined")
	var joinedPayload struct {
		Room string `json:"room"`
	}
	req.NoError(json.Unmarshal(joined.Data, &joinedPayload))
	req.Equal("post:42", joinedPayload.Room)

	req.NoError(conn.WriteJSON(map[string]string{"type": "leave_room", "room": "post:42"}))
	readUntil(t, conn, "room_left")
}

func TestServer_RejectedFrames(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	fixture := newHubFixture(t, ctrl)

	conn := fixture.dial(t, domain.Identity{UserID: "alice"})
	readUntil(t, conn, "connection_ack")

	// An unknown frame type gets a diagnostic; the connection survives.
	req.NoError(conn.WriteJSON(map[string]string{"type": "teleport"}))
	readUntil(t, conn, "error")

	req.NoError(conn.WriteJSON(map[string]string{"type": "join_room", "room": "post:42"}))
	readUntil(t, conn, "room_joined")
}

func TestServer_FanOutBetweenClients(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	fixture := newHubFixture(t, ctrl)

	alice := fixture.dial(t, domain.Identity{UserID: "alice", DisplayName: "Alice"})
	readUntil(t, alice, "connection_ack")
	bob := fixture.dial(t, domain.Identity{UserID: "bob", DisplayName: "Bob"})
	readUntil(t, bob, "connection_ack")

	// Both sit in the general room after the handshake.
	req.NoError(alice.WriteJSON(map[string]string{"type": "typing_start", "room": "general"}))

	typing := readUntil(t, bob, "user_typing")
	var payload struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	}
	req.NoError(json.Unmarshal(typing.Data, &payload))
	req.Equal("alice", payload.UserID)
	req.Equal("Alice", payload.DisplayName)
}

func TestServer_Disconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	fixture := newHubFixture(t, ctrl)

	alice := fixture.dial(t, domain.Identity{UserID: "alice"})
	readUntil(t, alice, "connection_ack")
	bob := fixture.dial(t, domain.Identity{UserID: "bob"})
	readUntil(t, bob, "connection_ack")

	req.NoError(bob.Close())

	offline := readUntil(t, alice, "user_offline")
	var payload struct {
		UserID string `json:"user_id"`
	}
	req.NoError(json.Unmarshal(offline.Data, &payload))
	req.Equal("bob", payload.UserID)

	// The registry and the room index settle shortly after the socket dies.
	req.Eventually(func() bool {
		return !fixture.registry.IsOnline("bob") && len(fixture.rooms.RoomsOf("bob")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
