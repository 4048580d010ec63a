package racing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// CategoryFeed connects to the category's bot websocket, which announces
// race rooms as they open and change. The connection lives until the
// context ends or the socket errors; reconnecting is the caller's job.
func (c *Client) CategoryFeed(ctx context.Context, events chan<- Event) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("wss://%s/ws/o/bot/%s?token=%s", c.host, c.category, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return errors.Wrap(err, "dialing category feed")
	}
	defer conn.Close()
	go closeOnDone(ctx, conn)
	return readLoop(conn, events)
}

// RoomConn is the bot's websocket connection to one race room.
type RoomConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialRoom connects to a room's bot websocket. The path comes from the
// room's websocket_bot_url data field.
func (c *Client) DialRoom(ctx context.Context, botPath string) (*RoomConn, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("wss://%s%s?token=%s", c.host, botPath, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dialing race room")
	}
	return &RoomConn{conn: conn}, nil
}

func (r *RoomConn) Close() error {
	return r.conn.Close()
}

// Listen delivers room events until the connection drops or ctx ends.
func (r *RoomConn) Listen(ctx context.Context, events chan<- Event) error {
	go closeOnDone(ctx, r.conn)
	return readLoop(r.conn, events)
}

func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	conn.Close()
}

func readLoop(conn *websocket.Conn, events chan<- Event) error {
	for {
		var raw struct {
			Type    string          `json:"type"`
			Race    json.RawMessage `json:"race"`
			Message json.RawMessage `json:"message"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			return err
		}
		ev := Event{Type: raw.Type}
		if len(raw.Race) > 0 {
			ev.Race = &RaceData{}
			if err := json.Unmarshal(raw.Race, ev.Race); err != nil {
				return errors.Wrap(err, "malformed race data")
			}
		}
		if len(raw.Message) > 0 {
			ev.Chat = &ChatMessage{}
			if err := json.Unmarshal(raw.Message, ev.Chat); err != nil {
				return errors.Wrap(err, "malformed chat message")
			}
		}
		events <- ev
	}
}

func (r *RoomConn) send(action string, data any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(map[string]any{"action": action, "data": data})
}

// ActionButton is an inline chat button offered alongside a message.
type ActionButton struct {
	Label       string `json:"label"`
	Message     string `json:"message"`
	HelpText    string `json:"help_text,omitempty"`
	Survey      any    `json:"survey,omitempty"`
	SubmitLabel string `json:"submit,omitempty"`
}

// SendMessage posts a chat message, optionally with action buttons.
func (r *RoomConn) SendMessage(msg string, actions map[string]ActionButton) error {
	data := map[string]any{
		"message": msg,
		"guid":    uuid.NewString(),
	}
	if len(actions) > 0 {
		data["actions"] = actions
	}
	return r.send("message", data)
}

// SetInfo sets the room's bot-controlled info line.
func (r *RoomConn) SetInfo(info string) error {
	return r.send("setinfo", map[string]string{"info_bot": info})
}

// AcceptRequest lets a requesting entrant into an invitational room.
func (r *RoomConn) AcceptRequest(userID string) error {
	return r.send("accept_request", map[string]string{"user": userID})
}

// Invite invites a user to the race.
func (r *RoomConn) Invite(userID string) error {
	return r.send("invite", map[string]string{"user": userID})
}

// AddMonitor promotes an entrant to race monitor.
func (r *RoomConn) AddMonitor(userID string) error {
	return r.send("add_monitor", map[string]string{"user": userID})
}
