package smile

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-smile/pkg/web"
)

// Watch prints dashboard events from the /ws/score endpoint at url until ctx
// is cancelled or the server closes the connection.
func Watch(ctx context.Context, url string, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	for {
		var e web.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, FormatEvent(e))
	}
}

// FormatEvent renders one event as a terminal line.
func FormatEvent(e web.Event) string {
	ts := e.Time.Format("15:04:05")
	switch e.Type {
	case web.EventSnapshot:
		if e.Snapshot == nil {
			return ts + " snapshot"
		}
		line := fmt.Sprintf("%s %s score=%d", ts, e.Snapshot.State, e.Snapshot.Score)
		if e.Message != nil {
			line += " " + e.Message.Text
		}
		return line
	case web.EventScore:
		return fmt.Sprintf("%s score=%d", ts, e.Score)
	case web.EventMessage:
		if e.Message == nil {
			return ts + " message"
		}
		return fmt.Sprintf("%s %s %s (%s)", ts, e.Message.ID, e.Message.Text, e.Message.English)
	default:
		parts := []string{ts, e.Type}
		for _, s := range []string{e.State, e.Phase, e.Status, e.Text} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
}
