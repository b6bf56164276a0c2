package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store"
)

// subscriptionID is the only live query carried by each connection.
const subscriptionID = "q1"

// inboundFrame mirrors proto.Outbound with the payload left raw.
type inboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *proto.Error    `json:"error,omitempty"`
}

type liveSubscription struct {
	*store.WatchSubscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops the live query and waits for its connection to shut down.
func (s *liveSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return s.WatchSubscription.Close()
}

// Subscribe implements store.LiveStore over one WebSocket connection per query.
// The subscription ends when ctx is done, Close is called or the connection drops.
func (c *Client) Subscribe(ctx context.Context, q store.Query) (store.Subscription, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if c.ctx.Err() != nil {
		return nil, store.ErrClosed
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx, token)
	if err != nil {
		return nil, err
	}

	err = wsjson.Write(ctx, conn, proto.Inbound{
		Type: proto.InboundTypeSubscribe,
		Data: mustJSON(proto.SubscribeData{
			ID:         subscriptionID,
			Collection: q.Collection,
			Direction:  q.Direction,
			Limit:      q.Limit,
		}),
	})
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, fmt.Errorf("%w: send subscribe: %v", store.ErrUnavailable, err)
	}

	connCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)

	sub := &liveSubscription{
		WatchSubscription: c.watcher.Add(q),
		cancel:            cancel,
		done:              make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer stop()
		defer sub.WatchSubscription.Close()

		err := c.readSnapshots(connCtx, conn, sub.WatchSubscription)
		if connCtx.Err() != nil {
			_ = conn.CloseNow()
			return
		}
		c.log.Warn().Err(err).Str("collection", q.Collection).Msg("live query connection lost")
		sub.Deliver(store.Snapshot{Err: fmt.Errorf("%w: %v", store.ErrUnavailable, err)})
		_ = conn.CloseNow()
	}()

	return sub, nil
}

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/ws"
	u.RawQuery = url.Values{"protocol": {strconv.Itoa(proto.ProtocolVersion)}}.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	// The handshake is bounded by ctx; a client-wide timeout would also cut
	// the hijacked connection.
	hc := *c.http
	dialCtx := ctx
	if hc.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, hc.Timeout)
		defer cancel()
		hc.Timeout = 0
	}

	conn, resp, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		HTTPClient: &hc,
		HTTPHeader: header,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.dropToken(token)
		}
		return nil, fmt.Errorf("%w: dial live query: %v", store.ErrUnavailable, err)
	}
	conn.SetReadLimit(4 << 20)
	return conn, nil
}

// readSnapshots forwards frames until the connection fails or ctx ends.
func (c *Client) readSnapshots(ctx context.Context, conn *websocket.Conn, sub *store.WatchSubscription) error {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		switch frame.Type {
		case proto.OutboundTypeEvent:
			if frame.Event != proto.EventSnapshot {
				continue
			}
			var data proto.EventSnapshotData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				sub.Deliver(store.Snapshot{Err: fmt.Errorf("decode snapshot: %w", err)})
				continue
			}
			sub.Deliver(store.Snapshot{Docs: data.Docs})
		case proto.OutboundTypeError:
			perr := frame.Error
			if perr == nil {
				perr = &proto.Error{Code: proto.CodeInternalError, Msg: "unknown error"}
			}
			if perr.Code == proto.CodeInvalidQuery || perr.Code == proto.CodeBadRequest {
				sub.Deliver(store.Snapshot{Err: fmt.Errorf("%w: %s", store.ErrInvalidPath, perr.Msg)})
				continue
			}
			// Server-side failures end the query; the connection is useless after that.
			return perr
		}
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

var _ store.Store = (*Client)(nil)
