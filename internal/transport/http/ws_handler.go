package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/metrics"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store"
)

const (
	maxFrameBytes  = 64 << 10
	outboundBuffer = 16
)

// WSHandler upgrades HTTP connections and serves live queries over them.
type WSHandler struct {
	store     store.LiveStore
	rateLimit int
	metrics   *metrics.Metrics
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
// rateLimit caps inbound frames per minute per connection; 0 disables it.
func NewWSHandler(st store.LiveStore, rateLimit int, m *metrics.Metrics, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{store: st, rateLimit: rateLimit, metrics: m, log: logger}
}

// wsConn is the state of one connection.
type wsConn struct {
	h        *WSHandler
	conn     *websocket.Conn
	clientID string
	log      zerolog.Logger
	out      chan proto.Outbound

	mu   sync.Mutex
	subs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// Handle serves GET /ws. It must run behind AuthMiddleware.
func (h *WSHandler) Handle(c *gin.Context) {
	if v := c.Query("protocol"); v != "" && v != strconv.Itoa(proto.ProtocolVersion) {
		h.rejectVersion(c)
		return
	}

	conn, err := websocket.Accept(rawWriter(c), c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(maxFrameBytes)

	clientID := c.GetString(ContextKeyClientID)
	wc := &wsConn{
		h:        h,
		conn:     conn,
		clientID: clientID,
		log:      h.log.With().Str("client_id", clientID).Logger(),
		out:      make(chan proto.Outbound, outboundBuffer),
		subs:     make(map[string]context.CancelFunc),
	}

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	wc.log.Debug().Msg("ws connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- wc.readLoop(ctx)
	}()
	go func() {
		errCh <- wc.writeLoop(ctx)
	}()

	err = <-errCh
	cancel() // stop the other goroutine and every live query
	<-errCh
	wc.wg.Wait()

	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		wc.log.Warn().Err(err).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
}

// rawWriter returns the net/http writer under gin's wrapper. gin refuses to
// hijack once the upgrade headers have been flushed through its own writer.
func rawWriter(c *gin.Context) stdhttp.ResponseWriter {
	if u, ok := c.Writer.(interface{ Unwrap() stdhttp.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return c.Writer
}

func (h *WSHandler) rejectVersion(c *gin.Context) {
	conn, err := websocket.Accept(rawWriter(c), c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	h.metrics.ProtocolError(proto.CodeUnsupportedVersion)
	_ = wsjson.Write(c.Request.Context(), conn, proto.ErrorFrame("", proto.CodeUnsupportedVersion,
		"server speaks protocol "+strconv.Itoa(proto.ProtocolVersion)))
	conn.Close(websocket.StatusPolicyViolation, "unsupported protocol version")
}

func closeStatus(err error) (websocket.StatusCode, string) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, "closing"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return s, "closing"
	case -1:
		return websocket.StatusInternalError, err.Error()
	default:
		return s, err.Error()
	}
}

func (wc *wsConn) readLoop(ctx context.Context) error {
	limiter := newRateLimiter(wc.h.rateLimit)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, wc.conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			wc.sendError(ctx, "", proto.CodeRateLimited, "too many frames, slow down")
			continue
		}

		switch inbound.Type {
		case proto.InboundTypeSubscribe:
			var data proto.SubscribeData
			if perr := decodeInbound(inbound, &data); perr != nil {
				wc.sendError(ctx, "", perr.Code, perr.Msg)
				continue
			}
			wc.subscribe(ctx, data)
		case proto.InboundTypeUnsubscribe:
			var data proto.UnsubscribeData
			if perr := decodeInbound(inbound, &data); perr != nil {
				wc.sendError(ctx, "", perr.Code, perr.Msg)
				continue
			}
			wc.unsubscribe(data.ID)
		default:
			wc.sendError(ctx, "", proto.CodeUnknownType, "unknown message type")
		}
	}
}

func (wc *wsConn) writeLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-wc.out:
			if err := wsjson.Write(ctx, wc.conn, frame); err != nil {
				wc.log.Error().Err(err).Msg("write ws frame")
				return err
			}
			if frame.Event == proto.EventSnapshot {
				wc.h.metrics.SnapshotSent()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (wc *wsConn) subscribe(ctx context.Context, data proto.SubscribeData) {
	if data.ID == "" {
		wc.sendError(ctx, "", proto.CodeBadRequest, "id is required")
		return
	}
	q, err := data.Query().Normalize()
	if err != nil {
		perr := queryError(err)
		wc.sendError(ctx, data.ID, perr.Code, perr.Msg)
		return
	}

	wc.mu.Lock()
	if _, dup := wc.subs[data.ID]; dup {
		wc.mu.Unlock()
		wc.sendError(ctx, data.ID, proto.CodeDuplicateID, "subscription id already in use")
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	wc.subs[data.ID] = cancel
	wc.mu.Unlock()

	sub, err := wc.h.store.Subscribe(subCtx, q)
	if err != nil {
		wc.unsubscribe(data.ID)
		wc.log.Warn().Err(err).Str("collection", q.Collection).Msg("subscribe failed")
		wc.sendError(ctx, data.ID, proto.CodeSubscription, "subscribe failed")
		return
	}

	wc.h.metrics.SubscriptionOpened()
	wc.log.Debug().Str("sub", data.ID).Str("collection", q.Collection).Msg("live query started")

	wc.wg.Add(1)
	go func() {
		defer wc.wg.Done()
		defer wc.h.metrics.SubscriptionClosed()
		defer sub.Close()
		wc.forward(subCtx, data.ID, sub)
	}()
}

// forward relays snapshots until the subscription or connection ends.
func (wc *wsConn) forward(ctx context.Context, id string, sub store.Subscription) {
	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				if ctx.Err() == nil {
					wc.sendError(ctx, id, proto.CodeSubscription, "live query ended")
					wc.unsubscribe(id)
				}
				return
			}
			frame := proto.Snapshot(id, snap.Docs)
			if snap.Err != nil {
				wc.log.Warn().Err(snap.Err).Str("sub", id).Msg("snapshot failed")
				frame = proto.ErrorFrame(id, proto.CodeSubscription, "snapshot failed")
				wc.h.metrics.ProtocolError(proto.CodeSubscription)
			}
			if !wc.send(ctx, frame) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (wc *wsConn) unsubscribe(id string) {
	wc.mu.Lock()
	cancel, ok := wc.subs[id]
	delete(wc.subs, id)
	wc.mu.Unlock()

	if ok {
		cancel()
		wc.log.Debug().Str("sub", id).Msg("live query stopped")
	}
}

func (wc *wsConn) send(ctx context.Context, frame proto.Outbound) bool {
	select {
	case wc.out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (wc *wsConn) sendError(ctx context.Context, id, code, msg string) {
	wc.h.metrics.ProtocolError(code)
	wc.send(ctx, proto.ErrorFrame(id, code, msg))
}
