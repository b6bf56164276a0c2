package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/roomchat"
	"github.com/vovakirdan/roomchat/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func run() error {
	base := flag.String("addr", "http://localhost:8080", "document service base URL")
	user := flag.String("user", "tester", "sender name")
	room := flag.String("room", "SMOKE1", "room code")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	code := roomchat.NormalizeRoomCode(*room)
	if !roomchat.IsValidRoomCode(code) {
		return fmt.Errorf("room code %q must be 6 chars A-Z/0-9", *room)
	}

	token, err := fetchToken(ctx, *base)
	if err != nil {
		return err
	}

	wsURL, err := url.Parse(*base)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{"token": {token}, "protocol": {strconv.Itoa(proto.ProtocolVersion)}}.Encode()

	conn, _, err := websocket.Dial(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	subscribe, err := json.Marshal(proto.SubscribeData{
		ID:         "smoke",
		Collection: roomchat.MessagesPath(code),
		Limit:      roomchat.DefaultMessageLimit,
	})
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSubscribe, Data: subscribe}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	sent := false
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if f.Type == proto.OutboundTypeError {
			return fmt.Errorf("server error: %v", f.Error)
		}
		if f.Event != proto.EventSnapshot {
			continue
		}

		var snap proto.EventSnapshotData
		if err := json.Unmarshal(f.Data, &snap); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		fmt.Printf("Snapshot: id=%s docs=%d\n", snap.ID, len(snap.Docs))

		if !sent {
			if err := postMessage(ctx, *base, token, code, *user, *text); err != nil {
				return err
			}
			sent = true
			continue
		}

		for _, doc := range snap.Docs {
			var msg struct {
				SenderName string `json:"senderName"`
				Text       string `json:"text"`
			}
			if err := doc.Decode(&msg); err != nil {
				continue
			}
			if msg.SenderName == *user && msg.Text == *text {
				fmt.Printf("Message: room=%s user=%s text=%q at=%s\n", code, msg.SenderName, msg.Text, doc.CreatedAt.Format(time.RFC3339))
				return nil
			}
		}
	}
}

func fetchToken(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/token", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		return "", fmt.Errorf("fetch token: status %d", resp.StatusCode)
	}
	return body.Token, nil
}

func postMessage(ctx context.Context, base, token, code, user, text string) error {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{"senderName": user, "text": text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		base+"/api/collections/"+roomchat.MessagesPath(code), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("post message: status %d", resp.StatusCode)
	}
	var doc store.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err == nil {
		fmt.Printf("Posted: path=%s\n", doc.Path)
	}
	return nil
}
