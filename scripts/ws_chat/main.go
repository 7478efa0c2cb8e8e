package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/huddle/internal/proto"
)

type incoming struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "identity token minted by huddle token, or a bare user id when the server has no jwt_secret")
	room := flag.String("room", "general", "room to join")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeRegister, proto.RegisterData{Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: *room}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s in room %s\n", *addr, *room)
	fmt.Println("Type messages and press Enter to send. Commands: /typing, /react <id> <emoji>, /read <id>, /call [audio|video], /accept <call>, /decline <call>, /end <call>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *room)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var in incoming
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if in.Type == proto.OutboundTypeError && in.Error != nil {
			fmt.Printf("! %s failed: %s (%s)\n", in.Error.Op, in.Error.Msg, in.Error.Code)
			continue
		}
		printEvent(in)
	}
}

func printEvent(in incoming) {
	switch in.Event {
	case "new_message", "message_updated", "message_deleted":
		var msg proto.Message
		if err := json.Unmarshal(in.Data, &msg); err != nil {
			log.Printf("unmarshal %s: %v", in.Event, err)
			return
		}
		switch {
		case msg.DeletedAt != nil:
			fmt.Printf("[%s] #%d deleted\n", msg.RoomID, msg.ID)
		case msg.EditedAt != nil:
			fmt.Printf("[%s] #%d %s (edited): %s\n", msg.RoomID, msg.ID, msg.SenderID, msg.Content)
		default:
			fmt.Printf("[%s] #%d %s: %s\n", msg.RoomID, msg.ID, msg.SenderID, msg.Content)
		}
	case "user_status_changed":
		var evt proto.EventUserStatus
		if err := json.Unmarshal(in.Data, &evt); err == nil {
			fmt.Printf("* %s is %s\n", evt.UserID, evt.Status)
		}
	case "user_typing":
		var evt proto.EventUserTyping
		if err := json.Unmarshal(in.Data, &evt); err == nil && evt.IsTyping {
			fmt.Printf("[%s] %s is typing...\n", evt.RoomID, evt.UserID)
		}
	case "call_invitation", "call_response", "call_ended":
		var evt proto.EventCall
		if err := json.Unmarshal(in.Data, &evt); err == nil {
			fmt.Printf("[%s] call %s %s (%s) %s %s\n", evt.Call.RoomID, evt.Call.ID, evt.Call.Status, evt.Call.Kind, evt.UserID, evt.Decision)
		}
	default:
		fmt.Printf("event=%s data=%s\n", in.Event, in.Data)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			typ, data, err := parseLine(room, text)
			if err != nil {
				fmt.Printf("! %v\n", err)
				continue
			}
			if err := send(ctx, conn, typ, data); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

// parseLine turns a line of input into an inbound command.
func parseLine(room, text string) (string, any, error) {
	if !strings.HasPrefix(text, "/") {
		return proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: room, Content: text}, nil
	}

	fields := strings.Fields(text)
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	switch fields[0] {
	case "/typing":
		return proto.InboundTypeTypingStart, proto.RoomData{RoomID: room}, nil
	case "/react":
		id, err := strconv.ParseInt(arg(1), 10, 64)
		if err != nil || arg(2) == "" {
			return "", nil, errors.New("usage: /react <message-id> <emoji>")
		}
		return proto.InboundTypeAddReaction, proto.ReactionData{MessageID: id, Emoji: arg(2)}, nil
	case "/read":
		data := proto.MarkReadData{RoomID: room}
		if id, err := strconv.ParseInt(arg(1), 10, 64); err == nil {
			data.MessageID = &id
		}
		return proto.InboundTypeMarkRead, data, nil
	case "/call":
		return proto.InboundTypeInitiateCall, proto.InitiateCallData{RoomID: room, Kind: arg(1)}, nil
	case "/accept", "/decline":
		if arg(1) == "" {
			return "", nil, fmt.Errorf("usage: %s <call-id>", fields[0])
		}
		return proto.InboundTypeCallResponse, proto.CallResponseData{CallID: arg(1), Decision: strings.TrimPrefix(fields[0], "/")}, nil
	case "/end":
		if arg(1) == "" {
			return "", nil, errors.New("usage: /end <call-id>")
		}
		return proto.InboundTypeEndCall, proto.CallRefData{CallID: arg(1)}, nil
	default:
		return "", nil, fmt.Errorf("unknown command %s", fields[0])
	}
}
