package grpcx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cwrk-planet/qaroom/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client — клиент RoomService для CLI и тестов.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// Dial открывает plaintext-соединение; token может быть пустым.
func Dial(addr, token string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return NewClient(cc, token), cc, nil
}

func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

func (c *Client) GetRoom(ctx context.Context, roomID domain.RoomID) (domain.RoomView, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), GetRoomMethod, wrapperspb.String(string(roomID)), out); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.RoomView{}, domain.ErrRoomNotFound
		}
		return domain.RoomView{}, err
	}
	return decodeView(out.AsMap())
}

// WatchRoom вызывает fn на каждое событие, пока стрим не закончится или fn
// не вернёт ошибку. Для отсутствующей комнаты fn получает ErrRoomNotFound.
func (c *Client) WatchRoom(ctx context.Context, roomID domain.RoomID, fn func(domain.RoomView, error) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(c.outgoing(ctx), &RoomServiceDesc.Streams[0], WatchRoomMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(wrapperspb.String(string(roomID))); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		ev := new(structpb.Struct)
		if err := stream.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		m := ev.AsMap()
		switch m["type"] {
		case EventRoomNotFound:
			err = fn(domain.RoomView{ID: roomID}, domain.ErrRoomNotFound)
		case EventRoomState:
			view, _ := m["view"].(map[string]any)
			v, derr := decodeView(view)
			if derr != nil {
				return derr
			}
			err = fn(v, nil)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, mdAuthorization, "Bearer "+c.token)
}

func decodeView(m map[string]any) (domain.RoomView, error) {
	var v domain.RoomView
	b, err := json.Marshal(m)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode room view: %w", err)
	}
	return v, nil
}
