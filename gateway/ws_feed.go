package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const readDeadline = 60 * time.Second

// DealFeed 订阅券商成交回报推送通道并连接真实 WS。
// 仅做连接与读取；解析失败的消息逐条跳过，不中断连接。
type DealFeed struct {
	Endpoint string
	Dialer   *websocket.Dialer

	// OnSkip 可选：解析失败时回调，用于记日志/计数。
	OnSkip func(raw []byte, err error)
}

func NewDealFeed(endpoint string) *DealFeed {
	return &DealFeed{
		Endpoint: endpoint,
		Dialer:   websocket.DefaultDialer,
	}
}

// Run 连接推送端点并循环读取，把解析出的回报交给 dispatch。
// 连接断开或 ctx 取消时返回；重连策略由调用方负责。
func (f *DealFeed) Run(ctx context.Context, dispatch DealCallback) error {
	if f.Endpoint == "" {
		return fmt.Errorf("ws endpoint required")
	}
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, f.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.Endpoint, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		kind, ev, err := ParseDealMessage(message)
		if err != nil {
			if f.OnSkip != nil {
				f.OnSkip(message, err)
			}
			continue
		}
		if dispatch != nil {
			dispatch(kind, ev)
		}
	}
}
