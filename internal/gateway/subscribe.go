package gateway

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// Client → server message types.
const (
	MsgSubscribe   = "SUBSCRIBE"
	MsgUnsubscribe = "UNSUBSCRIBE"
)

// SubscribeMsg is sent by the client to (un)subscribe from symbols.
//
//	{"type":"SUBSCRIBE","symbols":["AAPL","MSFT"],"req_id":"1"}
type SubscribeMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	ReqID   string   `json:"req_id,omitempty"`
}

// SubscribedMsg acknowledges a (un)subscribe with the resulting symbol set.
type SubscribedMsg struct {
	Type    string   `json:"type"` // "SUBSCRIBED"
	ReqID   string   `json:"req_id,omitempty"`
	Symbols []string `json:"symbols"`
}

// PongMsg answers a {"ping":<client ms>} message.
type PongMsg struct {
	Type     string `json:"type"`
	Ping     int64  `json:"ping"`
	ServerTS int64  `json:"server_ts"`
}

// ErrorResponse is sent when a client message cannot be handled.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

func (c *Client) handleSubscribe(msg SubscribeMsg) {
	if len(msg.Symbols) == 0 {
		SendError(c, msg.ReqID, "symbols are required")
		return
	}
	c.subMu.Lock()
	for _, s := range msg.Symbols {
		if s != "" {
			c.symbols[s] = true
		}
	}
	c.subMu.Unlock()

	c.hub.log.Debug("client subscribed", "symbols", msg.Symbols)
	c.ack(msg.ReqID)
}

func (c *Client) handleUnsubscribe(msg SubscribeMsg) {
	c.subMu.Lock()
	if len(msg.Symbols) == 0 {
		c.symbols = make(map[string]bool)
	}
	for _, s := range msg.Symbols {
		delete(c.symbols, s)
	}
	c.subMu.Unlock()

	c.hub.log.Debug("client unsubscribed", "symbols", msg.Symbols)
	c.ack(msg.ReqID)
}

func (c *Client) ack(reqID string) {
	syms := c.Symbols()
	sort.Strings(syms)
	SendJSON(c, SubscribedMsg{Type: "SUBSCRIBED", ReqID: reqID, Symbols: syms})
}

// SendJSON queues v for a registered client, dropping it if the buffer is full.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("ws marshal failed", "err", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("client send buffer full, dropping message")
	}
}

// SendError sends an ERROR message to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{Type: "ERROR", ReqID: reqID, Error: errMsg})
}
