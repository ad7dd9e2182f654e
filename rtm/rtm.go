// Package rtm is the real-time-messaging transport client.
// It offers the two primitives the orchestrator needs: publish a payload to a
// user, and subscribe to inbound message events on a channel. The broker
// behind the websocket is a black box.
package rtm

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glinthq/convgate/pkg/config"
)

// Envelope is the JSON frame exchanged with the broker
type Envelope struct {
	Type        string `json:"type"` // message, subscribe
	AppID       string `json:"appId,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Target      string `json:"target,omitempty"`
	Channel     string `json:"channel,omitempty"`
	Message     string `json:"message,omitempty"`
	CustomType  string `json:"customType,omitempty"`
	ChannelType string `json:"channelType,omitempty"`
}

// PublishOptions carry the out-of-band routing hints for a publish
type PublishOptions struct {
	CustomType  string
	ChannelType string
}

// MessageHandler is invoked once per inbound message event
type MessageHandler func(publisher, message string)

type subscription struct {
	appID    string
	fromUser string
	channel  string
	handler  MessageHandler
}

// Client is a websocket RTM connection. Writes are serialized by a mutex;
// gorilla connections do not support concurrent writers.
type Client struct {
	url      string
	identity string

	mu   sync.Mutex // guards conn and writes
	conn *websocket.Conn

	subsMu sync.RWMutex
	subs   []subscription

	stopOnce sync.Once
	stop     chan struct{}
}

// Dial connects to the RTM broker and starts the read loop
func Dial(url, identity string) (*Client, error) {
	c := &Client{
		url:      url,
		identity: identity,
		stop:     make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("rtm dial %s: %v", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Announce identity, then replay subscriptions so the broker resumes
	// routing after a reconnect.
	if err := c.write(Envelope{Type: "hello", Publisher: c.identity}); err != nil {
		return err
	}
	c.subsMu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.RUnlock()
	for _, sub := range subs {
		_ = c.write(Envelope{Type: "subscribe", AppID: sub.appID, Publisher: c.identity, Channel: sub.channel})
	}

	log.Printf("[RTM] connected: %s", c.url)
	return nil
}

func (c *Client) write(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("rtm not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(config.RTMWriteTimeout))
	return c.conn.WriteJSON(env)
}

// Publish sends payload to target. Returns false on failure; delivery
// failures are logged and not retried.
func (c *Client) Publish(target, payload string, opts PublishOptions) bool {
	err := c.write(Envelope{
		Type:        "message",
		Publisher:   c.identity,
		Target:      target,
		Message:     payload,
		CustomType:  opts.CustomType,
		ChannelType: opts.ChannelType,
	})
	if err != nil {
		log.Printf("[RTM] publish to %s failed: %v", target, err)
		return false
	}
	return true
}

// SubscribeMessages registers a handler for inbound message events matching
// (appID, fromUser, channel). Empty fromUser matches any publisher.
func (c *Client) SubscribeMessages(appID, fromUser, channel string, handler MessageHandler) {
	c.subsMu.Lock()
	c.subs = append(c.subs, subscription{appID: appID, fromUser: fromUser, channel: channel, handler: handler})
	c.subsMu.Unlock()

	if err := c.write(Envelope{Type: "subscribe", AppID: appID, Publisher: c.identity, Channel: channel}); err != nil {
		log.Printf("[RTM] subscribe %s/%s failed: %v", appID, channel, err)
	}
}

func (c *Client) readLoop() {
	backoff := config.RTMReconnectMin
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			if !c.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			if err := c.connect(); err != nil {
				log.Printf("[RTM] reconnect failed: %v", err)
			}
			continue
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			log.Printf("[RTM] read error: %v, reconnecting", err)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			conn.Close()
			continue
		}
		backoff = config.RTMReconnectMin

		if env.Type != "message" {
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.subsMu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.RUnlock()

	for _, sub := range subs {
		if sub.appID != "" && env.AppID != "" && sub.appID != env.AppID {
			continue
		}
		if sub.fromUser != "" && sub.fromUser != env.Publisher {
			continue
		}
		if sub.channel != "" && env.Channel != "" && sub.channel != env.Channel {
			continue
		}
		sub.handler(env.Publisher, env.Message)
	}
}

func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-c.stop:
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d = d * 3 / 2
	if d > config.RTMReconnectMax {
		return config.RTMReconnectMax
	}
	return d
}

// Close stops the read loop and closes the connection
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// DecodeEnvelope parses a raw broker frame
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
