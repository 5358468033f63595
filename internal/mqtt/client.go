// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqtt carries forecaster events over an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrStopped is returned by Connect after Disconnect.
var ErrStopped = errors.New("mqtt client stopped")

// Handler receives the topic and payload of one message.
type Handler func(topic string, payload []byte)

// Client wraps a paho client with context-aware connect, a publish timeout
// and subscriptions that are restored after a reconnect.
type Client struct {
	client mqtt.Client
	broker string
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool
	subs      map[string]Handler
	onConnect []func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(broker, clientID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		broker: broker,
		logger: logger.With("component", "mqtt", "client_id", clientID),
		subs:   make(map[string]Handler),
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connected", "broker", broker)
		c.resubscribe(mc)
		c.runOnConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost", "err", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits for the first connection, honouring ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect %s: %w", c.broker, err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Publish sends payload with QoS 1.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.logger.Debug("published", "topic", topic, "bytes", len(payload), "retained", retained)
	return nil
}

// Subscribe registers h for topic. The subscription is renewed on every
// reconnect.
func (c *Client) Subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	token := c.client.Subscribe(topic, 1, wrap(h))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.logger.Info("subscribed", "topic", topic)
	return nil
}

// OnConnect registers f to run after every (re)connection, once
// subscriptions are restored. Register before Connect.
func (c *Client) OnConnect(f func()) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, f)
	c.mu.Unlock()
}

func (c *Client) runOnConnect() {
	c.mu.RLock()
	hooks := append([]func(){}, c.onConnect...)
	c.mu.RUnlock()
	for _, f := range hooks {
		f()
	}
}

func (c *Client) resubscribe(mc mqtt.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, h := range c.subs {
		mc.Subscribe(topic, 1, wrap(h))
	}
}

func wrap(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect closes the connection. Safe to call more than once.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.client.Disconnect(250)
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
