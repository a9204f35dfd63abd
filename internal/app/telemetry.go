// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/rover_collector/internal/actuator"
	"github.com/relabs-tech/rover_collector/internal/config"
)

// telemetryQueue bounds how many messages wait for the broker. When full, new
// messages are dropped so the control and capture loops never wait on the network.
const telemetryQueue = 64

// StateMessage is published on TopicState after every actuator command.
type StateMessage struct {
	Session string         `json:"session"`
	Time    string         `json:"time"`
	State   actuator.State `json:"state"`
}

// SessionMessage is published on TopicSession on every phase change.
type SessionMessage struct {
	Session string `json:"session"`
	Time    string `json:"time"`
	Phase   string `json:"phase"`
	Reason  string `json:"reason,omitempty"`
	Saved   int    `json:"saved"`
}

type message struct {
	topic   string
	payload []byte
}

// Telemetry publishes rover events to MQTT from its own goroutine.
type Telemetry struct {
	session string
	topics  telemetryTopics
	publish func(topic string, payload []byte) error
	close   func()

	mu      sync.RWMutex // guards closed and sends on queue
	closed  bool
	queue   chan message
	wg      sync.WaitGroup
	dropped atomic.Int64
	closing sync.Once
}

type telemetryTopics struct {
	state, capture, session string
}

// DialTelemetry connects to cfg.MQTTBroker.
func DialTelemetry(cfg *config.Config, session string) (*Telemetry, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDRover).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: MQTT connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	log.Printf("telemetry: connected to MQTT broker at %s", cfg.MQTTBroker)

	publish := func(topic string, payload []byte) error {
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		return token.Error()
	}
	topics := telemetryTopics{state: cfg.TopicState, capture: cfg.TopicCapture, session: cfg.TopicSession}
	return newTelemetry(session, topics, publish, func() { client.Disconnect(250) }), nil
}

func newTelemetry(session string, topics telemetryTopics, publish func(string, []byte) error, closeFn func()) *Telemetry {
	t := &Telemetry{
		session: session,
		topics:  topics,
		publish: publish,
		close:   closeFn,
		queue:   make(chan message, telemetryQueue),
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

func (t *Telemetry) loop() {
	defer t.wg.Done()
	for m := range t.queue {
		if err := t.publish(m.topic, m.payload); err != nil {
			log.Printf("telemetry: MQTT publish error (%s): %v", m.topic, err)
		}
	}
}

func (t *Telemetry) enqueue(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("telemetry: json marshal error (%s): %v", topic, err)
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- message{topic: topic, payload: payload}:
	default:
		t.dropped.Add(1)
	}
}

// State queues an actuator state update.
func (t *Telemetry) State(s actuator.State) {
	t.enqueue(t.topics.state, StateMessage{Session: t.session, Time: time.Now().Format(time.RFC3339Nano), State: s})
}

// Capture queues a capture event.
func (t *Telemetry) Capture(ev CaptureEvent) {
	ev.Session = t.session
	t.enqueue(t.topics.capture, ev)
}

// Phase queues a session phase change.
func (t *Telemetry) Phase(p Phase, reason Reason, saved int) {
	msg := SessionMessage{Session: t.session, Time: time.Now().Format(time.RFC3339Nano), Phase: p.String(), Saved: saved}
	if reason != ReasonNone {
		msg.Reason = reason.String()
	}
	t.enqueue(t.topics.session, msg)
}

// Dropped is how many messages were discarded because the queue was full.
func (t *Telemetry) Dropped() int64 {
	return t.dropped.Load()
}

// Close publishes what is queued and disconnects. Messages queued after Close are lost.
func (t *Telemetry) Close() {
	t.closing.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.queue)
		t.mu.Unlock()

		t.wg.Wait()
		if n := t.Dropped(); n > 0 {
			log.Printf("telemetry: %d messages dropped (queue full)", n)
		}
		if t.close != nil {
			t.close()
		}
	})
}
