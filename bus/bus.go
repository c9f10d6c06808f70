// Package bus is a small in-process pub/sub message bus with retained
// messages, single- and multi-level wildcards, and request/reply.
//
// Topics are slices of tokens; a token is a string or an int. Subscriptions
// may use "+" to match exactly one token and "#" (final position only) to
// match any remainder.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Token is a single element in a topic path: a string or an int.
type Token = any

// Topic is a sequence of tokens.
type Topic []Token

// T builds a topic from tokens.
func T(tokens ...Token) Topic { return Topic(tokens) }

// Wildcard tokens (subscribe side only).
const (
	Plus = "+" // matches exactly one token
	Hash = "#" // matches any remainder; must be the final token
)

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok Token, create bool) *node {
	if n.children == nil {
		if !create {
			return nil
		}
		n.children = make(map[Token]*node)
	}
	c, ok := n.children[tok]
	if !ok {
		if !create {
			return nil
		}
		c = &node{}
		n.children[tok] = c
	}
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// NewBus creates a bus with the given per-subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	// Deliver any retained messages the pattern matches.
	b.deliverRetained(b.root, topic, sub)
}

// deliverRetained walks the trie against a (possibly wildcarded) pattern.
func (b *Bus) deliverRetained(n *node, pattern Topic, sub *Subscription) {
	if len(pattern) == 0 {
		if n.retained != nil {
			push(sub, n.retained)
		}
		return
	}
	switch pattern[0] {
	case Hash:
		b.retainedSubtree(n, sub)
	case Plus:
		for _, c := range n.children {
			b.deliverRetained(c, pattern[1:], sub)
		}
	default:
		if c := n.child(pattern[0], false); c != nil {
			b.deliverRetained(c, pattern[1:], sub)
		}
	}
}

func (b *Bus) retainedSubtree(n *node, sub *Subscription) {
	if n.retained != nil {
		push(sub, n.retained)
	}
	for _, c := range n.children {
		b.retainedSubtree(c, sub)
	}
}

// Publish delivers a message to every matching subscriber and stores or
// clears the retained copy. A nil payload on a retained publish clears it.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match(b.root, msg.Topic, msg)

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

// match walks subscription patterns against a concrete topic.
func (b *Bus) match(n *node, rest Topic, msg *Message) {
	// "#" at this level matches the whole remainder, including empty.
	if h := n.child(Hash, false); h != nil {
		for _, sub := range h.subs {
			push(sub, msg)
		}
	}
	if len(rest) == 0 {
		for _, sub := range n.subs {
			push(sub, msg)
		}
		return
	}
	if c := n.child(rest[0], false); c != nil {
		b.match(c, rest[1:], msg)
	}
	if p := n.child(Plus, false); p != nil {
		b.match(p, rest[1:], msg)
	}
}

func push(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		// Queue full: drop the oldest so slow consumers see fresh data.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range topic {
		c := n.child(tok, false)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	// Prune empty nodes bottom-up.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[topic[i]]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, topic[i])
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
	seq  atomic.Int64
}

// NewConnection creates a named connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

// NewMessage builds a message originating from this connection.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect drops all subscriptions owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
	}
}

// -----------------------------------------------------------------------------
// Request / reply
// -----------------------------------------------------------------------------

// Request publishes a message carrying a unique ReplyTo topic and waits for
// the first reply or the timeout.
func (c *Connection) Request(topic Topic, payload any, timeout time.Duration) (*Message, bool) {
	replyTo := Topic{"reply", c.id, int(c.seq.Add(1))}
	sub := c.Subscribe(replyTo)
	defer c.Unsubscribe(sub)

	c.Publish(&Message{Topic: topic, Payload: payload, ReplyTo: replyTo})

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case msg := <-sub.ch:
		return msg, true
	case <-t.C:
		return nil, false
	}
}

// Reply answers a request on its ReplyTo topic. No-op if the request did not
// ask for a reply.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}
