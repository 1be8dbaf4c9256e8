package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const dialTimeout = 5 * time.Second

// PushSpeaker delivers utterances as JSON frames over a websocket to a
// downstream notification/TTS service. The connection is dialed lazily and
// re-dialed once per Say on failure; a dead endpoint surfaces as a Say
// error, which the delivery layer logs and drops.
type PushSpeaker struct {
	mu   sync.Mutex
	url  string
	conn *websocket.Conn
	log  zerolog.Logger
}

// NewPushSpeaker creates a push channel targeting url.
func NewPushSpeaker(url string, log zerolog.Logger) *PushSpeaker {
	return &PushSpeaker{url: url, log: log}
}

// Name implements Speaker.
func (p *PushSpeaker) Name() string { return "push" }

// Say implements Speaker.
func (p *PushSpeaker) Say(ctx context.Context, u Utterance) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		if err := p.dial(ctx); err != nil {
			return err
		}
	}

	if err := p.conn.WriteJSON(u); err != nil {
		// One reconnect attempt, then give up for this cycle.
		p.log.Warn().Err(err).Msg("push write failed, redialing")
		p.closeLocked()
		if err := p.dial(ctx); err != nil {
			return err
		}
		if err := p.conn.WriteJSON(u); err != nil {
			p.closeLocked()
			return fmt.Errorf("push utterance: %w", err)
		}
	}
	return nil
}

func (p *PushSpeaker) dial(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("dial push endpoint %s: %w", p.url, err)
	}
	p.conn = conn
	p.log.Debug().Str("url", p.url).Msg("push channel connected")
	return nil
}

func (p *PushSpeaker) closeLocked() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close tears the connection down.
func (p *PushSpeaker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}
