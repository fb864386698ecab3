// internal/writer/redis/publisher.go
package redis

import (
	"strconv"
	"sync"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/status"
)

// Publisher mirrors the status block into one redis hash, one field per
// slot. Like the Modbus writer it sends only changed fields, and all of
// them after a failure.
type Publisher struct {
	mu   sync.Mutex
	key  string
	name string
	dial func() (redis.Conn, error)

	conn     redis.Conn
	needFull bool
	last     map[string]uint16
}

type Config struct {
	Addr       string
	Key        string
	DeviceName string
	Timeout    time.Duration

	// Dial overrides the TCP dialer.
	Dial func() (redis.Conn, error)
}

func New(cfg Config) (*Publisher, error) {
	if cfg.Key == "" {
		return nil, errors.New("writer redis: key required")
	}
	dial := cfg.Dial
	if dial == nil {
		if cfg.Addr == "" {
			return nil, errors.New("writer redis: addr required")
		}
		dial = func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.Addr,
				redis.DialConnectTimeout(cfg.Timeout),
				redis.DialReadTimeout(cfg.Timeout),
				redis.DialWriteTimeout(cfg.Timeout),
			)
		}
	}
	return &Publisher{
		key:      cfg.Key,
		name:     cfg.DeviceName,
		dial:     dial,
		needFull: true,
		last:     make(map[string]uint16),
	}, nil
}

type field struct {
	name string
	v    uint16
}

func fields(s status.Snapshot) []field {
	return []field{
		{"health", s.Health},
		{"last_error", s.LastErrorCode},
		{"seconds_in_error", s.SecondsInError},
		{"link_speed", s.LinkSpeed},
		{"corrupt_index", s.CorruptIndex},
	}
}

func (p *Publisher) WriteStatus(s status.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		c, err := p.dial()
		if err != nil {
			p.needFull = true
			return errors.Wrap(err, "writer redis: dial")
		}
		p.conn = c
	}

	if p.needFull && p.name != "" {
		if _, err := p.conn.Do("HSET", p.key, "name", p.name); err != nil {
			return p.drop(err)
		}
	}

	for _, f := range fields(s) {
		if prev, ok := p.last[f.name]; ok && prev == f.v && !p.needFull {
			continue
		}
		if _, err := p.conn.Do("HSET", p.key, f.name, strconv.Itoa(int(f.v))); err != nil {
			return p.drop(err)
		}
		p.last[f.name] = f.v
	}

	p.needFull = false
	return nil
}

func (p *Publisher) drop(err error) error {
	_ = p.conn.Close()
	p.conn = nil
	p.needFull = true
	return errors.Wrapf(err, "writer redis: hset %s", p.key)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
