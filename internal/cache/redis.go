package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRedisKeyPrefix = "medx:render:"
	defaultRedisTimeout   = 5 * time.Second
)

// Redis implements Store over a minimal RESP client, for deployments
// where several ingest replicas should share one render cache. Entries
// carry the TTL natively via SET PX; recency-based eviction is left to
// the server's own maxmemory policy.
type Redis struct {
	addr     string
	password string
	db       int
	prefix   string
	ttl      time.Duration
	timeout  time.Duration
}

// RedisOptions configures the Redis cache backend.
type RedisOptions struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	Timeout   time.Duration
}

// NewRedis creates a Redis-backed render cache.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if strings.TrimSpace(opts.Host) == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	port := opts.Port
	if port == "" {
		port = "6379"
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultRedisTimeout
	}
	return &Redis{
		addr:     net.JoinHostPort(opts.Host, port),
		password: opts.Password,
		db:       opts.DB,
		prefix:   prefix,
		ttl:      opts.TTL,
		timeout:  timeout,
	}, nil
}

func (r *Redis) Close() error { return nil }

// Get fetches the cached HTML for key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	var html string
	var found bool
	err := r.withConn(ctx, func(conn *redisConn) error {
		if err := conn.send("GET", r.prefix+key); err != nil {
			return err
		}
		reply, err := conn.read()
		if err != nil {
			return err
		}
		switch v := reply.(type) {
		case nil:
			found = false
		case string:
			html = v
			found = true
		default:
			return fmt.Errorf("unexpected response type %T", v)
		}
		return nil
	})
	return html, found, err
}

// Set stores html under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key, html string) error {
	return r.withConn(ctx, func(conn *redisConn) error {
		args := []string{r.prefix + key, html}
		if r.ttl > 0 {
			args = append(args, "PX", strconv.FormatInt(r.ttl.Milliseconds(), 10))
		}
		if err := conn.send("SET", args...); err != nil {
			return err
		}
		_, err := conn.read()
		return err
	})
}

func (r *Redis) withConn(ctx context.Context, fn func(*redisConn) error) error {
	conn, err := newRedisConn(ctx, r.addr, r.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.initialize(r.password, r.db); err != nil {
		return err
	}
	return fn(conn)
}

type redisConn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

func newRedisConn(ctx context.Context, addr string, timeout time.Duration) (*redisConn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &redisConn{
		conn:   c,
		reader: bufio.NewReader(c),
		writer: bufio.NewWriter(c),
	}, nil
}

func (c *redisConn) initialize(password string, db int) error {
	if password != "" {
		if err := c.send("AUTH", password); err != nil {
			return err
		}
		if _, err := c.read(); err != nil {
			return err
		}
	}
	if db != 0 {
		if err := c.send("SELECT", strconv.Itoa(db)); err != nil {
			return err
		}
		if _, err := c.read(); err != nil {
			return err
		}
	}
	return nil
}

func (c *redisConn) send(cmd string, args ...string) error {
	if _, err := fmt.Fprintf(c.writer, "*%d\r\n", len(args)+1); err != nil {
		return err
	}
	if err := writeBulk(c.writer, strings.ToUpper(cmd)); err != nil {
		return err
	}
	for _, arg := range args {
		if err := writeBulk(c.writer, arg); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

func writeBulk(w *bufio.Writer, value string) error {
	if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(value), value); err != nil {
		return err
	}
	return nil
}

func (c *redisConn) read() (interface{}, error) {
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch prefix {
	case '+':
		return readLine(c.reader)
	case '-':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		return nil, errors.New(line)
	case ':':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		return strconv.ParseInt(line, 10, 64)
	case '$':
		line, err := readLine(c.reader)
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if length == -1 {
			return nil, nil
		}
		buf := make([]byte, length+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return nil, err
		}
		return string(buf[:length]), nil
	default:
		return nil, fmt.Errorf("unexpected redis prefix %q", prefix)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func (c *redisConn) Close() error {
	return c.conn.Close()
}
