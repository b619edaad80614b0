package guirpc

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/boincwatch/internal/logger"
)

// Dialer opens the transport to a BOINC client. *net.Dialer satisfies it,
// and so does an SSH client when the daemon only listens on loopback.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Conn is one GUI RPC session. The protocol is strictly request/reply, so
// only one exchange runs at a time.
type Conn struct {
	source Source
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	log    logger.Logger

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Open dials the source and, when it has a password, authenticates before
// returning. On any failure the socket is already closed.
func Open(ctx context.Context, dialer Dialer, source Source) (*Conn, error) {
	return open(ctx, dialer, source, logger.NewEnvLogger("[rpc]"))
}

func open(ctx context.Context, dialer Dialer, source Source, log logger.Logger) (*Conn, error) {
	source = source.withDefaults()
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	address := source.Address()
	log.Debug("dialing %s (%s)", source.Name, address)
	nc, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, connectionError(err, fmt.Sprintf("Can't reach '%s' at %s", source.Name, address))
	}

	c := &Conn{
		source: source,
		conn:   nc,
		r:      bufio.NewReader(nc),
		w:      bufio.NewWriter(nc),
		log:    log,
	}

	if source.Password != "" {
		if err := c.Authenticate(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Source returns the source this connection is bound to.
func (c *Conn) Source() Source {
	return c.source
}

// Authenticate runs the auth1/auth2 challenge: fetch a nonce, then answer
// with md5(nonce + password).
func (c *Conn) Authenticate(ctx context.Context) error {
	reply, err := c.Exchange(ctx, "auth1")
	if err != nil {
		return err
	}
	nonce, err := reply.Value("nonce")
	if err != nil {
		return err
	}

	if _, err := c.Exchange(ctx, "auth2", Param{Name: "nonce_hash", Value: NonceHash(nonce, c.source.Password)}); err != nil {
		return err
	}
	c.log.Debug("authenticated to %s", c.source.Name)
	return nil
}

// Exchange sends one request and reads exactly one reply. The reply is
// classified: peer-reported errors and auth rejections come back as errors.
func (c *Conn) Exchange(ctx context.Context, method string, params ...Param) (*Element, error) {
	frame, err := Encode(method, params...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.bindContext(ctx)
	defer stop()

	if _, err := c.w.Write(frame); err != nil {
		return nil, c.ioError(ctx, err, method)
	}
	if err := c.w.Flush(); err != nil {
		return nil, c.ioError(ctx, err, method)
	}

	reply, err := ReadFrame(c.r)
	if err != nil {
		return nil, c.ioError(ctx, err, method)
	}

	root, err := Decode(reply)
	if err != nil {
		return nil, err
	}
	return Classify(root)
}

// Close flushes pending writes and releases the socket. It is safe to call
// more than once; the socket is closed exactly once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		flushErr := c.w.Flush()
		closeErr := c.conn.Close()
		if flushErr != nil && !isClosedOrTimeout(flushErr) {
			c.closeErr = flushErr
		} else {
			c.closeErr = closeErr
		}
	})
	return c.closeErr
}

// bindContext applies ctx's deadline to the socket and interrupts blocked
// I/O when ctx is cancelled.
func (c *Conn) bindContext(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { stop() }
}

func (c *Conn) ioError(ctx context.Context, err error, method string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return connectionError(ctxErr, fmt.Sprintf("'%s' call to '%s' was interrupted", method, c.source.Name))
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return connectionError(err, fmt.Sprintf("'%s' closed the connection during '%s'", c.source.Name, method))
	}
	return connectionError(err, fmt.Sprintf("'%s' call to '%s' failed", method, c.source.Name))
}

// NonceHash computes the auth2 answer: hex(md5(nonce + password)).
func NonceHash(nonce, password string) string {
	sum := md5.Sum([]byte(nonce + password))
	return hex.EncodeToString(sum[:])
}

func isClosedOrTimeout(err error) bool {
	if stderrors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

func suggestionForNetError(err error) string {
	if err == nil {
		return ""
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is the BOINC client running? Remote hosts also need --allow_remote_gui_rpc or remote_hosts.cfg."
	case strings.Contains(errStr, "no such host"):
		return "The hostname didn't resolve. Check the client's host setting."
	case strings.Contains(errStr, "no route to host"), strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(errStr, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return ""
}
