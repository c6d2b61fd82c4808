package netx

import (
	"net"

	"github.com/particlenet/particle/bufiox"
	"github.com/particlenet/particle/connstate"
	"github.com/particlenet/particle/xlog"
)

var _ Conn = &conn{}

type Conn interface {
	// Conn is extended to provide the native interfaces of net.Conn.
	// NOT recommended to directly call the Write/Read interface.
	// Instead, calling the Reader and Writer to implement higher-performance
	// user mode zero-copy read/writes.
	net.Conn

	// Reader returns bufiox.Reader for nocopy reading.
	Reader() bufiox.Reader
	// Writer returns bufiox.Writer for nocopy writing.
	Writer() bufiox.Writer

	// State returns the state of a connection.
	State() connstate.ConnState
}

type conn struct {
	net.Conn
	stater connstate.ConnStater
	log    *xlog.Logger

	reader bufiox.Reader
	writer bufiox.Writer
}

func (c *conn) Reader() bufiox.Reader {
	return c.reader
}

func (c *conn) Writer() bufiox.Writer {
	return c.writer
}

func (c *conn) State() connstate.ConnState {
	return c.stater.State()
}

func (c *conn) Close() error {
	_ = c.stater.Close()
	err := c.Conn.Close()
	if err != nil {
		c.log.Debugw("close failed", "remote", c.RemoteAddr(), "error", err)
	}
	return err
}

// Wrap adapts a net.Conn into the epoll-backed Conn used internally by
// the tcp package. logger may be nil; Wrap defaults it to a no-op logger
// so callers never need a nil check.
func Wrap(cn net.Conn, logger *xlog.Logger) (Conn, error) {
	stater, err := connstate.ListenConnState(cn)
	if err != nil {
		return nil, err
	}
	return &conn{
		Conn:   cn,
		stater: stater,
		log:    xlog.Named(logger, "netx"),
		reader: bufiox.NewDefaultReader(cn),
		writer: bufiox.NewDefaultWriter(cn),
	}, nil
}
