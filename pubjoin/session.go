package pubjoin

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// RetryInterval is how long a client waits before redialing a server
// that is not yet listening.
const RetryInterval = 42 * time.Millisecond

// A Session is one party's end of a single protocol exchange.  The
// server listens on Addr, or uses Listener when it is set, and serves
// one client.  The client dials Addr until it succeeds or its context
// is done.
type Session struct {
	Addr     string
	Server   bool
	Listener net.Listener
	Logger   *zap.Logger
}

func (s *Session) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// connect returns the connection to the other party.  The connection is
// closed when ctx is done so that blocked reads and writes return.
func (s *Session) connect(ctx context.Context) (net.Conn, func(), error) {
	var conn net.Conn
	var err error
	if s.Server {
		conn, err = s.accept(ctx)
	} else {
		conn, err = s.dial(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return conn, func() {
		stop()
		conn.Close()
	}, nil
}

func (s *Session) accept(ctx context.Context) (net.Conn, error) {
	ln := s.Listener
	if ln == nil {
		var lc net.ListenConfig
		var err error
		if ln, err = lc.Listen(ctx, "tcp", s.Addr); err != nil {
			return nil, err
		}
	}
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	s.logger().Debug("listening", zap.Stringer("addr", ln.Addr()))
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", s.Addr)
		if err == nil {
			return conn, nil
		}
		s.logger().Debug("dial failed, retrying", zap.String("addr", s.Addr), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(RetryInterval):
		}
	}
}

// Join returns the rows of rel whose key column col matches a key of the
// other party.  Both parties receive their rows in the same order so the
// i-th rows of the two results share a key.
func (s *Session) Join(ctx context.Context, rel [][]int64, col int) ([][]int64, error) {
	conn, done, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	if !s.Server {
		if err := WriteRel(conn, column(Keys(rel, col))); err != nil {
			return nil, err
		}
		idx, err := ReadRel(conn, 1)
		if err != nil {
			return nil, err
		}
		return pick(rel, ints(Keys(idx, 0)))
	}
	other, err := ReadRel(conn, 1)
	if err != nil {
		return nil, err
	}
	matches := Matches(Keys(rel, col), Keys(other, 0))
	mine := make([]int, 0, len(matches))
	theirs := make([][]int64, 0, len(matches))
	for _, m := range matches {
		mine = append(mine, m.Server)
		theirs = append(theirs, []int64{int64(m.Client)})
	}
	if err := WriteRel(conn, theirs); err != nil {
		return nil, err
	}
	s.logger().Debug("join done", zap.Int("rows", len(matches)))
	return pick(rel, mine)
}

// PartJoin joins the left and right relations, each split between the
// two parties, on leftKey and rightKey.  The result is this party's
// multiplicative share of the join; see Reconstruct.
func (s *Session) PartJoin(ctx context.Context, left, right [][]int64, leftKey, rightKey, leftWidth, rightWidth int) ([][]int64, error) {
	conn, done, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	if !s.Server {
		if err := WriteRel(conn, column(Keys(left, leftKey))); err != nil {
			return nil, err
		}
		if err := WriteRel(conn, column(Keys(right, rightKey))); err != nil {
			return nil, err
		}
		idx, err := ReadRel(conn, 4)
		if err != nil {
			return nil, err
		}
		return Reconstruct(left, right, leftKey, rightKey, leftWidth, rightWidth, partMatches(idx), ClientOwner)
	}
	otherLeft, err := ReadRel(conn, 1)
	if err != nil {
		return nil, err
	}
	otherRight, err := ReadRel(conn, 1)
	if err != nil {
		return nil, err
	}
	matches := PartMatches(Keys(left, leftKey), Keys(right, rightKey), Keys(otherLeft, 0), Keys(otherRight, 0))
	if err := WriteRel(conn, indexRel(matches)); err != nil {
		return nil, err
	}
	s.logger().Debug("part join done", zap.Int("rows", len(matches)))
	return Reconstruct(left, right, leftKey, rightKey, leftWidth, rightWidth, matches, ServerOwner)
}

// Intersect returns the keys in column col of rel that the other party
// also holds, as a one-column relation in ascending order.
func (s *Session) Intersect(ctx context.Context, rel [][]int64, col int) ([][]int64, error) {
	conn, done, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	if !s.Server {
		if err := WriteRel(conn, column(Keys(rel, col))); err != nil {
			return nil, err
		}
		return ReadRel(conn, 1)
	}
	other, err := ReadRel(conn, 1)
	if err != nil {
		return nil, err
	}
	res := column(Intersect(Keys(rel, col), Keys(other, 0)))
	if err := WriteRel(conn, res); err != nil {
		return nil, err
	}
	return res, nil
}

func ints(vals []int64) []int {
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		out = append(out, int(v))
	}
	return out
}
