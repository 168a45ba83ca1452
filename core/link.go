package core

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/encodeous/weft/state"
	"github.com/google/uuid"
)

// Link is a TCP connection carrying length prefixed JSON frames. Each frame is a 4 byte big endian length
// followed by the payload. A zero length frame is a keepalive.
type Link struct {
	id    uuid.UUID
	conn  net.Conn
	mutex sync.Mutex
}

func NewLink(conn net.Conn) *Link {
	return &Link{id: uuid.New(), conn: conn}
}

func DialLink(ctx context.Context, addr string) (*Link, error) {
	d := net.Dialer{Timeout: state.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, state.Transient("dial "+addr, err)
	}
	return NewLink(conn), nil
}

func (l *Link) Id() uuid.UUID {
	return l.id
}

func (l *Link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}

func (l *Link) Close() error {
	return l.conn.Close()
}

func (l *Link) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

// ReadMsg reads the next non keepalive frame into m
func (l *Link) ReadMsg(m any) error {
	for {
		data, err := receive(l.conn)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		if err = json.Unmarshal(data, m); err != nil {
			return state.Protocol("read frame", fmt.Errorf("%w: %w", state.ErrMalformedFrame, err))
		}
		return nil
	}
}

func (l *Link) WriteMsg(m any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return l.WriteFrame(data)
}

// WriteFrame writes an already encoded payload
func (l *Link) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return state.Protocol("write frame", state.ErrMalformedFrame)
	}
	return l.write(data)
}

func (l *Link) WriteKeepalive() error {
	return l.write(nil)
}

func (l *Link) write(data []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if state.WriteTimeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(state.WriteTimeout))
	}
	return send(l.conn, data)
}

func receive(r io.Reader) ([]byte, error) {
	var length uint32

	err := binary.Read(r, binary.BigEndian, &length)
	if err != nil {
		return nil, state.Transient("read frame", err)
	}

	if int64(length) > int64(state.MaxFrameSize) {
		return nil, state.Protocol("read frame", fmt.Errorf("%w: %d bytes", state.ErrFrameTooLarge, length))
	}

	data := make([]byte, length)

	_, err = io.ReadFull(r, data)
	if err != nil {
		return nil, state.Transient("read frame", err)
	}
	return data, nil
}

func send(w io.Writer, data []byte) error {
	if len(data) > state.MaxFrameSize {
		return state.Protocol("write frame", fmt.Errorf("%w: %d bytes", state.ErrFrameTooLarge, len(data)))
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	_, err := w.Write(buf)
	if err != nil {
		return state.Transient("write frame", err)
	}
	return nil
}
