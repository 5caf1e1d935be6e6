// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrStreamClosed      = errors.New("stream: connection closed")
	ErrStreamInvalidResp = errors.New("stream: invalid response")
	ErrStreamFrameSize   = errors.New("stream: frame size out of range")
)

// MessageType identifies stream frame types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
)

const (
	// maxFrameLen bounds a single frame.
	maxFrameLen = 64 * 1024 * 1024
	// frameHeaderLen is the type byte plus the request id.
	frameHeaderLen = 1 + 4

	streamWriteTimeout = 30 * time.Second
)

func init() {
	registerTransport(TransportStream, dialStream)
}

// PeerHandler answers one envelope exchange on the serving side. It is used
// by StreamServer and NewGRPCPeer.
type PeerHandler func(ctx context.Context, contentType string, body []byte) (status int, reply []byte, err error)

// Frames on the wire:
//
//	request   [4 len][1 type][4 id][2 ctLen][content type][body]
//	response  [4 len][1 type][4 id][2 status][body]
//	error     [4 len][1 type][4 id][message]
//
// len counts everything after itself.

func writeFrame(w io.Writer, typ MessageType, id uint32, prefix, payload []byte) error {
	n := frameHeaderLen + len(prefix) + len(payload)
	if n > maxFrameLen {
		return ErrStreamFrameSize
	}
	buf := make([]byte, 4+n)
	binary.BigEndian.PutUint32(buf[0:4], uint32(n))
	buf[4] = byte(typ)
	binary.BigEndian.PutUint32(buf[5:9], id)
	copy(buf[9:], prefix)
	copy(buf[9+len(prefix):], payload)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (MessageType, uint32, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n < frameHeaderLen || n > maxFrameLen {
		return 0, 0, nil, ErrStreamFrameSize
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(r, msg); err != nil {
		return 0, 0, nil, err
	}
	return MessageType(msg[0]), binary.BigEndian.Uint32(msg[1:5]), msg[frameHeaderLen:], nil
}

func uint16Prefix(v int) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return b[:]
}

// StreamConn carries envelope exchanges over one TCP connection. Concurrent
// calls are multiplexed by request id.
type StreamConn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // request id -> chan streamResult
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

type streamResult struct {
	reply *Reply
	err   error
}

// StreamDial connects to a StreamServer.
func StreamDial(ctx context.Context, addr string) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream dial: %w", err)
	}

	sc := &StreamConn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	go sc.readLoop()
	return sc, nil
}

// Call sends one request frame and waits for the matching response.
func (s *StreamConn) Call(ctx context.Context, contentType string, body []byte) (*Reply, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if len(contentType) > 0xFFFF {
		return nil, fmt.Errorf("stream: content type too long (%d bytes)", len(contentType))
	}

	id := s.nextID.Add(1)
	results := make(chan streamResult, 1)
	s.pending.Store(id, results)
	defer s.pending.Delete(id)

	prefix := append(uint16Prefix(len(contentType)), contentType...)
	s.writeMu.Lock()
	err := writeFrame(s.conn, MsgRequest, id, prefix, body)
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("stream write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return res.reply, res.err
	case <-s.readDone:
		return nil, ErrStreamClosed
	}
}

func (s *StreamConn) readLoop() {
	defer close(s.readDone)

	for {
		typ, id, payload, err := readFrame(s.conn)
		if err != nil {
			return
		}
		ch, ok := s.pending.Load(id)
		if !ok {
			continue
		}
		results := ch.(chan streamResult)

		switch {
		case typ == MsgResponse && len(payload) >= 2:
			results <- streamResult{reply: &Reply{
				Status: int(binary.BigEndian.Uint16(payload[:2])),
				Body:   payload[2:],
			}}
		case typ == MsgError:
			results <- streamResult{err: fmt.Errorf("stream peer: %s", payload)}
		default:
			results <- streamResult{err: ErrStreamInvalidResp}
		}
	}
}

// Close closes the connection.
func (s *StreamConn) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

// streamTransport adapts StreamConn to Transport. The exchange URL is
// ignored; the peer is fixed at dial time.
type streamTransport struct {
	conn *StreamConn
}

func dialStream(ctx context.Context, cfg TransportConfig) (Transport, error) {
	if cfg.Addr == "" {
		return nil, errors.New("stream transport requires an address")
	}
	conn, err := StreamDial(ctx, cfg.Addr)
	if err != nil {
		return nil, err
	}
	return &streamTransport{conn: conn}, nil
}

func (t *streamTransport) Send(ctx context.Context, ex *Exchange) (*Reply, error) {
	return t.conn.Call(ctx, ex.ContentType, ex.Body)
}

func (t *streamTransport) Close() error {
	return t.conn.Close()
}

// StreamServer answers StreamConn requests with a PeerHandler. Each request
// runs in its own goroutine.
type StreamServer struct {
	listener net.Listener
	handler  PeerHandler
	conns    sync.Map
	closed   atomic.Bool
}

func NewStreamServer(listener net.Listener, handler PeerHandler) *StreamServer {
	return &StreamServer{
		listener: listener,
		handler:  handler,
	}
}

// Serve accepts connections until Close is called or ctx is done.
func (s *StreamServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("stream accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *StreamServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	var writeMu sync.Mutex
	reply := func(typ MessageType, id uint32, prefix, payload []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := writeFrame(conn, typ, id, prefix, payload); err != nil {
			conn.Close()
		}
	}

	for {
		typ, id, payload, err := readFrame(conn)
		if err != nil {
			return
		}
		if typ != MsgRequest || len(payload) < 2 {
			continue
		}
		ctLen := int(binary.BigEndian.Uint16(payload[:2]))
		if len(payload) < 2+ctLen {
			reply(MsgError, id, nil, []byte("malformed request frame"))
			continue
		}
		contentType := string(payload[2 : 2+ctLen])
		body := payload[2+ctLen:]

		go func() {
			status, data, err := s.handler(ctx, contentType, body)
			if err != nil {
				reply(MsgError, id, nil, []byte(err.Error()))
				return
			}
			reply(MsgResponse, id, uint16Prefix(status), data)
		}()
	}
}

// Close stops accepting and closes every open connection.
func (s *StreamServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address.
func (s *StreamServer) Addr() net.Addr {
	return s.listener.Addr()
}
