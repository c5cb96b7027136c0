// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrStreamClosed      = errors.New("stream: connection closed")
	ErrStreamFrameTooBig = errors.New("stream: frame too large")
)

// FrameType identifies stream frame types
type FrameType uint8

const (
	FrameRequest  FrameType = 0x01
	FrameResponse FrameType = 0x02
	FrameError    FrameType = 0x03
)

const (
	frameHeaderLen = 1 + 4           // type + sequence
	maxFrameLen    = 64 * 1024 * 1024 // 64MB max
	writeTimeout   = 30 * time.Second
)

// writeFrame encodes [4 len][1 type][4 seq][payload] in a single write.
func writeFrame(w io.Writer, typ FrameType, seq uint32, payload []byte) error {
	msgLen := frameHeaderLen + len(payload)
	if msgLen > maxFrameLen {
		return ErrStreamFrameTooBig
	}
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(typ)
	binary.BigEndian.PutUint32(buf[5:9], seq)
	copy(buf[9:], payload)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one frame. Frames shorter than the header are skipped by
// the caller through a nil error and zero type.
func readFrame(r io.Reader, header []byte) (FrameType, uint32, []byte, error) {
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 || msgLen > maxFrameLen {
		return 0, 0, nil, ErrStreamFrameTooBig
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return 0, 0, nil, err
	}
	if len(msg) < frameHeaderLen {
		return 0, 0, nil, nil
	}
	return FrameType(msg[0]), binary.BigEndian.Uint32(msg[1:5]), msg[5:], nil
}

// StreamConn is a client connection on the stream transport. Requests are
// multiplexed by frame sequence number.
type StreamConn struct {
	envelopeClient

	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // seq -> chan streamResult
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

type streamResult struct {
	data []byte
	err  error
}

// DialStream connects to a stream server
func DialStream(ctx context.Context, addr string) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream dial: %w", err)
	}

	sc := &StreamConn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	sc.envelopeClient = envelopeClient{codec: defaultCodec, raw: sc.InvokeRaw}
	go sc.readLoop()
	return sc, nil
}

func dialStream(ctx context.Context, addr string, o *dialOptions) (Client, error) {
	sc, err := DialStream(ctx, addr)
	if err != nil {
		return nil, err
	}
	sc.codec = o.codec
	return sc, nil
}

// InvokeRaw sends one envelope and waits for its response frame
func (s *StreamConn) InvokeRaw(ctx context.Context, payload []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}

	seq := s.nextID.Add(1)
	respCh := make(chan streamResult, 1)
	s.pending.Store(seq, respCh)
	defer s.pending.Delete(seq)

	s.writeMu.Lock()
	err := writeFrame(s.conn, FrameRequest, seq, payload)
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("stream write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		return resp.data, resp.err
	case <-s.readDone:
		return nil, ErrStreamClosed
	}
}

func (s *StreamConn) readLoop() {
	defer close(s.readDone)

	header := make([]byte, 4)
	for {
		typ, seq, payload, err := readFrame(s.conn, header)
		if err != nil {
			return
		}
		ch, ok := s.pending.Load(seq)
		if !ok {
			continue
		}
		respCh := ch.(chan streamResult)
		switch typ {
		case FrameResponse:
			respCh <- streamResult{data: payload}
		case FrameError:
			respCh <- streamResult{err: errors.New(string(payload))}
		}
	}
}

// Close closes the connection
func (s *StreamConn) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

// StreamServer serves a Dispatcher over length-prefixed frames. Every request
// frame is dispatched on its own goroutine, so responses may be written out
// of order; clients correlate them by sequence number.
type StreamServer struct {
	listener   net.Listener
	dispatcher *Dispatcher
	logger     *zap.Logger
	conns      sync.Map
	closed     atomic.Bool
	wg         sync.WaitGroup
}

// NewStreamServer creates a stream server on an existing listener
func NewStreamServer(listener net.Listener, d *Dispatcher, logger *zap.Logger) *StreamServer {
	return &StreamServer{
		listener:   listener,
		dispatcher: d,
		logger:     componentLogger(logger, "stream"),
	}
}

func listenStream(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream listen: %w", err)
	}
	return NewStreamServer(lis, d, o.logger), nil
}

// Serve accepts connections until ctx is cancelled or Close is called
func (s *StreamServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("serving", zap.String("addr", s.Addr()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *StreamServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)
	// Close may have swept conns before the Store above.
	if s.closed.Load() {
		return
	}

	var writeMu sync.Mutex
	var inflight sync.WaitGroup
	defer inflight.Wait()

	header := make([]byte, 4)
	for {
		typ, seq, payload, err := readFrame(conn, header)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.logger.Debug("connection dropped",
					zap.String("remote", conn.RemoteAddr().String()),
					zap.Error(err))
			}
			return
		}
		if typ != FrameRequest {
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			resp := s.dispatcher.Invoke(ctx, payload)
			data, err := json.Marshal(resp)

			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err != nil {
				err = writeFrame(conn, FrameError, seq, []byte(err.Error()))
			} else {
				err = writeFrame(conn, FrameResponse, seq, data)
			}
			if err != nil {
				s.logger.Debug("write response", zap.Uint32("seq", seq), zap.Error(err))
			}
		}()
	}
}

// Close closes the listener and all open connections
func (s *StreamServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *StreamServer) Addr() string {
	return s.listener.Addr().String()
}
