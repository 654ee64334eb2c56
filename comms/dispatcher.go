package comms

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gesturelink/rover/onboard"
	deverrors "github.com/gesturelink/rover/onboard/errors"
)

const codeLength = 3

// BindError is fatal: the dispatcher cannot run without its listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e BindError) Error() string {
	return fmt.Sprintf("unable to bind %s: %v", e.Addr, e.Err)
}

func (e BindError) Unwrap() error {
	return e.Err
}

// ErrConnectionClosed marks a peer disconnect, including a disconnect in the
// middle of a frame. The dispatcher recovers by returning to accept.
var ErrConnectionClosed = errors.New("connection closed by peer")

// Dispatcher owns the listening socket and the decode/apply loop. At most one
// client connection is active at a time; later connections are closed on
// accept.
type Dispatcher struct {
	conf   onboard.NetworkConfig
	rover  onboard.Rover
	logger *zap.Logger

	// OnApplied, when set, is invoked after every successfully applied
	// action. Must be set before Start.
	OnApplied func(payload StatePayload)

	lis    net.Listener
	active int32

	lock sync.Mutex
	conn net.Conn
	done chan struct{}
}

func NewDispatcher(conf onboard.NetworkConfig, rover onboard.Rover) *Dispatcher {
	return &Dispatcher{
		conf:   conf,
		rover:  rover,
		logger: zap.L(),
		done:   make(chan struct{}),
	}
}

// Start binds the listening socket.
func (d *Dispatcher) Start() error {
	addr := fmt.Sprintf(":%d", d.conf.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return BindError{Addr: addr, Err: err}
	}
	d.lis = lis
	d.logger.Info("dispatcher listening", zap.String("addr", lis.Addr().String()))
	return nil
}

// Addr returns the bound listener address. Only valid after Start.
func (d *Dispatcher) Addr() net.Addr {
	return d.lis.Addr()
}

// Active reports whether a client connection is currently being served.
func (d *Dispatcher) Active() bool {
	return atomic.LoadInt32(&d.active) == 1
}

// Serve accepts connections until the dispatcher is stopped. Connections
// arriving while one is active are rejected immediately.
func (d *Dispatcher) Serve() error {
	for {
		conn, err := d.lis.Accept()
		if err != nil {
			select {
			case <-d.done:
				return nil
			default:
				return err
			}
		}

		if !atomic.CompareAndSwapInt32(&d.active, 0, 1) {
			d.logger.Warn("rejecting connection, another client is active",
				zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		d.lock.Lock()
		d.conn = conn
		d.lock.Unlock()

		go d.handle(conn)
	}
}

// ListenAndServe combines Start and Serve.
func (d *Dispatcher) ListenAndServe() error {
	if err := d.Start(); err != nil {
		return err
	}
	return d.Serve()
}

// Stop closes the listener and any active connection.
func (d *Dispatcher) Stop() error {
	close(d.done)

	d.lock.Lock()
	if d.conn != nil {
		d.conn.Close()
	}
	d.lock.Unlock()

	if d.lis != nil {
		return d.lis.Close()
	}
	return nil
}

func (d *Dispatcher) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	d.logger.Info("client connected", zap.String("remote", remote))

	defer func() {
		conn.Close()
		d.lock.Lock()
		d.conn = nil
		d.lock.Unlock()
		atomic.StoreInt32(&d.active, 0)
		d.logger.Info("client disconnected", zap.String("remote", remote))
	}()

	r := bufio.NewReaderSize(conn, 64)

	for {
		code, err := d.readNextCode(conn, r)

		var invalid deverrors.InvalidCodeError
		switch {
		case err == nil:

		case errors.As(err, &invalid):
			// per-command recoverable: skip and keep reading
			d.logger.Warn("discarding invalid code",
				zap.String("remote", remote),
				zap.String("code", invalid.Code))
			continue

		default:
			if !errors.Is(err, ErrConnectionClosed) {
				d.logger.Warn("read failed, dropping connection",
					zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		action, err := onboard.ParseActionCode(code)
		if err != nil {
			d.logger.Warn("discarding invalid code",
				zap.String("remote", remote), zap.String("code", code))
			continue
		}

		if err = d.rover.Apply(action); err != nil {
			// hardware faults are not part of the command taxonomy;
			// surface them and keep serving
			d.logger.Error("unable to apply action",
				zap.Stringer("action", action), zap.Error(err))
			continue
		}

		d.logger.Debug("applied action",
			zap.String("code", code), zap.Stringer("action", action))

		if d.OnApplied != nil {
			d.OnApplied(StatePayload{
				Code:   code,
				Action: action.String(),
				Remote: remote,
				State:  d.rover.State(),
				At:     time.Now(),
			})
		}
	}
}

// readNextCode reads one frame. A peer that disconnects mid-frame produces
// ErrConnectionClosed, never an invalid code.
func (d *Dispatcher) readNextCode(conn net.Conn, r *bufio.Reader) (code string, err error) {
	if timeout := d.conf.ReadTimeout(); timeout > 0 {
		if err = conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return "", ErrConnectionClosed
		}
	}

	switch d.conf.Framing {
	case onboard.FramingNewline:
		return readNewlineCode(r)
	default:
		return readFixedCode(r)
	}
}

func readFixedCode(r io.Reader) (code string, err error) {
	buf := make([]byte, codeLength)
	if _, err = io.ReadFull(r, buf); err != nil {
		// a partial frame of 1-2 bytes is a disconnect, not a bad code
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", ErrConnectionClosed
		}
		return "", fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return string(buf), nil
}

func readNewlineCode(r *bufio.Reader) (code string, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		// an unterminated trailing fragment is a disconnect mid-frame,
		// not a bad code
		if err == io.EOF {
			return "", ErrConnectionClosed
		}
		return "", fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) != codeLength {
		return "", deverrors.InvalidCodeError{Code: line}
	}
	return line, nil
}
