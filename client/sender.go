// Package client implements the controller side: it turns detected hands
// into actions and streams the wire codes to the rover over TCP.
package client

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gesturelink/rover/onboard"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultCooldown       = 2 * time.Second
)

// ErrCooldown marks a send suppressed by the cooldown window. The action was
// not transmitted.
var ErrCooldown = errors.New("action suppressed by cooldown")

var ErrNotConnected = errors.New("sender is not connected")

type SenderConfig struct {
	Addr           string
	ConnectTimeout time.Duration
	// Cooldown is the minimum gap between transmitted actions. Stop is
	// exempt so the car can always be halted.
	Cooldown time.Duration
}

// Sender owns the TCP connection to the rover.
type Sender struct {
	conf   SenderConfig
	logger *zap.Logger

	lock     sync.Mutex
	conn     net.Conn
	lastSent time.Time
}

func Dial(conf SenderConfig) (s *Sender, err error) {
	if conf.ConnectTimeout == 0 {
		conf.ConnectTimeout = DefaultConnectTimeout
	}

	s = &Sender{
		conf:   conf,
		logger: zap.L(),
	}

	s.conn, err = net.DialTimeout("tcp", conf.Addr, conf.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	s.logger.Info("connected to rover", zap.String("addr", conf.Addr))
	return
}

func (s *Sender) Connected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.conn != nil
}

// Send transmits the 3-digit code for the action.
func (s *Sender) Send(action onboard.Action) (err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	if s.conf.Cooldown > 0 && action != onboard.Stop {
		if since := time.Since(s.lastSent); since < s.conf.Cooldown {
			return ErrCooldown
		}
	}

	if _, err = s.conn.Write([]byte(action.Code())); err != nil {
		s.logger.Warn("send failed, dropping connection", zap.Error(err))
		s.conn.Close()
		s.conn = nil
		return
	}

	s.lastSent = time.Now()
	s.logger.Debug("sent action", zap.Stringer("action", action))
	return
}

func (s *Sender) Close() (err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	return
}
