package comms

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/gesturelink/rover/onboard"
	deverrors "github.com/gesturelink/rover/onboard/errors"
)

func startTestDispatcher(t *testing.T, conf onboard.NetworkConfig) (d *Dispatcher, rover *onboard.SimulatedRover, applied chan StatePayload) {
	t.Helper()

	rover = onboard.NewSimulatedRover(onboard.DefaultConfig())
	d = NewDispatcher(conf, rover)

	applied = make(chan StatePayload, 16)
	d.OnApplied = func(p StatePayload) {
		applied <- p
	}

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	go d.Serve()
	t.Cleanup(func() { d.Stop() })

	return
}

func dialTest(t *testing.T, d *Dispatcher) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", d.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func waitApplied(applied chan StatePayload) (p StatePayload, ok bool) {
	select {
	case p = <-applied:
		return p, true
	case <-time.After(2 * time.Second):
		return p, false
	}
}

func waitIdle(t *testing.T, d *Dispatcher) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Active() {
		if time.Now().After(deadline) {
			t.Fatal("dispatcher never released the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherCommandFlow(t *testing.T) {
	d, rover, applied := startTestDispatcher(t, onboard.NetworkConfig{Framing: onboard.FramingFixed})
	conn := dialTest(t, d)
	defer conn.Close()

	Convey("accelerate then stop drives the outputs on and off", t, func() {
		conn.Write([]byte(onboard.CodeAccelerate))
		p, ok := waitApplied(applied)
		So(ok, ShouldBeTrue)
		So(p.Action, ShouldEqual, "accelerate")
		So(p.State, ShouldResemble, onboard.OutputState{MotorA: true, LED: true})
		So(rover.State().LED, ShouldBeTrue)

		conn.Write([]byte(onboard.CodeStop))
		p, ok = waitApplied(applied)
		So(ok, ShouldBeTrue)
		So(p.State, ShouldResemble, onboard.OutputState{})
	})

	Convey("an invalid code is skipped, the stream keeps working", t, func() {
		conn.Write([]byte("999" + onboard.CodeSteerLeft))
		p, ok := waitApplied(applied)
		So(ok, ShouldBeTrue)
		So(p.Code, ShouldEqual, onboard.CodeSteerLeft)
	})
}

func TestDispatcherReconnect(t *testing.T) {
	d, rover, applied := startTestDispatcher(t, onboard.NetworkConfig{Framing: onboard.FramingFixed})

	Convey("a partial frame at disconnect is a closed connection, not a command", t, func() {
		conn := dialTest(t, d)
		conn.Write([]byte("00"))
		conn.Close()
		waitIdle(t, d)

		select {
		case p := <-applied:
			t.Fatalf("unexpected applied action %+v", p)
		case <-time.After(100 * time.Millisecond):
		}
		So(rover.State(), ShouldResemble, onboard.OutputState{})

		Convey("and the server is back in accept, ready for the next client", func() {
			conn := dialTest(t, d)
			defer conn.Close()

			conn.Write([]byte(onboard.CodeGoStraight))
			p, ok := waitApplied(applied)
			So(ok, ShouldBeTrue)
			So(p.Action, ShouldEqual, "go-straight")
		})
	})
}

func TestDispatcherSingleConnection(t *testing.T) {
	d, _, applied := startTestDispatcher(t, onboard.NetworkConfig{Framing: onboard.FramingFixed})

	first := dialTest(t, d)
	defer first.Close()

	// make sure the first session is registered before dialing again
	first.Write([]byte(onboard.CodeAccelerate))
	if _, ok := waitApplied(applied); !ok {
		t.Fatal("first session never became active")
	}

	Convey("a second client is rejected while the first is active", t, func() {
		second := dialTest(t, d)
		defer second.Close()
		second.Write([]byte(onboard.CodeGoStraight))

		// the server closes the intruder without reading from it
		second.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err := second.Read(make([]byte, 1))
		So(err, ShouldEqual, io.EOF)

		Convey("nothing the intruder wrote leaks into the first session", func() {
			select {
			case p := <-applied:
				t.Fatalf("unexpected applied action %+v", p)
			case <-time.After(100 * time.Millisecond):
			}
		})

		Convey("the first session keeps working", func() {
			first.Write([]byte(onboard.CodeSteerRight))
			p, ok := waitApplied(applied)
			So(ok, ShouldBeTrue)
			So(p.Action, ShouldEqual, "steer-right")
		})
	})
}

func TestDispatcherNewlineFraming(t *testing.T) {
	d, _, applied := startTestDispatcher(t, onboard.NetworkConfig{Framing: onboard.FramingNewline})
	conn := dialTest(t, d)
	defer conn.Close()

	Convey("newline framed codes are decoded, bad lines skipped", t, func() {
		conn.Write([]byte("101\nabcd\n110\r\n"))

		p, ok := waitApplied(applied)
		So(ok, ShouldBeTrue)
		So(p.Code, ShouldEqual, onboard.CodeSteerLeft)

		p, ok = waitApplied(applied)
		So(ok, ShouldBeTrue)
		So(p.Code, ShouldEqual, onboard.CodeSteerRight)
	})
}

func TestDispatcherReadDeadline(t *testing.T) {
	d, _, _ := startTestDispatcher(t, onboard.NetworkConfig{Framing: onboard.FramingFixed, ReadTimeoutSec: 1})
	conn := dialTest(t, d)
	defer conn.Close()

	Convey("a silent peer is dropped once the deadline passes", t, func() {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, err := conn.Read(make([]byte, 1))
		So(err, ShouldEqual, io.EOF)
		waitIdle(t, d)
	})
}

func TestDispatcherBindError(t *testing.T) {
	Convey("a taken port surfaces as a BindError", t, func() {
		taken, err := net.Listen("tcp", ":0")
		So(err, ShouldBeNil)
		defer taken.Close()

		port := uint16(taken.Addr().(*net.TCPAddr).Port)
		d := NewDispatcher(onboard.NetworkConfig{Port: port}, onboard.NewSimulatedRover(onboard.DefaultConfig()))

		err = d.Start()
		So(err, ShouldNotBeNil)
		So(err, ShouldHaveSameTypeAs, BindError{})
	})
}

func TestFrameReaders(t *testing.T) {
	Convey("fixed framing", t, func() {
		Convey("reads exactly three bytes", func() {
			code, err := readFixedCode(strings.NewReader("001110"))
			So(err, ShouldBeNil)
			So(code, ShouldEqual, "001")
		})

		Convey("a 1-2 byte tail is a closed connection", func() {
			_, err := readFixedCode(strings.NewReader("00"))
			So(err, ShouldEqual, ErrConnectionClosed)
		})

		Convey("a clean end of stream is a closed connection", func() {
			_, err := readFixedCode(strings.NewReader(""))
			So(err, ShouldEqual, ErrConnectionClosed)
		})
	})

	Convey("newline framing", t, func() {
		Convey("strips the terminator", func() {
			code, err := readNewlineCode(bufio.NewReader(strings.NewReader("000\r\n")))
			So(err, ShouldBeNil)
			So(code, ShouldEqual, "000")
		})

		Convey("a wrong length line is an invalid code", func() {
			_, err := readNewlineCode(bufio.NewReader(strings.NewReader("0001\n")))
			So(err, ShouldHaveSameTypeAs, deverrors.InvalidCodeError{})
		})

		Convey("an unterminated tail is a closed connection", func() {
			_, err := readNewlineCode(bufio.NewReader(strings.NewReader("00")))
			So(err, ShouldEqual, ErrConnectionClosed)
		})
	})
}
