package client

import (
	"io"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/gesturelink/rover/onboard"
)

func startTestServer(t *testing.T) (addr string, received chan string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lis.Close() })

	received = make(chan string, 16)
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 3)
		for {
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			received <- string(buf)
		}
	}()

	return lis.Addr().String(), received
}

func waitCode(received chan string) (code string, ok bool) {
	select {
	case code = <-received:
		return code, true
	case <-time.After(2 * time.Second):
		return "", false
	}
}

func TestSender(t *testing.T) {
	addr, received := startTestServer(t)

	sender, err := Dial(SenderConfig{Addr: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	Convey("actions go out as their wire codes", t, func() {
		So(sender.Connected(), ShouldBeTrue)
		So(sender.Send(onboard.Accelerate), ShouldBeNil)

		code, ok := waitCode(received)
		So(ok, ShouldBeTrue)
		So(code, ShouldEqual, onboard.CodeAccelerate)
	})
}

func TestSenderCooldown(t *testing.T) {
	addr, received := startTestServer(t)

	sender, err := Dial(SenderConfig{Addr: addr, Cooldown: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	Convey("sends inside the cooldown window are suppressed", t, func() {
		So(sender.Send(onboard.Accelerate), ShouldBeNil)
		if _, ok := waitCode(received); !ok {
			t.Fatal("first send never arrived")
		}

		So(sender.Send(onboard.SteerLeft), ShouldEqual, ErrCooldown)

		Convey("but stop always goes through", func() {
			So(sender.Send(onboard.Stop), ShouldBeNil)

			code, ok := waitCode(received)
			So(ok, ShouldBeTrue)
			So(code, ShouldEqual, onboard.CodeStop)
		})
	})
}

func TestSenderLifecycle(t *testing.T) {
	Convey("dialing a dead address fails", t, func() {
		_, err := Dial(SenderConfig{Addr: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
		So(err, ShouldNotBeNil)
	})

	Convey("a closed sender refuses to transmit", t, func() {
		addr, _ := startTestServer(t)
		sender, err := Dial(SenderConfig{Addr: addr})
		So(err, ShouldBeNil)

		So(sender.Close(), ShouldBeNil)
		So(sender.Connected(), ShouldBeFalse)
		So(sender.Send(onboard.Stop), ShouldEqual, ErrNotConnected)
	})
}
