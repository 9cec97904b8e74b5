package echo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func startServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	server := NewServer(opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})

	return server, ln.Addr().String()
}

func roundTrip(t *testing.T, conn net.Conn, msg []byte) []byte {
	t.Helper()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return buf
}

func TestServer_Echoes(t *testing.T) {
	server, addr := startServer(t, Options{})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 3; i++ {
		got := roundTrip(t, conn, []byte("hello world"))
		if !bytes.Equal(got, []byte("hello world")) {
			t.Errorf("Expected echo, got %q", got)
		}
	}

	if server.Accepted() != 1 {
		t.Errorf("Expected 1 accepted connection, got %d", server.Accepted())
	}
	if server.Echoed() != 3 {
		t.Errorf("Expected 3 echoes, got %d", server.Echoed())
	}
}

func TestServer_CloseAfter(t *testing.T) {
	_, addr := startServer(t, Options{CloseAfter: 2})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	roundTrip(t, conn, []byte("one"))
	roundTrip(t, conn, []byte("two"))

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	conn.Write([]byte("three"))
	buf := make([]byte, 16)
	if _, err := conn.Read(buf); err == nil {
		t.Error("Expected connection to be closed after the limit")
	}
}

func TestServer_Delay(t *testing.T) {
	_, addr := startServer(t, Options{Delay: 50 * time.Millisecond})

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	start := time.Now()
	roundTrip(t, conn, []byte("ping"))
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected echo to be delayed, took %v", elapsed)
	}
}

func TestServer_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	server := NewServer(Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, ln)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	roundTrip(t, conn, []byte("ping"))

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error on cancel, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenAndServe_InvalidAddress(t *testing.T) {
	server := NewServer(Options{}, nil)
	if err := server.ListenAndServe(context.Background(), "127.0.0.1:-1"); err == nil {
		t.Error("Expected error for invalid address")
	}
}

// flakyListener hands out one connection, then fails
type flakyListener struct {
	net.Listener
	accepted bool
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.accepted {
		return nil, errors.New("accept failed")
	}
	l.accepted = true
	return l.Listener.Accept()
}

func TestServe_AcceptErrorClosesClients(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- NewServer(Options{}, nil).Serve(context.Background(), &flakyListener{Listener: ln})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected accept error to be returned")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve waited on an idle client after accept failed")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 8)); err == nil {
		t.Error("Expected client connection to be closed")
	}
}
