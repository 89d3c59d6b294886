// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/lidarscope/pkg/rplidar"
	"github.com/Thermoquad/lidarscope/pkg/simulator"
)

// SerialTransport wraps a serial port
type SerialTransport struct {
	port serial.Port
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

// SetReadTimeout implements rplidar.Transport
func (s *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	return s.port.SetReadTimeout(timeout)
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketTransport carries the serial stream over binary WebSocket messages.
//
// Messages are read by a pump goroutine. A timed out Read only stops waiting
// on the channel; the gorilla connection never sees a read deadline, which
// would break it for good.
type WebSocketTransport struct {
	conn      *websocket.Conn
	messages  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	err     error
	timeout time.Duration

	buf       []byte
	bufOffset int
}

func newWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	w := &WebSocketTransport{
		conn:     conn,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketTransport) pump() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}

		// Only binary messages carry device data
		if messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketTransport) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	w.mu.Lock()
	timeout := w.timeout
	w.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data, ok := <-w.messages:
		if !ok {
			w.mu.Lock()
			defer w.mu.Unlock()
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
		}
		w.buf = data
		w.bufOffset = copy(p, data)
		return w.bufOffset, nil
	case <-expired:
		return 0, nil
	}
}

func (w *WebSocketTransport) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketTransport) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// SetReadTimeout implements rplidar.Transport
func (w *WebSocketTransport) SetReadTimeout(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = timeout
	return nil
}

// OpenSerialTransport opens a serial port at 8N1 with DTR low.
// DTR drives the motor enable line on A1 adapter boards.
func OpenSerialTransport(portName string, baudRate int) (rplidar.Transport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetDTR(false); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to clear DTR on %s: %w", portName, err)
	}

	return &SerialTransport{port: port}, nil
}

// OpenWebSocketTransport opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketTransport(wsURL, username, password string, skipSSLVerify bool) (rplidar.Transport, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketTransport(conn), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("LIDARSCOPE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection returns an opener for the simulator, WebSocket or serial
// transport selected by flags, and a description of it
func OpenConnection(logger *zap.Logger) (rplidar.Opener, string, error) {
	if simulate {
		cfg := simulator.DefaultConfig()
		cfg.Realtime = true
		cfg.CorruptionRate = simCorruption
		cfg.Seed = time.Now().UnixNano()
		cfg.Logger = logger.Named("simulator")

		opener := func() (rplidar.Transport, error) {
			return simulator.New(cfg), nil
		}
		return opener, "Simulator", nil
	}

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		opener := func() (rplidar.Transport, error) {
			return OpenWebSocketTransport(wsURL, wsUsername, password, wsNoSSLVerify)
		}
		return opener, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		opener := func() (rplidar.Transport, error) {
			return OpenSerialTransport(portName, baudRate)
		}
		return opener, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --simulate must be specified")
}

// connectSession opens the configured transport and connects a session
func connectSession(logger *zap.Logger, tweaks ...func(*rplidar.Options)) (*rplidar.Session, string, error) {
	opener, connInfo, err := OpenConnection(logger)
	if err != nil {
		return nil, "", err
	}

	opts := rplidar.DefaultOptions()
	opts.Logger = logger.Named("rplidar")
	opts.ScanReadTimeout = readTimeout
	for _, tweak := range tweaks {
		tweak(&opts)
	}

	session := rplidar.NewSession(opener, opts)
	if err := session.Connect(); err != nil {
		return nil, connInfo, err
	}
	return session, connInfo, nil
}
