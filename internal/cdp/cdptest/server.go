// File: internal/cdp/cdptest/server.go

// Package cdptest provides a fake remote-debugging endpoint for tests: an
// in-process HTTP server exposing the /json discovery list and one websocket
// target whose command responses are scripted per test.
package cdptest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
)

const targetPath = "/devtools/page/fake-target-1"

// ReceivedCommand is one decoded command frame the fake browser accepted.
type ReceivedCommand struct {
	ID     int            `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// stubKey addresses a scripted response: by method, and for Runtime.evaluate
// additionally by the exact expression text.
type stubKey struct {
	method string
	expr   string
}

// Browser is the fake endpoint. Zero scripting yields a browser that answers
// every evaluate with an unknown-shaped result, which is itself a useful
// failure mode to test against.
type Browser struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	stubs       map[stubKey][]string // queued raw JSON for the response "result" member
	preFrames   []string             // frames flushed before the next matching response
	swallowNext bool
	received    []ReceivedCommand
	conns       []*websocket.Conn // hijacked sockets; srv.Close no longer tracks these
}

// New starts the fake browser and registers its shutdown with t.Cleanup.
func New(t *testing.T) *Browser {
	t.Helper()
	b := &Browser{
		t:     t,
		stubs: make(map[stubKey][]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/json", b.handleDiscovery)
	mux.HandleFunc(targetPath, b.handleWebsocket)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// URL returns the http base of the discovery endpoint.
func (b *Browser) URL() string { return b.srv.URL }

// WSURL returns the websocket URL of the single fake target.
func (b *Browser) WSURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + targetPath
}

// StubEval queues rawResult as the `result.result` remote object returned
// for one Runtime.evaluate of exactly expr. Repeated calls queue in order.
func (b *Browser) StubEval(expr, rawResult string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := stubKey{method: "Runtime.evaluate", expr: expr}
	b.stubs[k] = append(b.stubs[k], fmt.Sprintf(`{"result":%s}`, rawResult))
}

// StubMethod queues rawResult as the whole `result` member returned for one
// call of the given non-evaluate method.
func (b *Browser) StubMethod(method, rawResult string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := stubKey{method: method}
	b.stubs[k] = append(b.stubs[k], rawResult)
}

// InjectFrame sends raw as an extra frame before the next command's real
// response, simulating unsolicited protocol events and stale replies.
func (b *Browser) InjectFrame(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preFrames = append(b.preFrames, raw)
}

// SwallowNext makes the fake accept the next command without answering it
// at all, so only the client's own deadline can end the wait.
func (b *Browser) SwallowNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.swallowNext = true
}

// Received returns every command frame accepted so far, in order.
func (b *Browser) Received() []ReceivedCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ReceivedCommand, len(b.received))
	copy(out, b.received)
	return out
}

// Close shuts the server down early; otherwise t.Cleanup handles it.
func (b *Browser) Close() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	b.srv.Close()
}

func (b *Browser) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `[{"id":"fake-target-1","type":"page","title":"fake","url":"about:blank","webSocketDebuggerUrl":%q}]`, b.WSURL())
}

func (b *Browser) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd ReceivedCommand
		if err := json.Unmarshal(frame, &cmd); err != nil {
			b.t.Errorf("fake browser received a non-JSON frame: %v", err)
			return
		}

		for _, out := range b.takeFrames(cmd) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(out)); err != nil {
				return
			}
		}
	}
}

// takeFrames records the command and builds the frames to answer it with:
// any injected pre-frames, then the scripted (or fallback) response.
func (b *Browser) takeFrames(cmd ReceivedCommand) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.received = append(b.received, cmd)

	if b.swallowNext {
		b.swallowNext = false
		return nil
	}

	frames := b.preFrames
	b.preFrames = nil

	key := stubKey{method: cmd.Method}
	if cmd.Method == "Runtime.evaluate" {
		key.expr, _ = cmd.Params["expression"].(string)
	}

	var result string
	if queue := b.stubs[key]; len(queue) > 0 {
		result = queue[0]
		b.stubs[key] = queue[1:]
	} else if cmd.Method == "Runtime.evaluate" {
		// Unscripted evaluate: answer with a shape the client won't know.
		result = `{"result":{"type":"object","subtype":"unstubbed"}}`
	} else {
		result = `{}`
	}

	return append(frames, fmt.Sprintf(`{"id":%d,"result":%s}`, cmd.ID, result))
}
