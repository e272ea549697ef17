package keyboard

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketConfig configures the agent endpoint.
type WebSocketConfig struct {
	DeviceName         string
	WriteTimeout       time.Duration
	MaxReadMessageSize int64
	// AllowedOrigins restricts browser origins. Empty allows any origin;
	// agents are authenticated by API key before the upgrade.
	AllowedOrigins []string
}

// WebSocketChannel relays frames to a single keyboard agent connected over
// a WebSocket. A newly connecting agent replaces the current one.
type WebSocketChannel struct {
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
	log      *logging.Logger

	// mu guards the attached connection; writeMu serializes frames on it.
	// A slow write never holds mu.
	mu        sync.Mutex
	conn      *websocket.Conn
	agentAddr string
	writeMu   sync.Mutex
}

// NewWebSocketChannel creates a channel with no agent attached.
func NewWebSocketChannel(cfg WebSocketConfig, log *logging.Logger) *WebSocketChannel {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.MaxReadMessageSize <= 0 {
		cfg.MaxReadMessageSize = 4096
	}
	c := &WebSocketChannel{cfg: cfg, log: log}
	c.upgrader = websocket.Upgrader{
		CheckOrigin: c.checkOrigin,
	}
	return c
}

func (c *WebSocketChannel) checkOrigin(r *http.Request) bool {
	if len(c.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(c.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades the request and holds the agent connection until it
// closes or is replaced.
func (c *WebSocketChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logWarn("Agent upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(c.cfg.MaxReadMessageSize)

	c.attach(conn, r.RemoteAddr)
	defer c.detach(conn)

	if err := c.writeTo(conn, Frame{Type: FrameHello, Device: c.cfg.DeviceName}); err != nil {
		c.logWarn("Agent hello failed", zap.Error(err))
		return
	}

	// Agents only send control frames and acknowledgements; the read loop
	// exists to notice disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logWarn("Agent connection lost", zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketChannel) attach(conn *websocket.Conn, addr string) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.agentAddr = addr
	c.mu.Unlock()

	if old != nil {
		closeConn(old, websocket.ClosePolicyViolation, "replaced by newer agent")
		c.logInfo("Keyboard agent replaced", zap.String("agent", addr))
		return
	}
	c.logInfo("Keyboard agent connected", zap.String("agent", addr))
}

func (c *WebSocketChannel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.agentAddr = ""
	}
	c.mu.Unlock()

	_ = conn.Close()
	if current {
		c.logInfo("Keyboard agent disconnected")
	}
}

// Ready reports whether an agent is attached.
func (c *WebSocketChannel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// AgentAddr returns the remote address of the attached agent, or "".
func (c *WebSocketChannel) AgentAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentAddr
}

// Send types chunk on the agent.
func (c *WebSocketChannel) Send(chunk []byte) error {
	return c.write(textFrame(chunk))
}

// End tells the agent to release every held key.
func (c *WebSocketChannel) End() error {
	return c.write(Frame{Type: FrameReleaseAll})
}

// SendCombo sends a whole combo for the agent to execute.
func (c *WebSocketChannel) SendCombo(combo Combo) error {
	return c.write(comboFrame(combo))
}

// Close drops the current agent, if any.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.agentAddr = ""
	c.mu.Unlock()

	if conn != nil {
		closeConn(conn, websocket.CloseGoingAway, "server shutting down")
	}
	return nil
}

// write sends f to the current agent. A failed write detaches the agent.
func (c *WebSocketChannel) write(f Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := c.writeTo(conn, f); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.agentAddr = ""
		}
		c.mu.Unlock()
		_ = conn.Close()
		c.logWarn("Agent write failed, detaching", zap.String("frame", f.Type), zap.Error(err))
		return err
	}
	return nil
}

// writeTo writes one frame, bounded by WriteTimeout.
func (c *WebSocketChannel) writeTo(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func (c *WebSocketChannel) logInfo(msg string, fields ...zap.Field) {
	if c.log != nil {
		c.log.Info(msg, append(fields, zap.String("component", "keyboard"))...)
	}
}

func (c *WebSocketChannel) logWarn(msg string, fields ...zap.Field) {
	if c.log != nil {
		c.log.Warn(msg, append(fields, zap.String("component", "keyboard"))...)
	}
}
