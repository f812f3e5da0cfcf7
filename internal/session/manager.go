package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketchat/internal/models"
	"marketchat/pkg/logger"

	"github.com/gorilla/websocket"
)

type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Conn is the minimal surface of a live websocket the manager drives.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens a Conn. Production uses the gorilla dialer; tests inject fakes.
type Dialer interface {
	Dial(url string) (Conn, error)
}

type ManagerConfig struct {
	Dialer               Dialer
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// OnEvent receives every decoded inbound frame.
	OnEvent func(ev models.ServerEvent)
	// OnStateChange reports transitions plus the current error text, empty
	// when the transition cleared it.
	OnStateChange func(state ConnState, errText string)
}

func (c *ManagerConfig) norm() {
	if c.Dialer == nil {
		c.Dialer = &WebsocketDialer{}
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
}

// ConnectTarget is everything needed to (re)establish one room's session:
// the gateway URL and the init frames transmitted, in order, on every open.
type ConnectTarget struct {
	URL        string
	InitFrames [][]byte
}

// Manager owns the lifecycle of exactly one websocket. The socket handle,
// attempt counter, reconnect timer and outbound queue are fields of this one
// struct and only Manager methods touch them.
type Manager struct {
	mu  sync.Mutex
	cfg ManagerConfig

	state    ConnState
	conn     Conn
	attempts int
	timer    *time.Timer
	gen      int // bumps on every connect/teardown; stale dials and closes check it
	lastErr  string

	target ConnectTarget
	queue  outboundQueue
}

func NewManager(cfg ManagerConfig) *Manager {
	cfg.norm()
	return &Manager{cfg: cfg, state: StateIdle}
}

// Connect starts a fresh connection attempt streak for the target. A target
// swap goes through Close first; Connect assumes no socket is live.
func (m *Manager) Connect(target ConnectTarget) {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.target = target
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.setStateLocked(StateConnecting, "")
	m.unlockAndNotify()

	go m.dial(gen)
}

// EnqueueOrSend transmits the frame immediately on an open socket and buffers
// it otherwise. A failed immediate write re-queues the frame; the read loop
// notices the dead socket and the next flush delivers it.
func (m *Manager) EnqueueOrSend(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateOpen && m.conn != nil {
		if err := m.conn.WriteMessage(frame); err != nil {
			logger.Error("websocket write failed, queueing frame: %v", err)
			m.queue.enqueue(frame)
		}
		return
	}
	m.queue.enqueue(frame)
}

// QueueLen reports the number of buffered frames.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Close tears the session down: cancels any pending reconnect, clears the
// queue and closes an open socket with code 1000. Buffered frames are
// discarded, never replayed into the next room.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.queue.clear()
	m.gen++
	if m.conn != nil {
		m.setStateLocked(StateClosing, "")
		if err := m.conn.Close(websocket.CloseNormalClosure, "client closing"); err != nil {
			logger.Debug("close error: %v", err)
		}
		m.conn = nil
	}
	m.setStateLocked(StateClosed, "")
	m.unlockAndNotify()
}

// Abort terminates the session without retry, used when the server pushes an
// application-level forbidden error. The socket is closed with code 4003.
func (m *Manager) Abort(reason string) {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.gen++
	if m.conn != nil {
		if err := m.conn.Close(models.CloseForbidden, reason); err != nil {
			logger.Debug("close error: %v", err)
		}
		m.conn = nil
	}
	m.setStateLocked(StateFailed, reason)
	m.unlockAndNotify()
}

func (m *Manager) dial(gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	url := m.target.URL
	m.mu.Unlock()

	conn, err := m.cfg.Dialer.Dial(url)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			_ = conn.Close(websocket.CloseNormalClosure, "superseded")
		}
		return
	}

	if err != nil {
		logger.Error("websocket dial failed: %v", err)
		m.scheduleReconnectLocked(fmt.Sprintf("connection interrupted: %v", err))
		m.unlockAndNotify()
		return
	}

	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateOpen, "")

	// Fixed init order: identify, roster, notification backlog. The queue
	// flush follows so ops buffered while disconnected go out afterwards.
	for _, frame := range m.target.InitFrames {
		if err := conn.WriteMessage(frame); err != nil {
			logger.Error("init send failed: %v", err)
			break
		}
	}
	if err := m.queue.drain(conn.WriteMessage); err != nil {
		logger.Error("queue flush interrupted: %v", err)
	}
	m.unlockAndNotify()

	go m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen int, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}

		var ev models.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("malformed frame dropped: %v", err)
			continue
		}
		if m.cfg.OnEvent != nil {
			m.cfg.OnEvent(ev)
		}
	}
}

func (m *Manager) handleClose(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		// A teardown or target swap already superseded this socket.
		m.mu.Unlock()
		return
	}
	m.conn = nil

	code := -1
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	switch {
	case code == websocket.CloseNormalClosure:
		m.queue.clear()
		m.setStateLocked(StateClosed, "")
	case code == models.CloseForbidden:
		m.setStateLocked(StateFailed, "unauthorized for this room")
	default:
		m.scheduleReconnectLocked(fmt.Sprintf("connection interrupted: %v", err))
	}
	m.unlockAndNotify()
}

// scheduleReconnectLocked implements the bounded fixed-delay retry policy.
func (m *Manager) scheduleReconnectLocked(reason string) {
	m.attempts++
	if m.attempts > m.cfg.MaxReconnectAttempts {
		m.setStateLocked(StateFailed, "connection failed after repeated attempts")
		return
	}

	m.setStateLocked(StateReconnecting, reason)
	gen := m.gen
	m.timer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		if gen != m.gen || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting, m.lastErr)
		m.unlockAndNotify()
		m.dial(gen)
	})
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStateLocked(state ConnState, errText string) {
	m.state = state
	m.lastErr = errText
}

// unlockAndNotify releases the lock, then reports the transition. The
// callback never runs under the manager lock, so it may call back in.
func (m *Manager) unlockAndNotify() {
	state, errText := m.state, m.lastErr
	cb := m.cfg.OnStateChange
	m.mu.Unlock()
	if cb != nil {
		cb(state, errText)
	}
}
