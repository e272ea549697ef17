package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/indicator"
	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/linkmon"
	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/validation"
)

// Command names used in metrics and logs.
const (
	CommandCtrlAltDel = "ctrlaltdel"
	CommandSleep      = "sleep"
	CommandLEDToggle  = "led_toggle"
	CommandType       = "type"
)

// SuccessResponse answers a completed command.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AcceptedResponse answers text that was queued for typing.
type AcceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Length  int    `json:"length"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Keyboard  keyboard.Status `json:"keyboard" yaml:"keyboard"`
	LED       LEDStatus       `json:"led" yaml:"led"`
	Link      LinkStatus      `json:"link" yaml:"link"`
	Uptime    int64           `json:"uptime" yaml:"uptime"`
	RateLimit RateLimitStatus `json:"rate_limit" yaml:"rate_limit"`
}

// LEDStatus reports the manual state, whether the outage flash is active
// and what the indicator currently shows.
type LEDStatus struct {
	State    bool `json:"state" yaml:"state"`
	Flashing bool `json:"flashing" yaml:"flashing"`
	Lit      bool `json:"lit" yaml:"lit"`
}

// LinkStatus describes the keyboard agent link.
type LinkStatus struct {
	Status         string `json:"status" yaml:"status"`
	DisconnectedMs uint32 `json:"disconnected_ms" yaml:"disconnected_ms"`
	Alert          bool   `json:"alert" yaml:"alert"`
}

// RateLimitStatus describes the command rate limiter.
type RateLimitStatus struct {
	Tracked     int    `json:"tracked" yaml:"tracked"`
	WindowMs    uint32 `json:"window_ms" yaml:"window_ms"`
	MaxRequests int    `json:"max_requests" yaml:"max_requests"`
}

// KeyboardAPI serves the command and status endpoints. Link and Limiter
// may be nil.
type KeyboardAPI struct {
	Keyboard         *keyboard.Manager
	Indicator        *indicator.Indicator
	Link             *linkmon.Monitor
	Limiter          *ratelimit.Limiter
	StartedAt        time.Time
	MaxMessageLength int
	Log              *logging.Logger
}

// Root serves the plain-text endpoint overview.
func (a *KeyboardAPI) Root(w http.ResponseWriter, r *http.Request) {
	maxLen := a.maxMessageLength()
	var b strings.Builder
	fmt.Fprintf(&b, "%s remote keyboard\n\n", a.Keyboard.DeviceName())
	b.WriteString("Endpoints:\n")
	b.WriteString("  GET  /status            keyboard, LED and link state\n")
	b.WriteString("  POST /ctrlaltdel        send Ctrl+Alt+Delete\n")
	b.WriteString("  POST /sleep             send the Windows sleep sequence\n")
	b.WriteString("  POST /led/toggle        toggle the status LED\n")
	fmt.Fprintf(&b, "  POST /type?msg=TEXT     type TEXT (max %d characters)\n", maxLen)
	b.WriteString("  GET  /keyboard/agent    WebSocket for the keyboard agent\n")
	b.WriteString("  GET  /health            service health\n")
	b.WriteString("  GET  /version           build information\n")
	b.WriteString("  GET  /metrics           Prometheus metrics\n\n")
	b.WriteString("Commands require the X-API-Key header and are rate limited per client.\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

// Status reports the current state without authentication.
func (a *KeyboardAPI) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Snapshot())
}

// Snapshot gathers the status body.
func (a *KeyboardAPI) Snapshot() StatusResponse {
	resp := StatusResponse{
		Keyboard: a.Keyboard.Status(),
		LED: LEDStatus{
			State:    a.Indicator.ManualState(),
			Flashing: a.Indicator.IsFlashing(),
			Lit:      a.Indicator.State(),
		},
		Uptime: int64(time.Since(a.StartedAt).Seconds()),
	}
	if a.Link != nil {
		resp.Link = LinkStatus{
			Status:         a.Link.StatusString(),
			DisconnectedMs: uint32(a.Link.DisconnectedFor()),
			Alert:          a.Link.IsDisconnectedLongTerm(),
		}
	}
	if a.Limiter != nil {
		resp.RateLimit = RateLimitStatus{
			Tracked:     a.Limiter.TrackedClientCount(),
			WindowMs:    uint32(a.Limiter.Window()),
			MaxRequests: a.Limiter.MaxRequests(),
		}
	}
	return resp
}

// CtrlAltDel sends Ctrl+Alt+Delete.
func (a *KeyboardAPI) CtrlAltDel(w http.ResponseWriter, r *http.Request) {
	a.combo(w, r, CommandCtrlAltDel, a.Keyboard.SendCtrlAltDel, "Sent Ctrl+Alt+Del")
}

// Sleep sends the sleep key sequence.
func (a *KeyboardAPI) Sleep(w http.ResponseWriter, r *http.Request) {
	a.combo(w, r, CommandSleep, a.Keyboard.SendSleepCombo, "Sent Sleep Combo")
}

func (a *KeyboardAPI) combo(w http.ResponseWriter, r *http.Request, name string, send func() error, message string) {
	if err := send(); err != nil {
		metrics.RecordKeyboardCommand(name, false)
		respondWithError(w, r, apperrors.FromKeyboardError(r.Context(), err))
		return
	}
	metrics.RecordKeyboardCommand(name, true)
	writeJSON(w, http.StatusOK, SuccessResponse{Status: "success", Message: message})
}

// ToggleLED flips the manual LED state.
func (a *KeyboardAPI) ToggleLED(w http.ResponseWriter, r *http.Request) {
	state := "OFF"
	if a.Indicator.Toggle() {
		state = "ON"
	}
	metrics.RecordKeyboardCommand(CommandLEDToggle, true)
	if a.Log != nil {
		a.Log.Info("LED toggled", zap.String("component", "api"), zap.String("state", state))
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Status: "success", Message: "LED is now " + state})
}

// Type validates msg and queues it for typing.
func (a *KeyboardAPI) Type(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("msg") {
		metrics.RecordKeyboardCommand(CommandType, false)
		respondWithError(w, r, apperrors.NewInvalidParameterError("Missing 'msg' parameter"))
		return
	}
	msg := query.Get("msg")

	if err := validation.ValidateMessage(msg, a.maxMessageLength()); err != nil {
		metrics.RecordKeyboardCommand(CommandType, false)
		respondWithError(w, r, apperrors.FromKeyboardError(r.Context(), err))
		return
	}

	if a.Log != nil {
		a.Log.Info("Typing message",
			zap.String("component", "api"),
			zap.Int("length", len(msg)),
			zap.String("text", validation.SanitizeForLog(msg, validation.DefaultLogLength)))
	}

	if err := a.Keyboard.QueueText(msg); err != nil {
		metrics.RecordKeyboardCommand(CommandType, false)
		respondWithError(w, r, apperrors.FromKeyboardError(r.Context(), err))
		return
	}

	metrics.RecordKeyboardCommand(CommandType, true)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{
		Status:  "accepted",
		Message: "Message queued for sending",
		Length:  len(msg),
	})
}

func (a *KeyboardAPI) maxMessageLength() int {
	if a.MaxMessageLength > 0 {
		return a.MaxMessageLength
	}
	return validation.DefaultMaxMessageLength
}
