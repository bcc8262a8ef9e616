package simulator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ConsolePrompter asks the operator for a recovery decision over stdin/stdout.
// It is used only when passed to New as the prompter; the service does not
// switch to it on its own.
type ConsolePrompter struct {
	in  io.Reader
	out io.Writer
}

// NewConsolePrompter builds a prompter over the given streams.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: in, out: out}
}

// AskRecoveryAction prints the failure and reads one of retry/skip/abort
// from the console, defaulting to skip on EOF or an unrecognized answer.
func (p *ConsolePrompter) AskRecoveryAction(ctx context.Context, slot *ActionSlot, cause error) RecoveryAction {
	fmt.Fprintf(p.out, "slot %s (account %s) failed after %d attempts: %v\n", slot.ID, slot.AccountID, slot.Attempts, cause)
	fmt.Fprint(p.out, "retry, skip, or abort? [skip] ")

	scanner := bufio.NewScanner(p.in)
	if !scanner.Scan() {
		return RecoverySkip
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "retry", "r":
		return RecoveryRetry
	case "abort", "a":
		return RecoveryAbort
	default:
		return RecoverySkip
	}
}

// recoveryPrompt is the message sent to a connected operator session when a
// slot needs a recovery decision.
type recoveryPrompt struct {
	SlotID    string `json:"slot_id"`
	AccountID string `json:"account_id"`
	Attempts  int    `json:"attempts"`
	Cause     string `json:"cause"`
}

// recoveryReply is what the operator session sends back.
type recoveryReply struct {
	Action RecoveryAction `json:"action"`
}

// WebSocketPrompter forwards recovery decisions to a connected operator
// session, falling back to skip if the connection errors or times out.
type WebSocketPrompter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// NewWebSocketPrompter wraps an already-established operator connection.
func NewWebSocketPrompter(conn *websocket.Conn, timeout time.Duration) *WebSocketPrompter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebSocketPrompter{conn: conn, timeout: timeout}
}

// AskRecoveryAction sends the prompt and waits up to its timeout for a reply.
func (p *WebSocketPrompter) AskRecoveryAction(ctx context.Context, slot *ActionSlot, cause error) RecoveryAction {
	prompt := recoveryPrompt{
		SlotID:    slot.ID,
		AccountID: slot.AccountID,
		Attempts:  slot.Attempts,
		Cause:     cause.Error(),
	}
	data, err := json.Marshal(prompt)
	if err != nil {
		return RecoverySkip
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return RecoverySkip
	}

	_ = p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	_, raw, err := p.conn.ReadMessage()
	if err != nil {
		return RecoverySkip
	}

	var reply recoveryReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return RecoverySkip
	}
	switch reply.Action {
	case RecoveryRetry, RecoveryAbort, RecoverySkip:
		return reply.Action
	default:
		return RecoverySkip
	}
}
