package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/clawinfra/trustcore/internal/approval"
	"github.com/clawinfra/trustcore/internal/trustcore"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// wsConn serializes writes to a *websocket.Conn. The read loop and
// forwardEvents both write to the same connection (RPC replies and
// pushed approval events respectively), and a *websocket.Conn only
// guarantees one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(ctx context.Context, v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsjson.Write(ctx, w.conn, v)
}

// RPCRequest is one JSON-RPC frame sent by a WS client. Per spec.md §6,
// the inbound RPC surface is exactly two methods.
type RPCRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// RPCResponse is the corresponding reply frame.
type RPCResponse struct {
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// RPCError is the {code, message} shape spec.md §6 requires.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errInvalidRequest     = "INVALID_REQUEST"
	errApprovalNotFound   = "APPROVAL_NOT_FOUND"
	errAlreadyResolved    = "ALREADY_RESOLVED"
	errRateLimited        = "RATE_LIMITED"
	methodApprovalRespond = "chat.approval.respond"
	methodApprovalStatus  = "chat.approval.status"
)

// approvalRespondParams is chat.approval.respond's body.
type approvalRespondParams struct {
	RequestID string            `json:"request_id"`
	Decision  approval.Decision `json:"decision"`
}

// approvalStatusParams is chat.approval.status's body.
type approvalStatusParams struct {
	RequestID string `json:"request_id"`
}

// handleWS gates and drives one WebSocket connection: a short-lived
// challenge token checked before the upgrade, origin guard and per-IP
// connection quota checked right after it, then a JSON-RPC read loop
// dispatching chat.approval.* to the coordinator while forwarding approval
// events from the event bus.
//
// Adapted from the teacher's internal/api.handleTerminalWS: same
// gate-then-upgrade-then-loop shape, with the trust core's own gates
// (origin, rate limit, challenge token) standing in for evoclaw's bare
// JWT check, and chat.approval.* standing in for its "chat" message type.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	remoteIP := remoteHost(r.RemoteAddr)
	origin := r.Header.Get("Origin")

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		s.recordAuthFailure(remoteIP)
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := s.issuer.Validate(tokenStr)
	if err != nil {
		s.recordAuthFailure(remoteIP)
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	if s.limiter != nil {
		s.limiter.ClearAuthFailures(remoteIP)
	}
	sessionKey := claims.SessionKey

	// The library's own same-host origin check is skipped: OriginGuard below
	// makes the origin decision, so a rejected origin gets a 1008 close.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}

	// Origin and connection-rate gates run after the upgrade so a rejection
	// can close with WS status 1008 rather than a pre-handshake HTTP status.
	if s.originGuard != nil {
		od := s.originGuard.CheckOrigin(remoteIP, origin)
		if !od.Allowed {
			terr := trustcore.New(trustcore.CodeOriginRejected, od.Reason)
			s.logger.Warn("ws origin rejected", "remote", remoteIP, "origin", origin, "error", terr)
			conn.Close(websocket.StatusPolicyViolation, od.Reason)
			return
		}
	}

	if s.limiter != nil {
		if d := s.limiter.CheckConnection(remoteIP); !d.Allowed {
			terr := trustcore.RateLimited(d.RetryAfterMs)
			s.logger.Warn("ws connection rate limited", "remote", remoteIP, "error", terr)
			conn.Close(websocket.StatusPolicyViolation, "rate limited")
			return
		}
	}

	connID := uuid.New().String()
	defer func() {
		if s.limiter != nil {
			s.limiter.RemoveConnection(connID)
		}
		conn.Close(websocket.StatusNormalClosure, "session ended")
	}()

	s.logger.Info("ws connected", "remote", remoteIP, "session_key", sessionKey)

	wc := &wsConn{conn: conn}

	sub := s.bus.Subscribe(sessionKey)
	defer s.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go s.forwardEvents(r.Context(), wc, sub, done)
	defer close(done)

	for {
		var req RPCRequest
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			s.logger.Debug("ws read ended", "error", err)
			return
		}

		if s.limiter != nil {
			if d := s.limiter.CheckRPCCall(connID); !d.Allowed {
				s.logger.Warn("ws rpc rate limited", "remote", remoteIP, "error", trustcore.RateLimited(d.RetryAfterMs))
				s.writeResponse(r.Context(), wc, RPCResponse{
					ID:    req.ID,
					Error: &RPCError{Code: errRateLimited, Message: "too many RPC calls"},
				})
				conn.Close(websocket.StatusPolicyViolation, "rate limited")
				return
			}
		}

		s.dispatch(r.Context(), wc, sessionKey, req)
	}
}

// forwardEvents pushes approval events from sub onto wc as they arrive,
// framed as an "event" RPCResponse-shaped notification (no ID: it is a
// push, not a reply).
func (s *Server) forwardEvents(ctx context.Context, wc *wsConn, sub *Subscription, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.writeResponse(ctx, wc, RPCResponse{OK: true, Result: ev})
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, wc *wsConn, sessionKey string, req RPCRequest) {
	switch req.Method {
	case methodApprovalRespond:
		s.handleApprovalRespond(ctx, wc, req)
	case methodApprovalStatus:
		s.handleApprovalStatus(ctx, wc, sessionKey, req)
	default:
		s.writeResponse(ctx, wc, RPCResponse{
			ID:    req.ID,
			Error: &RPCError{Code: errInvalidRequest, Message: "unknown method: " + req.Method},
		})
	}
}

func (s *Server) handleApprovalRespond(ctx context.Context, wc *wsConn, req RPCRequest) {
	var params approvalRespondParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.RequestID == "" {
		s.writeResponse(ctx, wc, RPCResponse{
			ID:    req.ID,
			Error: &RPCError{Code: errInvalidRequest, Message: "request_id and decision are required"},
		})
		return
	}
	if !params.Decision.IsValid() {
		s.writeResponse(ctx, wc, RPCResponse{
			ID:    req.ID,
			Error: &RPCError{Code: errInvalidRequest, Message: "decision must be one of allow-once, allow-session, allow-always, deny"},
		})
		return
	}

	// ResolveApproval's own emit() already reaches the audit trail via
	// internal/transcript's NewApprovalEmitter (wired in cmd/gateway/main.go);
	// no separate write here — handleApprovalStatus is the read side of that
	// same store.
	result, err := s.coordinator.ResolveApproval(params.RequestID, params.Decision)
	if err != nil {
		code := errApprovalNotFound
		if errors.Is(err, approval.ErrAlreadyResolved) {
			code = errAlreadyResolved
		}
		s.writeResponse(ctx, wc, RPCResponse{ID: req.ID, Error: &RPCError{Code: code, Message: err.Error()}})
		return
	}

	s.writeResponse(ctx, wc, RPCResponse{
		ID: req.ID,
		OK: true,
		Result: map[string]interface{}{
			"ok":         true,
			"request_id": params.RequestID,
			"decision":   result.Decision,
		},
	})
}

// handleApprovalStatus answers chat.approval.status. Per spec.md §6 the
// success shape is always at least {request_id, pending}; once a request is
// no longer pending we additionally consult the persisted audit trail
// (internal/transcript) for how it settled, so a reconnecting client (or one
// that was offline for the approval_resolved push) can still learn the
// outcome instead of just "not pending anymore".
func (s *Server) handleApprovalStatus(ctx context.Context, wc *wsConn, sessionKey string, req RPCRequest) {
	var params approvalStatusParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.RequestID == "" {
		s.writeResponse(ctx, wc, RPCResponse{
			ID:    req.ID,
			Error: &RPCError{Code: errInvalidRequest, Message: "request_id is required"},
		})
		return
	}

	pending := s.coordinator.HasPending(params.RequestID)
	result := map[string]interface{}{
		"request_id": params.RequestID,
		"pending":    pending,
	}

	if !pending && s.store != nil {
		records, err := s.store.AuditTrailForSession(ctx, sessionKey)
		if err != nil {
			s.logger.Warn("failed to read audit trail for status lookup", "error", err)
		} else {
			for _, rec := range records {
				if rec.RequestID != params.RequestID {
					continue
				}
				result["outcome"] = rec.Outcome
				if rec.Decision != "" {
					result["decision"] = rec.Decision
				}
				break
			}
		}
	}

	s.writeResponse(ctx, wc, RPCResponse{ID: req.ID, OK: true, Result: result})
}

func (s *Server) writeResponse(ctx context.Context, wc *wsConn, resp RPCResponse) {
	if err := wc.writeJSON(ctx, resp); err != nil {
		s.logger.Warn("ws write error", "error", err)
	}
}

func (s *Server) recordAuthFailure(ip string) {
	if s.limiter == nil {
		return
	}
	if d := s.limiter.CheckAuthAttempt(ip); !d.Allowed {
		return
	}
	s.limiter.RecordAuthFailure(ip)
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

