package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orawipe/orawipe/internal/config"
	"github.com/orawipe/orawipe/internal/dropper"
	"github.com/orawipe/orawipe/internal/engine"
	"github.com/orawipe/orawipe/internal/guard"
	"github.com/orawipe/orawipe/internal/ws"
)

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Connection.User == "" || req.Connection.Host == "" || req.Connection.Database == "" {
		errorResponse(w, http.StatusBadRequest, "connection user, host, and database are required")
		return
	}
	if req.Payload.TargetSchema == "" {
		errorResponse(w, http.StatusBadRequest, "target_schema is required")
		return
	}
	if req.Payload.Parallel < 0 {
		errorResponse(w, http.StatusBadRequest, "parallel must be a positive integer")
		return
	}

	conn := req.toConnectionConfig()
	password, err := config.ResolvePasswordRef(conn.Password)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "resolving password secret: "+err.Error())
		return
	}
	conn.Password = password

	runReq := engine.Request{
		Schema:   req.Payload.TargetSchema,
		Parallel: req.Payload.Parallel,
		Force:    req.Payload.Force,
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ws.MsgRunStarted, map[string]string{"schema": runReq.Schema})
	}

	result, err := s.clean(r.Context(), conn, s.protectedPattern, runReq, s.logger, s.progress())
	if err != nil {
		var denied *guard.DeniedError
		if errors.As(err, &denied) {
			if s.hub != nil {
				s.hub.BroadcastEvent(ws.MsgError, map[string]string{"error": err.Error()})
			}
			errorResponse(w, http.StatusForbidden, err.Error())
			return
		}
		s.logger.Error("clean run failed", "schema", runReq.Schema, "error", err)
		if s.hub != nil {
			s.hub.BroadcastEvent(ws.MsgError, map[string]string{"error": err.Error()})
		}
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := CleanResponse{
		Schema:               result.Schema,
		Rounds:               result.Rounds,
		Dropped:              result.Dropped,
		RemainingObjectCount: len(result.Remaining),
		Remaining:            result.Remaining,
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ws.MsgRunComplete, resp)
	}

	// A stalled run reports the surviving objects so the caller can
	// retry, escalate, or accept partial cleanup.
	status := http.StatusOK
	if !result.Clean() {
		status = http.StatusInternalServerError
	}
	jsonResponse(w, status, resp)
}

// progress wires run events into the WebSocket hub, when one is attached.
func (s *Server) progress() engine.Progress {
	if s.hub == nil {
		return engine.Progress{}
	}
	return engine.Progress{
		OnOutcome: func(out dropper.Outcome) {
			s.hub.BroadcastEvent(ws.MsgDropResult, ws.DropResultPayload{
				Kind:   string(out.Object.Kind),
				Owner:  out.Object.Owner,
				Name:   out.Object.Name,
				Status: out.Status.String(),
				Reason: out.Reason(),
			})
		},
		OnRound: func(round, listed, dropped int) {
			s.hub.BroadcastEvent(ws.MsgRoundDone, ws.RoundPayload{
				Round:   round,
				Listed:  listed,
				Dropped: dropped,
			})
		},
	}
}
