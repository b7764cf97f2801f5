package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/resourcewise/internal/server/middleware"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/workflow"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// QueryRequest is the body of POST /query and POST /query/stream.
type QueryRequest struct {
	Query     string         `json:"query" validate:"required,max=4000"`
	SessionID string         `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MatchRequest is the body of POST /match.
type MatchRequest struct {
	Project   types.ProjectRequirement  `json:"project"`
	Employees []types.EmployeeCandidate `json:"employees" validate:"required,min=1,dive"`
}

// MatchResponse is the reply to POST /match.
type MatchResponse struct {
	Match   *types.MatchResult `json:"match"`
	Summary string             `json:"summary"`
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &ErrInvalidBody{Cause: errors.New("body is empty")}
		}
		return &ErrInvalidBody{Cause: err}
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func (q QueryRequest) workflowRequest(r *http.Request) workflow.Request {
	return workflow.Request{
		SessionID: q.SessionID,
		UserID:    middleware.UserIDString(r),
		Input:     q.Query,
		Context:   q.Metadata,
	}
}

// handleQuery answers one utterance.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.Run(r.Context(), req.workflowRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleQueryStream runs the workflow while reporting stage progress, then
// streams the answer as token events.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent(eventStart, map[string]string{"session_id": req.SessionID}); err != nil {
		return
	}

	wreq := req.workflowRequest(r)
	wreq.OnProgress = func(ev workflow.ProgressEvent) {
		sse.WriteEvent(eventProgress, ev) //nolint:errcheck
	}

	res, events, err := s.engine.Stream(r.Context(), wreq)
	if err != nil {
		if HTTPStatus(err) >= http.StatusInternalServerError {
			s.logger.Error("stream failed", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
			sse.WriteError(workflow.GenericErrorMessage)
			return
		}
		sse.WriteError(err.Error())
		return
	}

	var answer strings.Builder
	for ev := range events {
		switch {
		case ev.Err != nil:
			s.logger.Warn("answer stream interrupted", slog.String("session_id", req.SessionID), slog.String("error", ev.Err.Error()))
			sse.WriteError("The answer stream was interrupted.")
			return
		case ev.Done:
			sse.WriteComplete(map[string]any{
				"session_id": res.SessionID,
				"response":   answer.String(),
				"intent":     res.Intent,
				"stage":      res.Stage,
				"error":      res.Error,
				"metadata":   res.Metadata,
			})
			return
		default:
			answer.WriteString(ev.Token)
			if err := sse.WriteEvent(eventToken, map[string]string{"token": ev.Token}); err != nil {
				return
			}
		}
	}
	sse.WriteError("The answer stream ended unexpectedly.")
}

// handleMatch runs a team search over a posted project and employee pool.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.searcher.Search(&req.Project, req.Employees)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	summary := workflow.FormatMatch(&req.Project, result)
	if len(result.Combinations) == 0 {
		summary = workflow.MatchingGapMessage(&req.Project, result)
	}
	s.jsonResponse(w, http.StatusOK, MatchResponse{Match: result, Summary: summary})
}

// handleGetSession returns a conversation. With auth enabled, sessions owned
// by another user are reported as missing.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !session.ValidID(id) {
		s.fail(w, r, session.ErrInvalidID)
		return
	}

	conv, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if conv == nil {
		s.fail(w, r, &ErrSessionNotFound{SessionID: id})
		return
	}
	if s.jwtService != nil && conv.UserID != "" && conv.UserID != middleware.UserIDString(r) {
		s.fail(w, r, &ErrSessionNotFound{SessionID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, conv)
}
