package api

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/lifeline/handoff"
	"github.com/tailored-agentic-units/lifeline/session"
)

// ServiceName is the fully-qualified Connect service name. Requests and
// responses are google.protobuf.Struct values, so clients need no generated
// code and the JSON codec accepts plain objects.
const ServiceName = "lifeline.v1.ConversationService"

// Procedure paths.
const (
	SendMessageProcedure         = "/" + ServiceName + "/SendMessage"
	RequestHumanProcedure        = "/" + ServiceName + "/RequestHuman"
	CloseHandoffProcedure        = "/" + ServiceName + "/CloseHandoff"
	SendOperatorMessageProcedure = "/" + ServiceName + "/SendOperatorMessage"
	ListHandoffSessionsProcedure = "/" + ServiceName + "/ListHandoffSessions"
	GetTranscriptProcedure       = "/" + ServiceName + "/GetTranscript"
)

type unaryFunc func(ctx context.Context, req *structpb.Struct) (map[string]any, error)

func (s *Server) registerRPC(r *mux.Router) {
	procedures := []struct {
		path string
		fn   unaryFunc
	}{
		{SendMessageProcedure, s.rpcSendMessage},
		{RequestHumanProcedure, s.rpcRequestHuman},
		{CloseHandoffProcedure, s.rpcCloseHandoff},
		{SendOperatorMessageProcedure, s.rpcSendOperatorMessage},
		{ListHandoffSessionsProcedure, s.rpcListHandoffSessions},
		{GetTranscriptProcedure, s.rpcGetTranscript},
	}

	for _, p := range procedures {
		r.Handle(p.path, connect.NewUnaryHandler(p.path, unary(p.fn)))
	}
}

func unary(fn unaryFunc) func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
		out, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, connectError(err)
		}
		msg, err := structpb.NewStruct(out)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return connect.NewResponse(msg), nil
	}
}

func (s *Server) rpcSendMessage(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	id := stringField(req, "session_id")
	if !s.allow(id) {
		return nil, ErrRateLimited
	}

	reply, err := s.kernel.HandleMessage(ctx, id, stringField(req, "text"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"kind":       string(reply.Kind),
		"text":       reply.Text,
		"state":      string(reply.State),
		"message_id": reply.MessageID,
	}, nil
}

func (s *Server) rpcRequestHuman(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	tr, err := s.kernel.RequestHuman(ctx, stringField(req, "session_id"))
	if err != nil {
		return nil, err
	}
	return transitionFields(tr), nil
}

func (s *Server) rpcCloseHandoff(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	tr, err := s.kernel.CloseHandoff(ctx, stringField(req, "session_id"))
	if err != nil {
		return nil, err
	}
	return transitionFields(tr), nil
}

func (s *Server) rpcSendOperatorMessage(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	msg, err := s.kernel.SendOperatorMessage(ctx, stringField(req, "session_id"), stringField(req, "text"))
	if err != nil {
		return nil, err
	}
	return messageFields(msg), nil
}

func (s *Server) rpcListHandoffSessions(ctx context.Context, _ *structpb.Struct) (map[string]any, error) {
	ids, err := s.kernel.HandoffSessions(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return map[string]any{"session_ids": list}, nil
}

func (s *Server) rpcGetTranscript(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	id := stringField(req, "session_id")

	conv, err := s.kernel.Conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.kernel.Transcript(ctx, id)
	if err != nil {
		return nil, err
	}

	list := make([]any, len(msgs))
	for i, m := range msgs {
		list[i] = messageFields(m)
	}
	return map[string]any{
		"session_id": id,
		"state":      string(conv.State),
		"messages":   list,
	}, nil
}

// stringField returns the string value of name, or "" when absent or not a
// string.
func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func messageFields(m session.Message) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"sender":     string(m.Sender),
		"text":       m.Text,
		"created_at": m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func transitionFields(tr handoff.Transition) map[string]any {
	out := map[string]any{
		"session_id": tr.SessionID,
		"from":       string(tr.From),
		"to":         string(tr.To),
		"trigger":    string(tr.Trigger),
		"changed":    tr.Changed,
	}
	if tr.Notice != nil {
		out["notice"] = messageFields(*tr.Notice)
	}
	return out
}
