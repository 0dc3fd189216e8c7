package api_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/lifeline/api"
	"github.com/tailored-agentic-units/lifeline/kernel"
	"github.com/tailored-agentic-units/lifeline/session"
)

func call(t *testing.T, baseURL, procedure string, fields map[string]any, opts ...connect.ClientOption) (*structpb.Struct, error) {
	t.Helper()

	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatal(err)
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, baseURL+procedure, opts...)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func str(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func TestRPC_EndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := call(t, srv.URL, api.SendMessageProcedure, map[string]any{"session_id": "s1", "text": "oi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if str(resp, "kind") != string(kernel.ReplyAssistant) {
		t.Errorf("got kind %q, want %q", str(resp, "kind"), kernel.ReplyAssistant)
	}
	if str(resp, "message_id") == "" {
		t.Error("assistant reply has no message id")
	}

	resp, err = call(t, srv.URL, api.SendMessageProcedure, map[string]any{"session_id": "s1", "text": "nao aguento mais"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if str(resp, "state") != string(session.StateHumanActive) {
		t.Errorf("got state %q, want %q", str(resp, "state"), session.StateHumanActive)
	}

	resp, err = call(t, srv.URL, api.ListHandoffSessionsProcedure, map[string]any{})
	if err != nil {
		t.Fatalf("ListHandoffSessions failed: %v", err)
	}
	ids := resp.GetFields()["session_ids"].GetListValue().GetValues()
	if len(ids) != 1 || ids[0].GetStringValue() != "s1" {
		t.Errorf("got session ids %v, want [s1]", ids)
	}

	resp, err = call(t, srv.URL, api.CloseHandoffProcedure, map[string]any{"session_id": "s1"})
	if err != nil {
		t.Fatalf("CloseHandoff failed: %v", err)
	}
	if !resp.GetFields()["changed"].GetBoolValue() || str(resp, "to") != string(session.StateAIActive) {
		t.Errorf("got transition %v, want change to ai_active", resp)
	}

	resp, err = call(t, srv.URL, api.GetTranscriptProcedure, map[string]any{"session_id": "s1"})
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	msgs := resp.GetFields()["messages"].GetListValue().GetValues()
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}

	wantSenders := []session.Sender{
		session.SenderUser,
		session.SenderAssistant,
		session.SenderUser,
		session.SenderSystem,
		session.SenderSystem,
	}
	for i, m := range msgs {
		if got := str(m.GetStructValue(), "sender"); got != string(wantSenders[i]) {
			t.Errorf("message %d: got sender %q, want %q", i, got, wantSenders[i])
		}
	}
}

func TestRPC_RequestHumanAndOperatorMessage(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := call(t, srv.URL, api.RequestHumanProcedure, map[string]any{"session_id": "s1"})
	if err != nil {
		t.Fatalf("RequestHuman failed: %v", err)
	}
	if resp.GetFields()["notice"].GetStructValue() == nil {
		t.Error("changed transition has no notice")
	}

	resp, err = call(t, srv.URL, api.SendOperatorMessageProcedure, map[string]any{"session_id": "s1", "text": "Olá"})
	if err != nil {
		t.Fatalf("SendOperatorMessage failed: %v", err)
	}
	if str(resp, "sender") != string(session.SenderOperator) || str(resp, "text") != "Olá" {
		t.Errorf("got message %v, want operator Olá", resp)
	}

	resp, err = call(t, srv.URL, api.SendMessageProcedure, map[string]any{"session_id": "s1", "text": "oi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if str(resp, "kind") != string(kernel.ReplyHumanActive) {
		t.Errorf("got kind %q, want %q", str(resp, "kind"), kernel.ReplyHumanActive)
	}
}

func TestRPC_Errors(t *testing.T) {
	tests := []struct {
		name      string
		procedure string
		fields    map[string]any
		want      connect.Code
	}{
		{"missing session id", api.SendMessageProcedure, map[string]any{"text": "oi"}, connect.CodeInvalidArgument},
		{"empty text", api.SendMessageProcedure, map[string]any{"session_id": "s1"}, connect.CodeInvalidArgument},
		{"text not a string", api.SendMessageProcedure, map[string]any{"session_id": "s1", "text": 42}, connect.CodeInvalidArgument},
		{"text too long", api.SendMessageProcedure, map[string]any{"session_id": "s1", "text": strings.Repeat("a", 2001)}, connect.CodeInvalidArgument},
		{"request human without id", api.RequestHumanProcedure, map[string]any{}, connect.CodeInvalidArgument},
		{"transcript without id", api.GetTranscriptProcedure, map[string]any{}, connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)

			_, err := call(t, srv.URL, tt.procedure, tt.fields)
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("got code %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestRPC_RateLimit(t *testing.T) {
	srv := newTestServer(t, nil, api.WithRateLimit(0.001, 1))
	fields := map[string]any{"session_id": "s1", "text": "oi"}

	if _, err := call(t, srv.URL, api.SendMessageProcedure, fields); err != nil {
		t.Fatalf("first SendMessage failed: %v", err)
	}

	_, err := call(t, srv.URL, api.SendMessageProcedure, fields)
	if got := connect.CodeOf(err); got != connect.CodeResourceExhausted {
		t.Errorf("got code %v, want %v", got, connect.CodeResourceExhausted)
	}
}

func TestRPC_ProtoJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := call(t, srv.URL, api.SendMessageProcedure,
		map[string]any{"session_id": "s1", "text": "oi"},
		connect.WithProtoJSON(),
	)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if str(resp, "kind") != string(kernel.ReplyAssistant) {
		t.Errorf("got kind %q, want %q", str(resp, "kind"), kernel.ReplyAssistant)
	}
}

func TestRPC_PlainJSONPost(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+api.SendMessageProcedure, "application/json",
		strings.NewReader(`{"session_id":"s1","text":"oi"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
}

func TestRPC_UnknownSessionTranscript(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := call(t, srv.URL, api.GetTranscriptProcedure, map[string]any{"session_id": "nobody"})
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if n := len(resp.GetFields()["messages"].GetListValue().GetValues()); n != 0 {
		t.Errorf("got %d messages, want 0", n)
	}
	if str(resp, "state") != string(session.StateAIActive) {
		t.Errorf("got state %q, want %q", str(resp, "state"), session.StateAIActive)
	}
}
