package router

import (
	"encoding/json"
	"testing"

	"cockpit/internal/logging"
)

func classify(t *testing.T, r *Router, method, params string) Event {
	t.Helper()
	return r.Classify(method, json.RawMessage(params), nil)
}

func TestClassifyAgentDelta(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "item/agentMessage/delta", `{"threadId":"t-1","itemId":"i-1","delta":"hel"}`)
	delta, ok := ev.(AgentDelta)
	if !ok {
		t.Fatalf("expected AgentDelta, got %T", ev)
	}
	if delta.ThreadID != "t-1" || delta.ItemID != "i-1" || delta.Delta != "hel" {
		t.Fatalf("unexpected event: %+v", delta)
	}
}

func TestClassifyAgentDeltaSnakeCase(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "item/agentMessage/delta", `{"thread_id":"t-1","item_id":"i-1","delta":"lo"}`)
	if _, ok := ev.(AgentDelta); !ok {
		t.Fatalf("snake_case params not recognized: %T", ev)
	}
}

func TestClassifyAgentDeltaMissingFieldDropped(t *testing.T) {
	r := New(nil, nil)
	if ev := classify(t, r, "item/agentMessage/delta", `{"threadId":"t-1","delta":"x"}`); ev != nil {
		t.Fatalf("expected nil for missing itemId, got %+v", ev)
	}
}

func TestClassifyItemStartedNestsItem(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "item/started", `{"threadId":"t-1","item":{"id":"i-1","type":"agentMessage","text":""}}`)
	update, ok := ev.(ItemUpdate)
	if !ok {
		t.Fatalf("expected ItemUpdate, got %T", ev)
	}
	if !update.Started || update.ThreadID != "t-1" || update.Item["id"] != "i-1" {
		t.Fatalf("unexpected event: %+v", update)
	}
}

func TestClassifyTurnLifecycle(t *testing.T) {
	r := New(nil, nil)
	started, ok := classify(t, r, "turn/started", `{"turn":{"id":"turn-1","threadId":"t-1"}}`).(TurnStarted)
	if !ok || started.ThreadID != "t-1" || started.TurnID != "turn-1" {
		t.Fatalf("unexpected turn/started: %+v", started)
	}
	completed, ok := classify(t, r, "turn/completed", `{"threadId":"t-1","turnId":"turn-1"}`).(TurnCompleted)
	if !ok || completed.ThreadID != "t-1" {
		t.Fatalf("unexpected turn/completed: %+v", completed)
	}
}

func TestClassifyReasoningDeltaChannels(t *testing.T) {
	r := New(nil, nil)
	summary := classify(t, r, "item/reasoning/summaryTextDelta", `{"threadId":"t","itemId":"i","delta":"s"}`).(ReasoningDelta)
	if !summary.Summary {
		t.Fatalf("expected summary channel")
	}
	content := classify(t, r, "item/reasoning/textDelta", `{"threadId":"t","itemId":"i","delta":"c"}`).(ReasoningDelta)
	if content.Summary {
		t.Fatalf("expected content channel")
	}
}

func TestClassifyApprovalUsesWireID(t *testing.T) {
	r := New(nil, nil)
	wireID := int64(42)
	ev := r.Classify("execCommandApproval/requestApproval", json.RawMessage(`{"command":"rm -rf build"}`), &wireID)
	req, ok := ev.(ApprovalRequested)
	if !ok {
		t.Fatalf("expected ApprovalRequested, got %T", ev)
	}
	if req.RequestID != "42" {
		t.Fatalf("expected wire id fallback, got %q", req.RequestID)
	}
}

func TestClassifyApprovalPrefersParamsID(t *testing.T) {
	r := New(nil, nil)
	wireID := int64(42)
	ev := r.Classify("applyPatchApproval/requestApproval", json.RawMessage(`{"requestId":7}`), &wireID)
	req := ev.(ApprovalRequested)
	if req.RequestID != "7" {
		t.Fatalf("expected params id, got %q", req.RequestID)
	}
}

func TestClassifyErrorRetryFlag(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "error", `{"threadId":"t-1","message":"rate limited","willRetry":true}`)
	turnErr, ok := ev.(TurnError)
	if !ok || !turnErr.WillRetry || turnErr.Message != "rate limited" {
		t.Fatalf("unexpected error event: %+v", ev)
	}
}

func TestUnknownMethodGoesToRing(t *testing.T) {
	ring := logging.NewRing(10)
	r := New(nil, ring)
	if ev := classify(t, r, "thread/somethingNew", `{}`); ev != nil {
		t.Fatalf("expected nil for unknown method, got %+v", ev)
	}
	entries := ring.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ring entry, got %d", len(entries))
	}
	if entries[0].Fields[0].Value != "thread/somethingNew" {
		t.Fatalf("unexpected ring entry: %+v", entries[0])
	}
}

func TestClassifyTokenUsage(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "thread/tokenUsage/updated", `{"threadId":"t-1","tokenUsage":{"inputTokens":100,"outputTokens":30,"totalTokens":130}}`)
	usage, ok := ev.(TokenUsageUpdated)
	if !ok {
		t.Fatalf("expected TokenUsageUpdated, got %T", ev)
	}
	if usage.Usage.TotalTokens != 130 || usage.Usage.InputTokens != 100 {
		t.Fatalf("unexpected usage: %+v", usage.Usage)
	}
}

func TestClassifyRateLimits(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "account/rateLimits/updated", `{"workspaceId":"ws-1","rateLimits":{"primary":{"usedPercent":40.5,"windowMinutes":300}}}`)
	limits, ok := ev.(RateLimitsUpdated)
	if !ok {
		t.Fatalf("expected RateLimitsUpdated, got %T", ev)
	}
	if limits.WorkspaceID != "ws-1" || limits.Snapshot.Primary == nil || limits.Snapshot.Primary.UsedPercent != 40.5 {
		t.Fatalf("unexpected snapshot: %+v", limits.Snapshot)
	}
}

func TestClassifyPlanUpdated(t *testing.T) {
	r := New(nil, nil)
	ev := classify(t, r, "turn/plan/updated", `{"threadId":"t-1","turnId":"turn-1","plan":[{"step":"read files","status":"completed"},{"step":"edit","status":"inProgress"}]}`)
	plan, ok := ev.(PlanUpdated)
	if !ok {
		t.Fatalf("expected PlanUpdated, got %T", ev)
	}
	if len(plan.Steps) != 2 || plan.Steps[1].Status != "inProgress" {
		t.Fatalf("unexpected plan: %+v", plan.Steps)
	}
}
