// Package router classifies raw push notifications into typed domain
// events. Unknown server methods are recorded in a bounded debug ring and
// otherwise ignored so a newer server can never crash the client.
package router

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cockpit/internal/logging"
	"cockpit/internal/payload"
	"cockpit/internal/types"
)

type Router struct {
	logger logging.Logger
	ring   *logging.Ring
}

func New(logger logging.Logger, ring *logging.Ring) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	if ring == nil {
		ring = logging.NewRing(0)
	}
	return &Router{logger: logger, ring: ring}
}

// Ring exposes the unrecognized-method debug ring.
func (r *Router) Ring() *logging.Ring {
	return r.ring
}

// Classify turns one notification into at most one typed event. wireID is
// the frame id for server-initiated requests, nil for plain notifications.
func (r *Router) Classify(method string, rawParams json.RawMessage, wireID *int64) Event {
	params := payload.Decode(rawParams)
	if strings.Contains(method, "requestApproval") || strings.Contains(method, "request_approval") {
		return r.classifyApproval(method, params, wireID)
	}
	switch method {
	case "codex/connected":
		return WorkspaceConnected{WorkspaceID: payload.String(params, "workspaceId")}
	case "item/started", "item/completed":
		item := payload.Map(params, "item")
		if item == nil {
			item = params
		}
		threadID := payload.String(params, "threadId")
		if threadID == "" {
			threadID = payload.String(item, "threadId")
		}
		if threadID == "" {
			return nil
		}
		return ItemUpdate{ThreadID: threadID, Item: item, Started: method == "item/started"}
	case "item/agentMessage/delta":
		threadID := payload.String(params, "threadId")
		itemID := payload.String(params, "itemId")
		delta := payload.String(params, "delta")
		if threadID == "" || itemID == "" || delta == "" {
			return nil
		}
		return AgentDelta{ThreadID: threadID, ItemID: itemID, Delta: delta}
	case "item/reasoning/summaryTextDelta", "item/reasoning/textDelta":
		threadID := payload.String(params, "threadId")
		itemID := payload.String(params, "itemId")
		delta := payload.String(params, "delta")
		if threadID == "" || itemID == "" || delta == "" {
			return nil
		}
		return ReasoningDelta{
			ThreadID: threadID,
			ItemID:   itemID,
			Delta:    delta,
			Summary:  method == "item/reasoning/summaryTextDelta",
		}
	case "item/commandExecution/outputDelta", "item/fileChange/outputDelta":
		threadID := payload.String(params, "threadId")
		itemID := payload.String(params, "itemId")
		delta := payload.String(params, "delta", "chunk")
		if threadID == "" || itemID == "" || delta == "" {
			return nil
		}
		return ToolOutputDelta{ThreadID: threadID, ItemID: itemID, Delta: delta}
	case "turn/started":
		threadID, turnID := turnIdentity(params)
		if threadID == "" {
			return nil
		}
		return TurnStarted{ThreadID: threadID, TurnID: turnID}
	case "turn/completed":
		threadID, turnID := turnIdentity(params)
		if threadID == "" {
			return nil
		}
		return TurnCompleted{ThreadID: threadID, TurnID: turnID}
	case "turn/plan/updated":
		threadID, turnID := turnIdentity(params)
		if threadID == "" {
			return nil
		}
		return PlanUpdated{
			ThreadID:    threadID,
			TurnID:      turnID,
			Explanation: payload.String(params, "explanation"),
			Steps:       planSteps(params),
		}
	case "thread/tokenUsage/updated":
		threadID := payload.String(params, "threadId")
		if threadID == "" {
			return nil
		}
		return TokenUsageUpdated{ThreadID: threadID, Usage: tokenUsage(params)}
	case "account/rateLimits/updated":
		return RateLimitsUpdated{
			WorkspaceID: payload.String(params, "workspaceId"),
			Snapshot:    rateLimits(params),
		}
	case "error":
		return TurnError{
			ThreadID:  payload.String(params, "threadId"),
			Message:   payload.String(params, "message", "error"),
			WillRetry: payload.Bool(params, "willRetry"),
		}
	}
	r.ring.Add("unrecognized_notification", logging.F("method", method), logging.F("params_bytes", len(rawParams)))
	if r.logger.Enabled(logging.Debug) {
		r.logger.Debug("unrecognized_notification", logging.F("method", method))
	}
	return nil
}

func (r *Router) classifyApproval(method string, params map[string]any, wireID *int64) Event {
	requestID := approvalRequestID(params, wireID)
	if requestID == "" {
		return nil
	}
	return ApprovalRequested{
		WorkspaceID: payload.String(params, "workspaceId"),
		RequestID:   requestID,
		Method:      method,
		Params:      params,
	}
}

func approvalRequestID(params map[string]any, wireID *int64) string {
	for _, key := range []string{"requestId", "approvalRequestId", "id"} {
		if id, ok := payload.Int(params, key); ok && id >= 0 {
			return strconv.FormatInt(id, 10)
		}
		if text := strings.TrimSpace(payload.String(params, key)); text != "" {
			return text
		}
	}
	if wireID != nil {
		return strconv.FormatInt(*wireID, 10)
	}
	return ""
}

func turnIdentity(params map[string]any) (threadID, turnID string) {
	threadID = payload.String(params, "threadId")
	turnID = payload.String(params, "turnId")
	if turn := payload.Map(params, "turn"); turn != nil {
		if turnID == "" {
			turnID = payload.String(turn, "id")
		}
		if threadID == "" {
			threadID = payload.String(turn, "threadId")
		}
	}
	return threadID, turnID
}

func planSteps(params map[string]any) []types.PlanStep {
	raw := payload.MapList(params, "plan", "steps")
	if raw == nil {
		return nil
	}
	out := make([]types.PlanStep, 0, len(raw))
	for _, entry := range raw {
		step := payload.String(entry, "step", "text")
		if step == "" {
			continue
		}
		out = append(out, types.PlanStep{Step: step, Status: payload.String(entry, "status")})
	}
	return out
}

func tokenUsage(params map[string]any) types.ThreadTokenUsage {
	usage := payload.Map(params, "tokenUsage", "usage")
	if usage == nil {
		usage = params
	}
	out := types.ThreadTokenUsage{}
	if v, ok := payload.Int(usage, "inputTokens"); ok {
		out.InputTokens = v
	}
	if v, ok := payload.Int(usage, "cachedInputTokens"); ok {
		out.CachedInputTokens = v
	}
	if v, ok := payload.Int(usage, "outputTokens"); ok {
		out.OutputTokens = v
	}
	if v, ok := payload.Int(usage, "totalTokens"); ok {
		out.TotalTokens = v
	}
	if v, ok := payload.Int(usage, "contextWindow"); ok {
		out.ContextWindow = v
	}
	return out
}

func rateLimits(params map[string]any) types.RateLimitSnapshot {
	snapshot := payload.Map(params, "rateLimits", "snapshot")
	if snapshot == nil {
		snapshot = params
	}
	out := types.RateLimitSnapshot{UpdatedAt: time.Now().UTC()}
	out.Primary = rateLimitWindow(payload.Map(snapshot, "primary"))
	out.Secondary = rateLimitWindow(payload.Map(snapshot, "secondary"))
	return out
}

func rateLimitWindow(raw map[string]any) *types.RateLimitWindow {
	if raw == nil {
		return nil
	}
	out := &types.RateLimitWindow{}
	if v, ok := payload.Float(raw, "usedPercent"); ok {
		out.UsedPercent = v
	}
	if v, ok := payload.Int(raw, "windowMinutes"); ok {
		out.WindowMinutes = v
	}
	if v, ok := payload.Int(raw, "resetsInSeconds"); ok {
		resetsAt := time.Now().UTC().Add(time.Duration(v) * time.Second)
		out.ResetsAt = &resetsAt
	}
	return out
}
