package threads

import (
	"strings"
	"time"
	"unicode/utf8"

	"cockpit/internal/payload"
	"cockpit/internal/types"
)

const (
	// maxThreadItems caps each thread's item list; oldest items are
	// dropped from the front first.
	maxThreadItems = 500
	// recentItemWindow is the trailing window inside which command and
	// file-change output is kept complete.
	recentItemWindow = 40
	// maxFieldChars is the character ceiling applied to streamed text
	// fields.
	maxFieldChars = 20000
)

func (s *Store) applyAgentDeltaLocked(t *types.Thread, itemID, delta string) {
	item := findItem(t, itemID)
	if item == nil {
		item = &types.ConversationItem{
			ID:   itemID,
			Kind: types.ItemKindMessage,
			Message: &types.MessageItem{
				Role: types.MessageRoleAssistant,
				Text: delta,
			},
		}
		t.Items = append(t.Items, item)
		s.enforceBoundsLocked(t)
		return
	}
	if item.Message == nil {
		item.Kind = types.ItemKindMessage
		item.Message = &types.MessageItem{Role: types.MessageRoleAssistant}
	}
	item.Message.Text += delta
}

func (s *Store) applyReasoningDeltaLocked(t *types.Thread, itemID, delta string, summary bool) {
	item := findItem(t, itemID)
	if item == nil {
		item = &types.ConversationItem{
			ID:        itemID,
			Kind:      types.ItemKindReasoning,
			Reasoning: &types.ReasoningItem{},
		}
		t.Items = append(t.Items, item)
		s.enforceBoundsLocked(t)
	}
	if item.Reasoning == nil {
		item.Kind = types.ItemKindReasoning
		item.Reasoning = &types.ReasoningItem{}
	}
	if summary {
		item.Reasoning.Summary += delta
	} else {
		item.Reasoning.Content += delta
	}
}

func (s *Store) applyToolOutputDeltaLocked(t *types.Thread, itemID, delta string) {
	item := findItem(t, itemID)
	if item == nil {
		item = &types.ConversationItem{
			ID:   itemID,
			Kind: types.ItemKindTool,
			Tool: &types.ToolItem{},
		}
		t.Items = append(t.Items, item)
		s.enforceBoundsLocked(t)
	}
	if item.Tool == nil {
		item.Kind = types.ItemKindTool
		item.Tool = &types.ToolItem{}
	}
	item.Tool.Output += delta
}

func (s *Store) applyItemUpdateLocked(t *types.Thread, raw map[string]any, started bool) {
	itemType := normalizedItemType(raw)
	switch itemType {
	case "enteredreviewmode":
		t.IsReviewing = true
		s.upsertItemLocked(t, buildReviewItem(raw, types.ReviewStateStarted))
		return
	case "exitedreviewmode":
		t.IsReviewing = false
		t.IsProcessing = false
		s.upsertItemLocked(t, buildReviewItem(raw, types.ReviewStateCompleted))
		return
	}
	item := BuildItem(raw)
	if item == nil {
		return
	}
	if item.Kind == types.ItemKindMessage && item.Message.Role == types.MessageRoleAssistant && !started {
		s.completeAgentMessageLocked(t, item)
		return
	}
	if item.Kind == types.ItemKindMessage && item.Message.Role == types.MessageRoleUser && t.Preview == "" {
		t.Preview = previewText(item.Message.Text)
	}
	s.upsertItemLocked(t, item)
}

// completeAgentMessageLocked finalizes an assistant message. The completion
// text wins over any accumulated delta text unless it is empty, in which
// case the accumulated text is kept.
func (s *Store) completeAgentMessageLocked(t *types.Thread, item *types.ConversationItem) {
	existing := findItem(t, item.ID)
	finalText := item.Message.Text
	if existing != nil {
		if finalText == "" && existing.Message != nil {
			finalText = existing.Message.Text
		}
		existing.Kind = types.ItemKindMessage
		existing.Message = &types.MessageItem{Role: types.MessageRoleAssistant, Text: finalText}
	} else {
		item.Message.Text = finalText
		t.Items = append(t.Items, item)
	}
	s.lastAgentMessage[t.ID] = finalText
	t.IsProcessing = false
	t.UpdatedAt = time.Now().UTC()
	if t.ID != s.activeThreadID {
		t.HasUnread = true
	}
	s.dedupeReviewEchoLocked(t)
	s.enforceBoundsLocked(t)
}

func (s *Store) upsertItemLocked(t *types.Thread, item *types.ConversationItem) {
	if item == nil {
		return
	}
	existing := findItem(t, item.ID)
	if existing == nil {
		t.Items = append(t.Items, item)
		s.enforceBoundsLocked(t)
		return
	}
	// Items keep their first-seen position; later payloads replace the
	// content in place.
	*existing = *item
}

// dedupeReviewEchoLocked drops an assistant message that immediately
// follows a completed review item with identical trimmed text. The server
// emits both; the message copy is redundant.
func (s *Store) dedupeReviewEchoLocked(t *types.Thread) {
	for i := 1; i < len(t.Items); i++ {
		prev := t.Items[i-1]
		curr := t.Items[i]
		if prev.Kind != types.ItemKindReview || prev.Review == nil || prev.Review.State != types.ReviewStateCompleted {
			continue
		}
		if curr.Kind != types.ItemKindMessage || curr.Message == nil || curr.Message.Role != types.MessageRoleAssistant {
			continue
		}
		if strings.TrimSpace(prev.Review.Text) != strings.TrimSpace(curr.Message.Text) {
			continue
		}
		if strings.TrimSpace(curr.Message.Text) == "" {
			continue
		}
		t.Items = append(t.Items[:i], t.Items[i+1:]...)
		i--
	}
}

func (s *Store) enforceBoundsLocked(t *types.Thread) {
	if len(t.Items) > maxThreadItems {
		t.Items = append([]*types.ConversationItem{}, t.Items[len(t.Items)-maxThreadItems:]...)
	}
	windowStart := len(t.Items) - recentItemWindow
	for i, item := range t.Items {
		truncateUniversal(item)
		if i < windowStart {
			truncateToolFields(item)
		}
	}
}

// truncateUniversal applies the field ceiling that holds everywhere,
// regardless of item age. Command and file-change output is exempt; it is
// only cut once the item leaves the recent window.
func truncateUniversal(item *types.ConversationItem) {
	switch item.Kind {
	case types.ItemKindMessage:
		if item.Message != nil {
			item.Message.Text = truncateText(item.Message.Text)
		}
	case types.ItemKindReasoning:
		if item.Reasoning != nil {
			item.Reasoning.Summary = truncateText(item.Reasoning.Summary)
			item.Reasoning.Content = truncateText(item.Reasoning.Content)
		}
	case types.ItemKindDiff:
		if item.Diff != nil {
			item.Diff.Diff = truncateText(item.Diff.Diff)
		}
	}
}

func truncateToolFields(item *types.ConversationItem) {
	if item.Kind != types.ItemKindTool || item.Tool == nil {
		return
	}
	item.Tool.Output = truncateText(item.Tool.Output)
	for i := range item.Tool.Changes {
		item.Tool.Changes[i].Diff = truncateText(item.Tool.Changes[i].Diff)
	}
}

func truncateText(text string) string {
	if len(text) <= maxFieldChars {
		return text
	}
	cut := maxFieldChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func findItem(t *types.Thread, itemID string) *types.ConversationItem {
	for _, item := range t.Items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// BuildItem constructs a typed ConversationItem from a raw item payload.
// Unknown item types yield nil.
func BuildItem(raw map[string]any) *types.ConversationItem {
	id := strings.TrimSpace(payload.String(raw, "id", "itemId"))
	if id == "" {
		return nil
	}
	switch normalizedItemType(raw) {
	case "agentmessage":
		return &types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindMessage,
			Message: &types.MessageItem{
				Role: types.MessageRoleAssistant,
				Text: payload.String(raw, "text", "content"),
			},
		}
	case "usermessage":
		return &types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindMessage,
			Message: &types.MessageItem{
				Role: types.MessageRoleUser,
				Text: payload.String(raw, "text", "content"),
			},
		}
	case "reasoning":
		return &types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindReasoning,
			Reasoning: &types.ReasoningItem{
				Summary: payload.String(raw, "summary"),
				Content: payload.String(raw, "content", "text"),
			},
		}
	case "diff":
		return &types.ConversationItem{
			ID:   id,
			Kind: types.ItemKindDiff,
			Diff: &types.DiffItem{
				Title:  payload.String(raw, "title"),
				Diff:   payload.String(raw, "diff", "patch"),
				Status: payload.String(raw, "status"),
			},
		}
	case "review":
		state := types.ReviewStateStarted
		if strings.EqualFold(payload.String(raw, "state"), string(types.ReviewStateCompleted)) {
			state = types.ReviewStateCompleted
		}
		item := buildReviewItem(raw, state)
		item.ID = id
		return item
	case "commandexecution":
		return buildToolItem(raw, id, "commandExecution", payload.String(raw, "command"))
	case "filechange":
		return buildToolItem(raw, id, "fileChange", payload.String(raw, "title", "path"))
	case "mcptoolcall":
		title := payload.String(raw, "tool", "title")
		if server := payload.String(raw, "server"); server != "" && title != "" {
			title = server + "." + title
		}
		return buildToolItem(raw, id, "mcpToolCall", title)
	case "websearch":
		return buildToolItem(raw, id, "webSearch", payload.String(raw, "query", "title"))
	default:
		return nil
	}
}

func buildReviewItem(raw map[string]any, state types.ReviewState) *types.ConversationItem {
	return &types.ConversationItem{
		ID:   strings.TrimSpace(payload.String(raw, "id", "itemId")),
		Kind: types.ItemKindReview,
		Review: &types.ReviewItem{
			State: state,
			Text:  payload.String(raw, "text", "review"),
		},
	}
}

func buildToolItem(raw map[string]any, id, toolType, title string) *types.ConversationItem {
	tool := &types.ToolItem{
		ToolType: toolType,
		Title:    title,
		Detail:   payload.String(raw, "detail", "cwd"),
		Status:   payload.String(raw, "status"),
		Output:   payload.String(raw, "output", "aggregatedOutput"),
	}
	if duration, ok := payload.Int(raw, "durationMs"); ok {
		tool.DurationMs = duration
	}
	for _, change := range payload.MapList(raw, "changes", "fileChanges") {
		path := payload.String(change, "path")
		if path == "" {
			continue
		}
		tool.Changes = append(tool.Changes, types.FileChange{
			Path: path,
			Kind: payload.String(change, "kind", "type"),
			Diff: payload.String(change, "diff"),
		})
	}
	return &types.ConversationItem{ID: id, Kind: types.ItemKindTool, Tool: tool}
}

func normalizedItemType(raw map[string]any) string {
	itemType := payload.String(raw, "type", "itemType")
	itemType = strings.ReplaceAll(itemType, "_", "")
	return strings.ToLower(strings.TrimSpace(itemType))
}

// previewText derives a one-line thread preview from message text, with
// control characters stripped.
func previewText(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		text = text[:idx]
	}
	var b strings.Builder
	for _, r := range text {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	const maxPreview = 80
	if len(out) > maxPreview {
		cut := maxPreview
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}
