package types

type ItemKind string

const (
	ItemKindMessage   ItemKind = "message"
	ItemKindReasoning ItemKind = "reasoning"
	ItemKindDiff      ItemKind = "diff"
	ItemKindReview    ItemKind = "review"
	ItemKindTool      ItemKind = "tool"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type ReviewState string

const (
	ReviewStateStarted   ReviewState = "started"
	ReviewStateCompleted ReviewState = "completed"
)

// ConversationItem is a tagged union keyed by a server-assigned id unique
// within its thread. Exactly one of the variant pointers is set, matching
// Kind.
type ConversationItem struct {
	ID        string         `json:"id"`
	Kind      ItemKind       `json:"kind"`
	Message   *MessageItem   `json:"message,omitempty"`
	Reasoning *ReasoningItem `json:"reasoning,omitempty"`
	Diff      *DiffItem      `json:"diff,omitempty"`
	Review    *ReviewItem    `json:"review,omitempty"`
	Tool      *ToolItem      `json:"tool,omitempty"`
}

type MessageItem struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// ReasoningItem carries two independently streamed text channels.
type ReasoningItem struct {
	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`
}

type DiffItem struct {
	Title  string `json:"title,omitempty"`
	Diff   string `json:"diff,omitempty"`
	Status string `json:"status,omitempty"`
}

type ReviewItem struct {
	State ReviewState `json:"state"`
	Text  string      `json:"text,omitempty"`
}

type ToolItem struct {
	ToolType   string       `json:"tool_type"`
	Title      string       `json:"title,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	Status     string       `json:"status,omitempty"`
	Output     string       `json:"output,omitempty"`
	DurationMs int64        `json:"duration_ms,omitempty"`
	Changes    []FileChange `json:"changes,omitempty"`
}

type FileChange struct {
	Path string `json:"path"`
	Kind string `json:"kind,omitempty"`
	Diff string `json:"diff,omitempty"`
}

func (i *ConversationItem) Clone() *ConversationItem {
	if i == nil {
		return nil
	}
	out := *i
	if i.Message != nil {
		msg := *i.Message
		out.Message = &msg
	}
	if i.Reasoning != nil {
		reasoning := *i.Reasoning
		out.Reasoning = &reasoning
	}
	if i.Diff != nil {
		diff := *i.Diff
		out.Diff = &diff
	}
	if i.Review != nil {
		review := *i.Review
		out.Review = &review
	}
	if i.Tool != nil {
		tool := *i.Tool
		if i.Tool.Changes != nil {
			tool.Changes = append([]FileChange{}, i.Tool.Changes...)
		}
		out.Tool = &tool
	}
	return &out
}

// ContentLength measures the streamed text payload of an item. Used by the
// resume merge to pick the variant with strictly more content.
func (i *ConversationItem) ContentLength() int {
	if i == nil {
		return 0
	}
	switch i.Kind {
	case ItemKindMessage:
		if i.Message != nil {
			return len(i.Message.Text)
		}
	case ItemKindReasoning:
		if i.Reasoning != nil {
			return len(i.Reasoning.Summary) + len(i.Reasoning.Content)
		}
	case ItemKindDiff:
		if i.Diff != nil {
			return len(i.Diff.Diff)
		}
	case ItemKindTool:
		if i.Tool != nil {
			return len(i.Tool.Output)
		}
	case ItemKindReview:
		if i.Review != nil {
			return len(i.Review.Text)
		}
	}
	return 0
}
