package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"cockpit/internal/logging"
	"cockpit/internal/payload"
	"cockpit/internal/threads"
	"cockpit/internal/transport"
	"cockpit/internal/types"
)

const (
	// listMatchTarget is how many workspace threads a listing tries to
	// collect before stopping pagination.
	listMatchTarget = 20
	// listColdStartPages caps pagination for a workspace never listed
	// before, so an empty workspace does not walk the server's whole
	// thread history.
	listColdStartPages = 5
	listPageSize       = 50

	maxCustomNameLen = 120
)

// StartThread creates a new thread in the workspace and registers it
// locally. parentID, when set, records lineage from the spawning thread.
func (c *Client) StartThread(ctx context.Context, workspaceID, cwd, parentID string) (string, error) {
	if workspaceID == "" && cwd != "" {
		if ws := c.WorkspaceForPath(cwd); ws != nil {
			workspaceID = ws.ID
		}
	}
	params := map[string]any{}
	if workspaceID != "" {
		params["workspaceId"] = workspaceID
	}
	if cwd != "" {
		params["cwd"] = cwd
	}
	result, err := c.call(ctx, "thread/start", params)
	if err != nil {
		return "", err
	}
	threadID := payload.String(result, "threadId", "id")
	if threadID == "" {
		if thread := payload.Map(result, "thread"); thread != nil {
			threadID = payload.String(thread, "id")
		}
	}
	if threadID == "" {
		return "", errors.New("thread/start returned no thread id")
	}
	c.store.EnsureThread(threadID, workspaceID, cwd)
	if parentID != "" {
		c.store.SetParent(threadID, parentID)
	}
	return threadID, nil
}

// ResumeThread reattaches to an existing thread and merges its fetched
// history into local state. With replace set the fetched items displace
// local state instead of merging.
func (c *Client) ResumeThread(ctx context.Context, threadID string, replace bool) error {
	result, err := c.call(ctx, "thread/resume", map[string]any{"threadId": threadID})
	if err != nil {
		return err
	}
	thread := payload.Map(result, "thread")
	if thread == nil {
		thread = result
	}
	c.store.EnsureThread(threadID,
		payload.String(thread, "workspaceId"),
		payload.String(thread, "cwd"))
	var items []*types.ConversationItem
	for _, raw := range payload.MapList(thread, "items", "history") {
		if item := threads.BuildItem(raw); item != nil {
			items = append(items, item)
		}
	}
	c.store.MergeHistory(threadID, items, replace)
	if parent := payload.String(thread, "parentThreadId", "parentId"); parent != "" {
		c.store.SetParent(threadID, parent)
	}
	return nil
}

// ListThreads pages through the server's thread listing, keeping threads
// belonging to the workspace. Pagination stops once listMatchTarget
// matches are collected or the cursor runs out; a workspace with no known
// prior activity additionally stops after listColdStartPages matchless
// pages, so an empty workspace does not walk the server's whole history.
func (c *Client) ListThreads(ctx context.Context, workspaceID string) ([]*types.Thread, error) {
	coldStart := c.coldStart(workspaceID)

	cursor := ""
	matches := 0
	pages := 0
	for {
		params := map[string]any{"pageSize": listPageSize}
		if workspaceID != "" {
			params["workspaceId"] = workspaceID
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		result, err := c.call(ctx, "thread/list", params)
		if err != nil {
			return nil, err
		}
		pages++
		for _, raw := range payload.MapList(result, "data", "threads", "items") {
			threadID := payload.String(raw, "id", "threadId")
			if threadID == "" {
				continue
			}
			cwd := payload.String(raw, "cwd")
			wsID := payload.String(raw, "workspaceId")
			if wsID == "" {
				// The server omitted the workspace; attribute the thread by
				// its working directory against the configured roots.
				if ws := c.WorkspaceForPath(cwd); ws != nil {
					wsID = ws.ID
				}
			}
			c.store.EnsureThread(threadID, wsID, cwd)
			if preview := payload.String(raw, "preview", "title"); preview != "" {
				c.store.SetPreview(threadID, preview)
			}
			if workspaceID != "" && wsID != workspaceID {
				continue
			}
			matches++
		}
		cursor = payload.String(result, "nextCursor", "cursor")
		if cursor == "" || matches >= listMatchTarget {
			break
		}
		if coldStart && matches == 0 && pages >= listColdStartPages {
			c.logger.Info("thread_list_cold_start_cutoff",
				logging.F("workspace", workspaceID),
				logging.F("pages", pages))
			break
		}
	}
	c.mu.Lock()
	c.listedOnce[workspaceID] = true
	c.mu.Unlock()
	return c.store.Threads(workspaceID), nil
}

// coldStart reports whether nothing is known about the workspace yet: it
// has not been listed this session and no persisted activity overlay
// exists for it.
func (c *Client) coldStart(workspaceID string) bool {
	c.mu.Lock()
	listed := c.listedOnce[workspaceID]
	c.mu.Unlock()
	if listed {
		return false
	}
	if c.repo == nil || workspaceID == "" {
		return true
	}
	metas, err := c.repo.LoadThreadMeta(workspaceID)
	if err != nil {
		return true
	}
	return len(metas) == 0
}

// ArchiveThread removes the thread remotely and locally, including its
// persisted overlay.
func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	if _, err := c.call(ctx, "thread/archive", map[string]any{"threadId": threadID}); err != nil {
		return err
	}
	workspaceID := ""
	if t := c.store.Thread(threadID); t != nil {
		workspaceID = t.WorkspaceID
	}
	c.store.Remove(threadID)
	if c.repo != nil {
		if err := c.repo.DeleteThreadMeta(workspaceID, threadID); err != nil {
			c.logger.Warn("overlay_delete_failed", logging.F("thread", threadID), logging.F("error", err))
		}
	}
	return nil
}

// SendMessage queues a message for the thread. Delivery order is FIFO and
// at most one turn per thread is in flight; the queue drains as the thread
// goes idle.
func (c *Client) SendMessage(threadID, text string, images []types.ImageAttachment, accessMode string) string {
	return c.store.QueueMessage(threadID, text, images, accessMode)
}

// sendTurn is the flow controller's dispatch function: it performs the
// blocking turn/start call for one dequeued message.
func (c *Client) sendTurn(threadID string, msg *types.QueuedMessage) error {
	input := []map[string]any{{"type": "text", "text": msg.Text}}
	for _, img := range msg.Images {
		input = append(input, map[string]any{
			"type":     "image",
			"mimeType": img.MimeType,
			"data":     base64.StdEncoding.EncodeToString(img.Data),
		})
	}
	params := map[string]any{
		"threadId": threadID,
		"input":    input,
	}
	if msg.AccessMode != "" {
		params["accessMode"] = msg.AccessMode
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, err := c.sup.Call(ctx, "turn/start", params)
	return err
}

// Interrupt stops the thread's active turn. When the turn id is not yet
// known the interrupt latches and fires as soon as turn/started arrives.
func (c *Client) Interrupt(threadID string) error {
	turnID, dispatchNow := c.store.MarkPendingInterrupt(threadID)
	if !dispatchNow {
		return nil
	}
	return c.sendInterrupt(threadID, turnID)
}

func (c *Client) sendInterrupt(threadID, turnID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, err := c.sup.Call(ctx, "turn/interrupt", map[string]any{
		"threadId": threadID,
		"turnId":   turnID,
	})
	return err
}

// StartReview asks the agent to review the thread's work. A remote
// rejection becomes a visible error item instead of a returned error, so
// the failure lands in the conversation where the user asked for it.
func (c *Client) StartReview(ctx context.Context, threadID, prompt string) error {
	params := map[string]any{"threadId": threadID}
	if prompt != "" {
		params["prompt"] = prompt
	}
	_, err := c.call(ctx, "review/start", params)
	var remote *transport.RemoteError
	if errors.As(err, &remote) {
		c.store.AppendError(threadID, remote.Message)
		return nil
	}
	return err
}

// RenameThread applies a custom name overlay. The name is sanitized and
// persisted locally; the server never sees it.
func (c *Client) RenameThread(threadID, name string) error {
	name = sanitizeName(name)
	c.store.SetCustomName(threadID, name)
	return c.persistMeta(threadID)
}

// SetPinned pins or unpins a thread. Exceeding the per-workspace soft
// limit logs a warning but is not refused.
func (c *Client) SetPinned(threadID string, pinned bool) error {
	var at *time.Time
	if pinned {
		now := time.Now().UTC()
		at = &now
	}
	count := c.store.SetPinned(threadID, at)
	if pinned && count > threads.PinSoftLimit {
		c.logger.Warn("pin_soft_limit_exceeded",
			logging.F("thread", threadID),
			logging.F("pinned", count))
	}
	return c.persistMeta(threadID)
}

func (c *Client) persistMeta(threadID string) error {
	if c.repo == nil {
		return nil
	}
	t := c.store.Thread(threadID)
	if t == nil {
		return nil
	}
	updated := t.UpdatedAt
	return c.repo.SaveThreadMeta(&types.ThreadMeta{
		WorkspaceID:    t.WorkspaceID,
		ThreadID:       t.ID,
		CustomName:     t.CustomName,
		PinnedAt:       t.PinnedAt,
		LastActivityAt: &updated,
	})
}

// AddBookmark marks an item in a thread.
func (c *Client) AddBookmark(threadID, itemID, note string) error {
	if c.repo == nil {
		return nil
	}
	workspaceID := ""
	if t := c.store.Thread(threadID); t != nil {
		workspaceID = t.WorkspaceID
	}
	return c.repo.SaveBookmark(&types.Bookmark{
		WorkspaceID: workspaceID,
		ThreadID:    threadID,
		ItemID:      itemID,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	})
}

// Bookmarks lists the workspace's bookmarks.
func (c *Client) Bookmarks(workspaceID string) ([]*types.Bookmark, error) {
	if c.repo == nil {
		return nil, nil
	}
	return c.repo.LoadBookmarks(workspaceID)
}

// RemoveBookmark drops one bookmark.
func (c *Client) RemoveBookmark(workspaceID, threadID, itemID string) error {
	if c.repo == nil {
		return nil
	}
	return c.repo.DeleteBookmark(workspaceID, threadID, itemID)
}

// RateLimits returns the last pushed snapshot for the workspace, falling
// back to the active workspace when none is named.
func (c *Client) RateLimits(workspaceID string) *types.RateLimitSnapshot {
	if workspaceID == "" {
		workspaceID = c.ActiveWorkspace()
	}
	return c.store.RateLimits(workspaceID)
}

// FetchRateLimits reads the current rate limits from the server and folds
// the snapshot into the store, as if it had been pushed.
func (c *Client) FetchRateLimits(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		workspaceID = c.ActiveWorkspace()
	}
	result, err := c.call(ctx, "account/rateLimits/read", map[string]any{"workspaceId": workspaceID})
	if err != nil {
		return err
	}
	if payload.String(result, "workspaceId") == "" {
		result["workspaceId"] = workspaceID
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	c.dispatch("account/rateLimits/updated", raw, nil)
	return nil
}

// CollaborationModes fetches the access modes the server supports for
// turns.
func (c *Client) CollaborationModes(ctx context.Context) ([]string, error) {
	result, err := c.call(ctx, "collaborationMode/list", nil)
	if err != nil {
		return nil, err
	}
	modes := payload.StringList(result, "modes")
	if modes == nil {
		for _, raw := range payload.MapList(result, "modes", "items") {
			if mode := payload.String(raw, "id", "mode"); mode != "" {
				modes = append(modes, mode)
			}
		}
	}
	return modes, nil
}

// call issues one request and decodes the result into a parameter map.
func (c *Client) call(ctx context.Context, method string, params any) (map[string]any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
		defer cancel()
	}
	raw, err := c.sup.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return payload.Decode(raw), nil
}

// sanitizeName strips control characters and bounds the length of a
// user-supplied thread name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxCustomNameLen {
		cut := maxCustomNameLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimSpace(out[:cut])
	}
	return out
}
