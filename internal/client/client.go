// Package client assembles the synchronization core: the supervised
// connection, the notification router, the thread store, the approval
// gatekeeper and the overlay persistence, exposed as one facade.
package client

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"cockpit/internal/approvals"
	"cockpit/internal/config"
	"cockpit/internal/logging"
	"cockpit/internal/router"
	"cockpit/internal/store"
	"cockpit/internal/threads"
	"cockpit/internal/transport"
	"cockpit/internal/types"
	"cockpit/internal/workspacepaths"
)

const callTimeout = 30 * time.Second

type Options struct {
	Config *config.Config
	Logger logging.Logger
	// Repo persists overlays; nil disables persistence.
	Repo store.Repository
	// Token authenticates the connection.
	Token string
	// Dialer overrides the network dial; used in tests.
	Dialer func(ctx context.Context) (net.Conn, error)

	// OnConnState observes connection state transitions.
	OnConnState func(state transport.ConnState)
	// OnApprovalPending observes approval requests needing a decision.
	OnApprovalPending func(req *types.ApprovalRequest)
	// OnEvent observes every routed event after the store applied it.
	OnEvent func(ev router.Event)
}

type Client struct {
	logger     logging.Logger
	cfg        *config.Config
	repo       store.Repository
	ring       *logging.Ring
	router     *router.Router
	store      *threads.Store
	gatekeeper *approvals.Gatekeeper
	sup        *transport.Supervisor
	onEvent    func(ev router.Event)

	mu              sync.Mutex
	activeWorkspace string
	workspaces      map[string]*types.Workspace
	listedOnce      map[string]bool
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	c := &Client{
		logger:     logger,
		cfg:        cfg,
		repo:       opts.Repo,
		ring:       logging.NewRing(0),
		onEvent:    opts.OnEvent,
		workspaces: map[string]*types.Workspace{},
		listedOnce: map[string]bool{},
	}
	c.router = router.New(logger, c.ring)
	c.store = threads.NewStore(logger, threads.Hooks{
		OnInterruptReady: func(threadID, turnID string) {
			if err := c.sendInterrupt(threadID, turnID); err != nil {
				logger.Warn("interrupt_dispatch_failed",
					logging.F("thread", threadID),
					logging.F("error", err))
			}
		},
	})
	c.store.SetSender(c.sendTurn)

	var ruleStore approvals.RuleStore
	if opts.Repo != nil {
		ruleStore = opts.Repo
	}
	c.gatekeeper = approvals.NewGatekeeper(logger, gatekeeperResponder{c}, ruleStore)
	c.gatekeeper.OnPending = opts.OnApprovalPending

	tcfg := transport.Config{
		Address: cfg.ServerAddress(),
		Token:   opts.Token,
		Logger:  logger,
	}
	if opts.Dialer != nil {
		tcfg.Dialer = opts.Dialer
	}
	c.sup = transport.NewSupervisor(tcfg, transport.Handlers{
		OnNotification: c.handleNotification,
		OnRequest:      c.handleRequest,
	}, opts.OnConnState)

	for _, ws := range cfg.Workspaces {
		c.workspaces[ws.ID] = &types.Workspace{ID: ws.ID, Name: ws.Name, RootPath: ws.Path}
	}
	return c
}

// Connect dials the server and restores persisted overlays.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.sup.Start(ctx); err != nil {
		return err
	}
	c.restoreOverlays()
	return nil
}

// Disconnect tears down the connection; no reconnect is attempted.
func (c *Client) Disconnect() {
	c.sup.Stop()
	if c.repo != nil {
		_ = c.repo.Close()
	}
}

func (c *Client) State() transport.ConnState { return c.sup.State() }

func (c *Client) Store() *threads.Store { return c.store }

func (c *Client) Ring() *logging.Ring { return c.ring }

// Pending returns approval requests awaiting a user decision.
func (c *Client) Pending() []*types.ApprovalRequest {
	return c.gatekeeper.Pending()
}

func (c *Client) restoreOverlays() {
	if c.repo == nil {
		return
	}
	metas, err := c.repo.LoadThreadMeta("")
	if err != nil {
		c.logger.Warn("overlay_restore_failed", logging.F("error", err))
		return
	}
	for _, meta := range metas {
		c.store.ApplyMeta(meta)
	}
	c.mu.Lock()
	workspaces := make([]string, 0, len(c.workspaces))
	for id := range c.workspaces {
		workspaces = append(workspaces, id)
	}
	c.mu.Unlock()
	for _, id := range workspaces {
		if err := c.gatekeeper.LoadRules(id); err != nil {
			c.logger.Warn("approval_rules_restore_failed",
				logging.F("workspace", id),
				logging.F("error", err))
		}
	}
}

// handleNotification routes one push notification through the router into
// the store; approval-bearing notifications go to the gatekeeper instead.
func (c *Client) handleNotification(msg transport.Message) {
	c.dispatch(msg.Method, msg.Params, nil)
}

// handleRequest routes a server-initiated request; these are approval
// prompts whose frame id doubles as the response correlation id.
func (c *Client) handleRequest(msg transport.Message) {
	c.dispatch(msg.Method, msg.Params, msg.ID)
}

func (c *Client) dispatch(method string, params json.RawMessage, wireID *int64) {
	ev := c.router.Classify(method, params, wireID)
	if ev == nil {
		return
	}
	switch event := ev.(type) {
	case router.ApprovalRequested:
		if event.WorkspaceID == "" {
			event.WorkspaceID = c.ActiveWorkspace()
		}
		c.gatekeeper.HandleRequest(event)
	case router.WorkspaceConnected:
		c.mu.Lock()
		if event.WorkspaceID != "" {
			c.activeWorkspace = event.WorkspaceID
		}
		c.mu.Unlock()
	case router.RateLimitsUpdated:
		if event.WorkspaceID == "" {
			event.WorkspaceID = c.ActiveWorkspace()
		}
		c.store.Apply(event)
	default:
		c.store.Apply(ev)
	}
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// ActiveWorkspace is the workspace the connected server session belongs to.
func (c *Client) ActiveWorkspace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeWorkspace
}

// SetActiveThread marks the thread the user is viewing and remembers it
// per workspace so the next session can land back on it.
func (c *Client) SetActiveThread(threadID string) {
	c.store.SetActiveThread(threadID)
	if c.repo == nil {
		return
	}
	workspaceID := ""
	if t := c.store.Thread(threadID); t != nil {
		workspaceID = t.WorkspaceID
	}
	if workspaceID == "" {
		return
	}
	if err := c.repo.SaveLastActiveThread(workspaceID, threadID); err != nil {
		c.logger.Warn("last_active_save_failed", logging.F("thread", threadID), logging.F("error", err))
	}
}

// LastActiveThread returns the remembered last-viewed thread for a
// workspace, or "".
func (c *Client) LastActiveThread(workspaceID string) string {
	if c.repo == nil {
		return ""
	}
	threadID, err := c.repo.LoadLastActiveThread(workspaceID)
	if err != nil {
		return ""
	}
	return threadID
}

// WorkspaceForPath resolves the configured workspace whose root contains
// the given directory, preferring the deepest match.
func (c *Client) WorkspaceForPath(path string) *types.Workspace {
	c.mu.Lock()
	workspaces := make([]*types.Workspace, 0, len(c.workspaces))
	for _, ws := range c.workspaces {
		workspaces = append(workspaces, ws)
	}
	c.mu.Unlock()
	return workspacepaths.WorkspaceFor(workspaces, path)
}

type gatekeeperResponder struct{ c *Client }

// RespondApproval answers an approval request over the wire. Numeric
// request ids are answered as response frames; anything else goes through
// an explicit respond call.
func (r gatekeeperResponder) RespondApproval(requestID, decision string) error {
	conn := r.c.sup.Conn()
	if conn == nil {
		return transport.ErrDisconnected
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(requestID), 10, 64); err == nil {
		return conn.Respond(id, map[string]any{"decision": decision})
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	_, err := conn.Call(ctx, "approval/respond", map[string]any{
		"requestId": requestID,
		"decision":  decision,
	})
	return err
}

// RespondToApproval resolves a pending approval with the given decision.
func (c *Client) RespondToApproval(requestID, decision string) error {
	return c.gatekeeper.Resolve(requestID, decision)
}

// RememberApproval accepts a pending approval and remembers its command
// prefix for the workspace.
func (c *Client) RememberApproval(requestID string, prefixLen int) error {
	return c.gatekeeper.RememberAndAccept(requestID, prefixLen)
}
