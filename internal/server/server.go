// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/history"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/prompts"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/resources"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/tools"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config holds composition-root configuration.
type Config struct {
	// DataDir overrides the default data directory (~/.kat-planner).
	DataDir string
}

// New creates and configures the MCP server with all tools, prompts, and
// resources registered. This is the single place where dependencies are
// resolved.
//
// The returned cleanup function stops the expiry reaper and closes the
// history store's database connection; it must be called on shutdown
// (typically via defer). It is always non-nil and safe to call even if
// history init failed.
func New(cfg Config) (*server.MCPServer, func(), error) {
	// --- Create the session store (the one fatal dependency) ---

	storeCfg := session.DefaultConfig()
	histCfg := history.DefaultConfig()
	if cfg.DataDir != "" {
		storeCfg.Path = filepath.Join(cfg.DataDir, "sessions.json")
		histCfg.DataDir = cfg.DataDir
	}

	store, err := session.NewStore(storeCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("creating session store: %w", err)
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	store.StartReaper(reaperCtx)

	orch := workflow.New(store)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"kat-planner",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register planning tools ---

	startTool := tools.NewStartTool(orch)
	s.AddTool(startTool.Definition(), startTool.Handle)

	refineTool := tools.NewRefineTool(orch)
	s.AddTool(refineTool.Definition(), refineTool.Handle)

	reviewTool := tools.NewReviewTool(orch)
	s.AddTool(reviewTool.Definition(), reviewTool.Handle)

	approveTool := tools.NewApproveTool(orch)
	s.AddTool(approveTool.Definition(), approveTool.Handle)

	implementTool := tools.NewImplementTool(orch)
	s.AddTool(implementTool.Definition(), implementTool.Handle)

	statusTool := tools.NewStatusTool(store)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	// --- Wire the transition history (optional subsystem) ---
	//
	// History is independent: if it fails to initialize, planning tools
	// continue working. We log a warning and run without auditing.

	cleanup := func() { stopReaper() }
	hist, histErr := history.New(histCfg)
	if histErr != nil {
		log.Printf("WARNING: transition history disabled: %v", histErr)
	} else {
		orch.SetRecorder(hist)
		statusTool.SetHistory(hist)
		cleanup = func() {
			stopReaper()
			if err := hist.Close(); err != nil {
				log.Printf("WARNING: history store close: %v", err)
			}
		}
	}

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used when construction fails early.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the planner effectively.
func serverInstructions() string {
	return `You have access to kat-planner, a staged planning MCP server.

## WHEN TO ACTIVATE kat-planner

You MUST proactively suggest using kat-planner when the user:
- Asks to build a new project, app, or system
- Describes a vague idea and wants to start coding
- Says things like "I want to build...", "let's create...", "add a feature for..."

When you detect any of these, say something like:
"Before we start coding, let's run this through kat-planner so we agree on
a specification first. Should I start a planning session?"

You do NOT need kat-planner for bug fixes, small patches, refactors, or
questions.

## How It Works

Each idea gets one SESSION that moves through five STAGES, strictly in order:

1. questioning — plan_start creates the session and returns planning questions
2. refining — plan_refine records your answers and drafts the specification
3. document_review — plan_review generates the planning document
4. final_approval — plan_approve locks the document after the user accepts it
5. development — plan_implement closes planning; implementation may begin

The server enforces the stage order. Skipping a stage, repeating a completed
one, or calling a stage tool out of order returns a structured error with a
'recovery' section naming the legal next call — follow it.

## Stage-by-Stage Workflow

1. Ask the user about their idea, then call plan_start with the subject.
   Save the returned sessionId — every other tool needs it.
2. Discuss the planning questions with the user. Collect REAL answers —
   never placeholders. Call plan_refine with the answers object.
3. Call plan_review and present the planning document to the user.
4. If the user wants changes: call plan_review with a revisionRequest,
   then plan_refine with the updated answers, then plan_review again.
   Calling plan_review twice without a revisionRequest just re-reads the
   cached document — it never moves the session backward.
5. When the user accepts, call plan_approve with their approval token
   (accepted: yes, y, approve, approved, lgtm, ship it).
6. Call plan_implement for the go-ahead, then implement against the plan.

## Important Rules

- One stage call at a time, in order — the server rejects everything else
- Generated questions, specifications, and documents are cached on the
  session: re-reads are free and byte-identical
- Sessions expire after 24 hours of inactivity; check plan_status if a
  sessionId stops working
- plan_status is read-only and always safe to call`
}
