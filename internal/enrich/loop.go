package enrich

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"scanbay/internal/bundle"
	"scanbay/internal/logging"
	"scanbay/internal/model"
	"scanbay/internal/serp"
	"scanbay/internal/services"
)

// phase enumerates the states of the conversation loop. Forced finalization
// is the transition into phaseFinalizing: it injects the finalize instruction
// and strips tool availability for every remaining model call.
type phase string

const (
	phaseAwaitingModel phase = "awaiting_model"
	phaseAwaitingTools phase = "awaiting_tools"
	phaseFinalizing    phase = "finalizing"
	phaseDone          phase = "done"
	phaseError         phase = "error"
)

// searchRecord keeps the full normalized items of one executed search so the
// backfills can reuse evidence without re-querying.
type searchRecord struct {
	engine serp.Engine
	query  string
	items  []serp.Item
}

// run is the mutable state of one conversation loop.
type run struct {
	o *Orchestrator

	conv          *model.Conversation
	modelOverride string

	phase         phase
	iteration     int
	maxIterations int
	toolsEnabled  bool
	pendingCalls  []model.ToolCall

	searchCalls  int
	records      []searchRecord
	trace        serp.Trace
	modelUsed    string
	finalContent string
	failure      error
}

func newRun(o *Orchestrator, barcodes, imageURLs []string, input Input) *run {
	conv := model.NewConversation(systemInstruction)
	conv.AddUser(buildUserInstruction(barcodes, imageURLs, input.Locale, o.cfg))

	maxIterations := o.cfg.MaxToolIterations
	if maxIterations < 2 {
		maxIterations = 2
	}
	return &run{
		o:             o,
		conv:          conv,
		modelOverride: input.ModelOverride,
		phase:         phaseAwaitingModel,
		maxIterations: maxIterations,
		toolsEnabled:  true,
		trace:         serp.Trace{},
	}
}

// execute drives the state machine to a terminal phase.
func (r *run) execute(ctx context.Context) error {
	for r.phase != phaseDone && r.phase != phaseError {
		switch r.phase {
		case phaseAwaitingModel, phaseFinalizing:
			r.stepModel(ctx)
		case phaseAwaitingTools:
			r.stepTools(ctx)
		}
	}
	return r.failure
}

// stepModel issues one model call. One iteration before the ceiling the
// finalize instruction is injected and tools are disabled for this and every
// later call.
func (r *run) stepModel(ctx context.Context) {
	if r.iteration >= r.maxIterations {
		r.failure = services.Wrap(services.ErrIterationLimit, "enrich", "loop",
			fmt.Sprintf("no final answer after %d model calls", r.maxIterations), nil)
		r.phase = phaseError
		return
	}
	r.iteration++

	if r.toolsEnabled && r.iteration == r.maxIterations-1 {
		r.conv.AddSystem(finalizeInstruction)
		r.toolsEnabled = false
		r.phase = phaseFinalizing
	}

	opts := model.Options{
		Model:      r.modelOverride,
		SchemaName: bundle.SchemaName,
		Schema:     bundle.Schema(),
	}
	if r.toolsEnabled {
		opts.Tools = []model.ToolDefinition{{
			Name:        serp.ToolName,
			Description: serp.ToolDescription,
			Parameters:  serp.ToolParameters(),
		}}
	}

	resp, err := r.o.completer.Complete(ctx, r.conv, opts)
	if err != nil {
		r.failure = err
		r.phase = phaseError
		return
	}
	if resp.Model != "" {
		r.modelUsed = resp.Model
	}

	if len(resp.ToolCalls) == 0 {
		r.finalContent = resp.Content
		r.phase = phaseDone
		return
	}

	r.conv.Add(resp.Message)
	r.pendingCalls = resp.ToolCalls
	r.phase = phaseAwaitingTools
}

// stepTools executes the pending tool calls, appends one compact result
// message per call, and records trace entries. Tool failures are reported
// back to the model rather than aborting the run.
func (r *run) stepTools(ctx context.Context) {
	if !r.toolsEnabled {
		// Tool availability was withdrawn; refuse instead of executing.
		for _, call := range r.pendingCalls {
			r.conv.AddToolResult(call.ID, "tool calls are disabled; produce the final answer now")
		}
		r.pendingCalls = nil
		r.phase = phaseFinalizing
		return
	}
	for _, call := range r.pendingCalls {
		if call.Name != serp.ToolName {
			r.conv.AddToolResult(call.ID, fmt.Sprintf("unsupported tool %q", call.Name))
			continue
		}

		args, err := serp.ParseToolArgs(call.Arguments)
		if err != nil {
			r.conv.AddToolResult(call.ID, "invalid search arguments: "+err.Error())
			continue
		}

		items, summary := r.search(ctx, args.Engine, args.Query, args.Count)
		if items != nil {
			r.records = append(r.records, searchRecord{engine: args.Engine, query: args.Query, items: items})
		}
		r.conv.AddToolResult(call.ID, summary)
	}
	r.pendingCalls = nil

	if r.toolsEnabled {
		r.phase = phaseAwaitingModel
	} else {
		r.phase = phaseFinalizing
	}
}

// search executes one traced search-tool invocation and renders the compact
// result text for the model.
func (r *run) search(ctx context.Context, engine serp.Engine, query string, count int) ([]serp.Item, string) {
	r.searchCalls++
	entry := serp.TraceEntry{
		Engine: engine,
		Query:  query,
		Params: map[string]string{},
	}
	if count > 0 {
		entry.Params["count"] = strconv.Itoa(count)
	}

	items, err := r.o.searcher.Search(ctx, engine, query, count)
	if err != nil {
		entry.Error = err.Error()
		r.trace = r.trace.Append(entry)
		r.o.logger.Warn("search-tool call failed",
			logging.String(logging.FieldEngine, string(engine)),
			logging.Error(err))
		return nil, "search failed: " + services.Message(err)
	}

	summaries := serp.Summaries(items)
	entry.Summary = summaries
	r.trace = r.trace.Append(entry)

	if len(summaries) == 0 {
		return items, "no results"
	}
	return items, strings.Join(summaries, "\n")
}
