// Package graph composes the dialogue workflow: a fixed directed graph of
// turn-processing nodes with one conditional branch, executed once per turn.
//
//	input_processor → context_retriever → knowledge_decider
//	        ├─(seeking)→ knowledge_searcher → response_assembler
//	        └─(not)─────────────────────────→ response_assembler
//	response_assembler → response_generator → context_updater → END
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/adam-npc/dialogue-core/internal/agent/graph/nodes"
	"github.com/adam-npc/dialogue-core/internal/agent/graph/observers"
	"github.com/adam-npc/dialogue-core/internal/agent/knowledge"
	"github.com/adam-npc/dialogue-core/internal/agent/model"
	"github.com/adam-npc/dialogue-core/internal/agent/session"
	errx "github.com/adam-npc/dialogue-core/internal/core/error"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

// Runner executes the compiled graph for one turn.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*model.TurnResult, error)
}

// Config holds everything needed to compose the dialogue graph end-to-end.
type Config struct {
	Sessions   *session.Manager
	Classifier knowledge.Classifier
	Resolver   *knowledge.Resolver
	Completion model.CompletionService
	Repo       model.ConversationRepository

	Persona       model.PersonaConfig
	ResponseModel model.ResponseModelConfig
}

// graphBuilder handles the construction of the dialogue graph.
type graphBuilder struct {
	config *Config
	graph  *compose.Graph[model.TurnInput, *model.TurnResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnInput, *model.TurnResult]
	persona  model.PersonaConfig
}

// Invoke runs one turn. InvalidInput is surfaced as-is with no state mutated;
// any other workflow failure is surfaced as InternalInconsistency alongside a
// degraded result, so a transport layer can both answer the user and signal
// the fault.
func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.TurnResult, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		if errors.Is(err, errx.ErrInvalidInput) {
			return nil, err
		}
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("turn abandoned")
		degraded := &model.TurnResult{
			Reply:           r.persona.ApologyReply,
			Degraded:        true,
			KnowledgeSource: model.SourceNone,
		}
		if errors.Is(err, errx.ErrInternalInconsistency) {
			return degraded, err
		}
		return degraded, errx.Inconsistent(err.Error())
	}
	if out == nil {
		return nil, errx.Inconsistent("graph returned no result")
	}
	return out, nil
}

// BuildDialogueGraph validates the config, builds the graph, and returns a
// Runner.
func BuildDialogueGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is nil")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("knowledge resolver is nil")
	}
	if cfg.Completion == nil {
		return nil, fmt.Errorf("completion service is nil")
	}

	builder := &graphBuilder{
		config: &cfg,
		graph: compose.NewGraph[model.TurnInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Dialogue graph built successfully")
	return &graphRunner{runnable: runnable, persona: cfg.Persona}, nil
}

// addNodes adds all processing nodes to the graph.
func (b *graphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputProcessor,
		nodes.NewInputProcessorNode(),
		compose.WithStatePreHandler(nodes.NewInputProcessorPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeContextRetriever,
		nodes.NewContextRetrieverNode(b.config.Sessions),
	)

	b.graph.AddLambdaNode(nodes.NodeKnowledgeDecider,
		nodes.NewKnowledgeDeciderNode(b.config.Classifier),
	)

	b.graph.AddLambdaNode(nodes.NodeKnowledgeSearcher,
		nodes.NewKnowledgeSearcherNode(b.config.Resolver),
	)

	b.graph.AddLambdaNode(nodes.NodeResponseAssembler,
		nodes.NewResponseAssemblerNode(b.config.Persona),
		compose.WithStatePreHandler(nodes.NewResponseAssemblerPreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeResponseGenerator,
		nodes.NewResponseGeneratorNode(b.config.Completion, b.config.ResponseModel, b.config.Persona),
		compose.WithStatePostHandler(nodes.NewResponseGeneratorPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeContextUpdater,
		nodes.NewContextUpdaterNode(b.config.Sessions, b.config.Repo),
	)
}

// addEdges creates the main flow connections between nodes.
func (b *graphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputProcessor},
		{nodes.NodeInputProcessor, nodes.NodeContextRetriever},
		{nodes.NodeContextRetriever, nodes.NodeKnowledgeDecider},
		{nodes.NodeKnowledgeSearcher, nodes.NodeResponseAssembler},
		{nodes.NodeResponseAssembler, nodes.NodeResponseGenerator},
		{nodes.NodeResponseGenerator, nodes.NodeContextUpdater},
		{nodes.NodeContextUpdater, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional knowledge-search routing.
func (b *graphBuilder) addBranches() error {
	searchBranch := compose.NewGraphBranch(
		nodes.NewKnowledgeSearchCondition(),
		map[string]bool{
			nodes.NodeKnowledgeSearcher: true,
			nodes.NodeResponseAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeKnowledgeDecider, searchBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding knowledge search branch")
		return fmt.Errorf("error adding knowledge search branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *graphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.TurnResult], error) {
	// The pipeline is seven nodes with one branch; leave slack for the
	// per-node retry wrappers.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
