// Package research implements the multi-source research run: three parallel
// source searches fan out from the question, converge on discussion-thread
// selection and comment retrieval, fan out again into per-source analyses,
// and join in a final synthesis.
package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prospect-labs/prospector/config"
	"github.com/prospect-labs/prospector/internal/brightdata"
	"github.com/prospect-labs/prospector/internal/llm"
	"github.com/prospect-labs/prospector/internal/telemetry"
)

// Stage identifiers, also used as task IDs in the execution graph.
const (
	stageSearchGoogle     = "search_google"
	stageSearchBing       = "search_bing"
	stageSearchReddit     = "search_reddit"
	stageSelectURLs       = "select_urls"
	stageRetrieveComments = "retrieve_comments"
	stageAnalyzeGoogle    = "analyze_google"
	stageAnalyzeBing      = "analyze_bing"
	stageAnalyzeReddit    = "analyze_reddit"
	stageSynthesize       = "synthesize"
)

var pipelineTracer trace.Tracer = otel.Tracer("prospector/internal/research")

// Gateway is the slice of the provider client the pipeline depends on.
type Gateway interface {
	Search(ctx context.Context, query string, engine brightdata.Engine) (*brightdata.SearchBundle, error)
	DiscoverPosts(ctx context.Context, keyword, dateRange, sortBy string, limit int) (*brightdata.DiscoveryBundle, error)
	RetrieveComments(ctx context.Context, urls []string, daysBack int, loadAllReplies bool, commentLimit int) (*brightdata.CommentBundle, error)
}

// Pipeline wires the injected collaborators into the fixed research graph.
type Pipeline struct {
	llm     llm.Provider
	gateway Gateway
	cfg     config.ResearchConfig
	logger  *log.Logger
	metrics *telemetry.Telemetry
}

// NewPipeline creates a pipeline. All collaborators are required except
// metrics, which may be nil.
func NewPipeline(provider llm.Provider, gateway Gateway, cfg config.ResearchConfig, logger *log.Logger, metrics *telemetry.Telemetry) *Pipeline {
	return &Pipeline{
		llm:     provider,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one full research run for the question. The returned State
// always reflects whatever the stages produced, even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, question string) (*State, error) {
	st := NewState(question)
	err := p.execute(ctx, st)
	return st, err
}

func (p *Pipeline) execute(ctx context.Context, st *State) error {
	start := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("run.id", st.RunID),
			attribute.Int("question.length", len(st.Question)),
		))
	defer span.End()

	err := p.buildGraph(st).Execute(ctx)
	p.metrics.RecordRun(time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "completed")
	return nil
}

// buildGraph assembles the static nine-node DAG. select_urls joins on all
// three searches, retrieve_comments follows selection, the three analyses fan
// out after retrieval, and synthesis joins on all analyses.
func (p *Pipeline) buildGraph(st *State) *Graph {
	g := NewGraph()
	g.AddTask(Task{ID: stageSearchGoogle, Run: p.staged(stageSearchGoogle, st, p.searchGoogle)})
	g.AddTask(Task{ID: stageSearchBing, Run: p.staged(stageSearchBing, st, p.searchBing)})
	g.AddTask(Task{ID: stageSearchReddit, Run: p.staged(stageSearchReddit, st, p.searchReddit)})
	g.AddTask(Task{
		ID:        stageSelectURLs,
		DependsOn: []string{stageSearchGoogle, stageSearchBing, stageSearchReddit},
		Run:       p.staged(stageSelectURLs, st, p.selectURLs),
	})
	g.AddTask(Task{
		ID:        stageRetrieveComments,
		DependsOn: []string{stageSelectURLs},
		Run:       p.staged(stageRetrieveComments, st, p.retrieveComments),
	})
	g.AddTask(Task{
		ID:        stageAnalyzeGoogle,
		DependsOn: []string{stageRetrieveComments},
		Run:       p.staged(stageAnalyzeGoogle, st, p.analyzeGoogle),
	})
	g.AddTask(Task{
		ID:        stageAnalyzeBing,
		DependsOn: []string{stageRetrieveComments},
		Run:       p.staged(stageAnalyzeBing, st, p.analyzeBing),
	})
	g.AddTask(Task{
		ID:        stageAnalyzeReddit,
		DependsOn: []string{stageRetrieveComments},
		Run:       p.staged(stageAnalyzeReddit, st, p.analyzeReddit),
	})
	g.AddTask(Task{
		ID:        stageSynthesize,
		DependsOn: []string{stageAnalyzeGoogle, stageAnalyzeBing, stageAnalyzeReddit},
		Run:       p.staged(stageSynthesize, st, p.synthesize),
	})
	return g
}

// staged wraps a stage function with a per-stage span.
func (p *Pipeline) staged(stage string, st *State, fn func(ctx context.Context, st *State) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, span := pipelineTracer.Start(ctx, "research."+stage)
		defer span.End()
		if err := fn(ctx, st); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "completed")
		return nil
	}
}

func (p *Pipeline) searchGoogle(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] searching Google for %q", st.RunID, st.Question)
	bundle, err := p.gateway.Search(ctx, st.Question, brightdata.EngineGoogle)
	if err != nil {
		p.logger.Printf("[%s] google search unavailable: %v", st.RunID, err)
		st.Google.MarkUnavailable(err.Error())
		return nil
	}
	st.Google.Resolve(*bundle)
	return nil
}

func (p *Pipeline) searchBing(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] searching Bing for %q", st.RunID, st.Question)
	bundle, err := p.gateway.Search(ctx, st.Question, brightdata.EngineBing)
	if err != nil {
		p.logger.Printf("[%s] bing search unavailable: %v", st.RunID, err)
		st.Bing.MarkUnavailable(err.Error())
		return nil
	}
	st.Bing.Resolve(*bundle)
	return nil
}

func (p *Pipeline) searchReddit(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] discovering Reddit threads for %q", st.RunID, st.Question)
	bundle, err := p.gateway.DiscoverPosts(ctx, st.Question, p.cfg.DiscoveryDateRange, p.cfg.DiscoverySort, p.cfg.DiscoveryLimit)
	if err != nil {
		p.logger.Printf("[%s] reddit discovery unavailable: %v", st.RunID, err)
		st.Reddit.MarkUnavailable(err.Error())
		return nil
	}
	p.logger.Printf("[%s] reddit discovery found %d threads", st.RunID, bundle.TotalFound)
	st.Reddit.Resolve(*bundle)
	return nil
}

// selectURLs asks the model which discovered threads deserve full retrieval.
// With no discovery data there is nothing to choose from, so the model is not
// invoked at all; a model failure degrades to an empty selection.
func (p *Pipeline) selectURLs(ctx context.Context, st *State) error {
	discovery, ok := st.Reddit.Value()
	if !ok || len(discovery.Posts) == 0 {
		st.SelectedURLs.Resolve([]string{})
		return nil
	}

	var reply struct {
		SelectedURLs []string `json:"selected_urls"`
	}
	messages := urlSelectionMessages(st.Question, asJSON(discovery.Posts))
	err := p.llm.GenerateStructured(ctx, messages, "url_selection", selectedURLsSchema, &reply)
	p.metrics.RecordLLMCall(stageSelectURLs, err == nil)
	if err != nil {
		p.logger.Printf("[%s] url selection failed, continuing without detail retrieval: %v", st.RunID, err)
		st.SelectedURLs.Resolve([]string{})
		return nil
	}

	p.logger.Printf("[%s] selected %d thread(s) for retrieval", st.RunID, len(reply.SelectedURLs))
	if reply.SelectedURLs == nil {
		reply.SelectedURLs = []string{}
	}
	st.SelectedURLs.Resolve(reply.SelectedURLs)
	return nil
}

func (p *Pipeline) retrieveComments(ctx context.Context, st *State) error {
	urls, _ := st.SelectedURLs.Value()
	if len(urls) == 0 {
		st.RedditDetail.MarkUnavailable("no discussion threads selected")
		return nil
	}

	p.logger.Printf("[%s] retrieving comments from %d thread(s)", st.RunID, len(urls))
	bundle, err := p.gateway.RetrieveComments(ctx, urls, p.cfg.CommentDaysBack, p.cfg.LoadAllReplies, p.cfg.CommentLimit)
	if err != nil {
		p.logger.Printf("[%s] comment retrieval unavailable: %v", st.RunID, err)
		st.RedditDetail.MarkUnavailable(err.Error())
		return nil
	}
	if bundle == nil {
		st.RedditDetail.MarkUnavailable("no discussion threads selected")
		return nil
	}
	p.logger.Printf("[%s] retrieved %d comment(s)", st.RunID, bundle.TotalRetrieved)
	st.RedditDetail.Resolve(*bundle)
	return nil
}

// analysisInput serializes a slot's bundle for a prompt, degrading to an
// explicit placeholder when the source was unavailable.
func analysisInput[T any](slot *Slot[T]) string {
	if value, ok := slot.Value(); ok {
		return asJSON(value)
	}
	if reason := slot.Reason(); reason != "" {
		return fmt.Sprintf("(no data available: %s)", reason)
	}
	return "(no data available)"
}

// analyze runs one per-source analysis. A model failure marks that analysis
// unavailable and the run continues; partial synthesis from the remaining
// sources beats total failure.
func (p *Pipeline) analyze(ctx context.Context, stage string, slot *Slot[string], messages []llm.Message) error {
	reply, err := p.llm.Generate(ctx, messages)
	p.metrics.RecordLLMCall(stage, err == nil)
	if err != nil {
		p.logger.Printf("%s failed: %v", stage, err)
		slot.MarkUnavailable(err.Error())
		return nil
	}
	slot.Resolve(reply)
	return nil
}

func (p *Pipeline) analyzeGoogle(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] analyzing Google results", st.RunID)
	return p.analyze(ctx, stageAnalyzeGoogle, &st.GoogleAnalysis,
		googleAnalysisMessages(st.Question, analysisInput(&st.Google)))
}

func (p *Pipeline) analyzeBing(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] analyzing Bing results", st.RunID)
	return p.analyze(ctx, stageAnalyzeBing, &st.BingAnalysis,
		bingAnalysisMessages(st.Question, analysisInput(&st.Bing)))
}

func (p *Pipeline) analyzeReddit(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] analyzing Reddit discussion", st.RunID)
	return p.analyze(ctx, stageAnalyzeReddit, &st.RedditAnalysis,
		redditAnalysisMessages(st.Question, analysisInput(&st.Reddit), analysisInput(&st.RedditDetail)))
}

// synthesisInput passes an analysis through, or an explicit unavailability
// note so the synthesizer makes a deliberate decision about the gap.
func synthesisInput(slot *Slot[string]) string {
	if value, ok := slot.Value(); ok {
		return value
	}
	if reason := slot.Reason(); reason != "" {
		return fmt.Sprintf("(analysis unavailable: %s)", reason)
	}
	return "(analysis unavailable)"
}

// synthesize combines all three per-source analyses into the final answer.
// This is the terminal producer; a model failure here fails the run.
func (p *Pipeline) synthesize(ctx context.Context, st *State) error {
	p.logger.Printf("[%s] synthesizing final answer", st.RunID)
	messages := synthesisMessages(st.Question,
		synthesisInput(&st.GoogleAnalysis),
		synthesisInput(&st.BingAnalysis),
		synthesisInput(&st.RedditAnalysis))

	reply, err := p.llm.Generate(ctx, messages)
	p.metrics.RecordLLMCall(stageSynthesize, err == nil)
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	st.FinalAnswer.Resolve(reply)
	return nil
}
