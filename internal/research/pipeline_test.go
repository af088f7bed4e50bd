package research

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prospect-labs/prospector/config"
	"github.com/prospect-labs/prospector/internal/brightdata"
	"github.com/prospect-labs/prospector/internal/llm"
	"github.com/prospect-labs/prospector/internal/telemetry"
)

type stubGateway struct {
	mu            sync.Mutex
	searchCalls   int
	discoverCalls int
	retrieveCalls int

	searchFn   func(query string, engine brightdata.Engine) (*brightdata.SearchBundle, error)
	discoverFn func(keyword string) (*brightdata.DiscoveryBundle, error)
	retrieveFn func(urls []string) (*brightdata.CommentBundle, error)
}

func (g *stubGateway) Search(ctx context.Context, query string, engine brightdata.Engine) (*brightdata.SearchBundle, error) {
	g.mu.Lock()
	g.searchCalls++
	g.mu.Unlock()
	if g.searchFn != nil {
		return g.searchFn(query, engine)
	}
	return &brightdata.SearchBundle{
		Knowledge: map[string]any{},
		Organic:   []brightdata.Snippet{{Title: string(engine) + " result", URL: "https://example.com/" + string(engine)}},
	}, nil
}

func (g *stubGateway) DiscoverPosts(ctx context.Context, keyword, dateRange, sortBy string, limit int) (*brightdata.DiscoveryBundle, error) {
	g.mu.Lock()
	g.discoverCalls++
	g.mu.Unlock()
	if g.discoverFn != nil {
		return g.discoverFn(keyword)
	}
	return &brightdata.DiscoveryBundle{
		Posts:      []brightdata.Post{{Title: "Best budget mechanical keyboard?", URL: "https://reddit.com/r/mechkeyboards/x"}},
		TotalFound: 1,
	}, nil
}

func (g *stubGateway) RetrieveComments(ctx context.Context, urls []string, daysBack int, loadAllReplies bool, commentLimit int) (*brightdata.CommentBundle, error) {
	g.mu.Lock()
	g.retrieveCalls++
	g.mu.Unlock()
	if g.retrieveFn != nil {
		return g.retrieveFn(urls)
	}
	return &brightdata.CommentBundle{
		Comments:       []brightdata.Comment{{ID: "c1", Content: "Get the RK84.", Date: "2026-08-01"}},
		TotalRetrieved: 1,
	}, nil
}

type stubLLM struct {
	mu              sync.Mutex
	generateCalls   int
	structuredCalls int
	prompts         []string

	generateFn   func(messages []llm.Message) (string, error)
	structuredFn func(messages []llm.Message, out any) error
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	s.generateCalls++
	s.prompts = append(s.prompts, messages[0].Content+"\n"+messages[len(messages)-1].Content)
	s.mu.Unlock()
	if s.generateFn != nil {
		return s.generateFn(messages)
	}
	switch {
	case strings.Contains(messages[0].Content, "synthesize"):
		return "final synthesized answer", nil
	case strings.Contains(messages[0].Content, "Google"):
		return "google analysis text", nil
	case strings.Contains(messages[0].Content, "Bing"):
		return "bing analysis text", nil
	default:
		return "reddit analysis text", nil
	}
}

func (s *stubLLM) GenerateStructured(ctx context.Context, messages []llm.Message, schemaName string, schema json.RawMessage, out any) error {
	s.mu.Lock()
	s.structuredCalls++
	s.mu.Unlock()
	if s.structuredFn != nil {
		return s.structuredFn(messages, out)
	}
	b, _ := json.Marshal(map[string]any{"selected_urls": []string{"https://reddit.com/r/mechkeyboards/x"}})
	return json.Unmarshal(b, out)
}

func newTestPipeline(gw *stubGateway, model *stubLLM) *Pipeline {
	cfg := config.ResearchConfig{
		DiscoveryDateRange: "All time",
		DiscoverySort:      "Hot",
		DiscoveryLimit:     90,
		CommentDaysBack:    10,
	}
	return NewPipeline(model, gw, cfg, log.New(io.Discard, "", 0), telemetry.New(prometheus.NewRegistry()))
}

func TestRunHappyPath(t *testing.T) {
	gw := &stubGateway{}
	model := &stubLLM{}
	p := newTestPipeline(gw, model)

	st, err := p.Run(context.Background(), "best budget mechanical keyboard")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	answer, ok := st.FinalAnswer.Value()
	if !ok || answer == "" {
		t.Fatal("expected a non-empty final answer")
	}
	for name, settled := range map[string]bool{
		"google search":   st.Google.Resolved(),
		"bing search":     st.Bing.Resolved(),
		"reddit search":   st.Reddit.Resolved(),
		"selected urls":   st.SelectedURLs.Resolved(),
		"reddit detail":   st.RedditDetail.Resolved(),
		"google analysis": st.GoogleAnalysis.Resolved(),
		"bing analysis":   st.BingAnalysis.Resolved(),
		"reddit analysis": st.RedditAnalysis.Resolved(),
	} {
		if !settled {
			t.Errorf("%s slot not resolved", name)
		}
	}
	if urls, _ := st.SelectedURLs.Value(); len(urls) != 1 {
		t.Fatalf("expected 1 selected url, got %v", urls)
	}
	if gw.searchCalls != 2 || gw.discoverCalls != 1 || gw.retrieveCalls != 1 {
		t.Fatalf("unexpected gateway calls: search=%d discover=%d retrieve=%d",
			gw.searchCalls, gw.discoverCalls, gw.retrieveCalls)
	}
	// One structured selection plus three analyses and one synthesis.
	if model.structuredCalls != 1 || model.generateCalls != 4 {
		t.Fatalf("unexpected model calls: structured=%d generate=%d", model.structuredCalls, model.generateCalls)
	}
}

func TestRunDegradesWhenDiscoveryUnavailable(t *testing.T) {
	gw := &stubGateway{
		discoverFn: func(string) (*brightdata.DiscoveryBundle, error) {
			return nil, errors.New("provider down")
		},
	}
	model := &stubLLM{}
	p := newTestPipeline(gw, model)

	st, err := p.Run(context.Background(), "best budget mechanical keyboard")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if urls, ok := st.SelectedURLs.Value(); !ok || len(urls) != 0 {
		t.Fatalf("expected empty selection, got %v (resolved=%v)", urls, ok)
	}
	if gw.retrieveCalls != 0 {
		t.Fatalf("expected no comment retrieval calls, got %d", gw.retrieveCalls)
	}
	if model.structuredCalls != 0 {
		t.Fatalf("expected no selection model calls, got %d", model.structuredCalls)
	}
	if !st.RedditDetail.Unavailable() {
		t.Fatal("expected reddit detail to be marked unavailable")
	}
	if text, ok := st.RedditAnalysis.Value(); !ok || text == "" {
		t.Fatal("expected reddit analysis to still produce text on absent data")
	}
	if answer, ok := st.FinalAnswer.Value(); !ok || answer == "" {
		t.Fatal("expected synthesis to complete from remaining sources")
	}
}

func TestSelectURLsSkipsModelOnZeroPosts(t *testing.T) {
	gw := &stubGateway{
		discoverFn: func(string) (*brightdata.DiscoveryBundle, error) {
			return &brightdata.DiscoveryBundle{Posts: []brightdata.Post{}, TotalFound: 0}, nil
		},
	}
	model := &stubLLM{}
	p := newTestPipeline(gw, model)

	st := NewState("q")
	st.Reddit.Resolve(brightdata.DiscoveryBundle{Posts: []brightdata.Post{}})
	if err := p.selectURLs(context.Background(), st); err != nil {
		t.Fatalf("selectURLs: %v", err)
	}
	if model.structuredCalls != 0 {
		t.Fatalf("expected 0 model calls, got %d", model.structuredCalls)
	}
	if urls, ok := st.SelectedURLs.Value(); !ok || len(urls) != 0 {
		t.Fatalf("expected resolved empty selection, got %v (resolved=%v)", urls, ok)
	}
}

func TestSelectURLsDegradesOnModelFailure(t *testing.T) {
	model := &stubLLM{
		structuredFn: func([]llm.Message, any) error {
			return errors.New("model refused")
		},
	}
	p := newTestPipeline(&stubGateway{}, model)

	st := NewState("q")
	st.Reddit.Resolve(brightdata.DiscoveryBundle{
		Posts:      []brightdata.Post{{Title: "t", URL: "https://reddit.com/r/x/1"}},
		TotalFound: 1,
	})
	if err := p.selectURLs(context.Background(), st); err != nil {
		t.Fatalf("selectURLs must not propagate model errors, got %v", err)
	}
	if urls, ok := st.SelectedURLs.Value(); !ok || len(urls) != 0 {
		t.Fatalf("expected resolved empty selection, got %v (resolved=%v)", urls, ok)
	}
}

func TestJoinBarriersHoldAcrossTheGraph(t *testing.T) {
	model := &stubLLM{}
	gw := &stubGateway{}
	p := newTestPipeline(gw, model)
	st := NewState("best budget mechanical keyboard")

	model.structuredFn = func(messages []llm.Message, out any) error {
		if !st.Google.Settled() || !st.Bing.Settled() || !st.Reddit.Settled() {
			t.Error("select_urls ran before all three search slots settled")
		}
		b, _ := json.Marshal(map[string]any{"selected_urls": []string{"https://reddit.com/r/x/1"}})
		return json.Unmarshal(b, out)
	}
	gw.retrieveFn = func(urls []string) (*brightdata.CommentBundle, error) {
		if !st.SelectedURLs.Settled() {
			t.Error("retrieve_comments ran before url selection settled")
		}
		if !st.Google.Settled() || !st.Bing.Settled() || !st.Reddit.Settled() {
			t.Error("retrieve_comments ran before all three search slots settled")
		}
		return &brightdata.CommentBundle{Comments: []brightdata.Comment{{ID: "c1"}}, TotalRetrieved: 1}, nil
	}
	model.generateFn = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "synthesize") {
			if !st.GoogleAnalysis.Settled() || !st.BingAnalysis.Settled() || !st.RedditAnalysis.Settled() {
				t.Error("synthesize ran before all analysis slots settled")
			}
			return "answer", nil
		}
		if !st.RedditDetail.Settled() {
			t.Error("analysis ran before comment retrieval settled")
		}
		return "analysis", nil
	}

	if err := p.execute(context.Background(), st); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestAnalysisFailureDegradesInsteadOfAborting(t *testing.T) {
	model := &stubLLM{}
	model.generateFn = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "synthesize") {
			return "partial answer", nil
		}
		if strings.Contains(messages[0].Content, "Google") {
			return "", errors.New("model overloaded")
		}
		return "analysis", nil
	}
	p := newTestPipeline(&stubGateway{}, model)

	st, err := p.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !st.GoogleAnalysis.Unavailable() {
		t.Fatal("expected google analysis marked unavailable")
	}
	if answer, ok := st.FinalAnswer.Value(); !ok || answer != "partial answer" {
		t.Fatalf("expected synthesis from remaining sources, got %q (resolved=%v)", answer, ok)
	}
}

func TestSynthesisFailureFailsTheRun(t *testing.T) {
	model := &stubLLM{}
	model.generateFn = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "synthesize") {
			return "", errors.New("model down")
		}
		return "analysis", nil
	}
	p := newTestPipeline(&stubGateway{}, model)

	st, err := p.Run(context.Background(), "q")
	if err == nil {
		t.Fatal("expected run to fail when synthesis fails")
	}
	if st.FinalAnswer.Settled() {
		t.Fatal("final answer must stay empty on synthesis failure")
	}
}

func TestSynthesisPromptIncludesAllThreeAnalyses(t *testing.T) {
	model := &stubLLM{}
	p := newTestPipeline(&stubGateway{}, model)

	if _, err := p.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	model.mu.Lock()
	defer model.mu.Unlock()
	var synthesisPrompt string
	for _, prompt := range model.prompts {
		if strings.Contains(prompt, "synthesize research findings") {
			synthesisPrompt = prompt
		}
	}
	if synthesisPrompt == "" {
		t.Fatal("synthesis prompt not captured")
	}
	for _, analysis := range []string{"google analysis text", "bing analysis text", "reddit analysis text"} {
		if !strings.Contains(synthesisPrompt, analysis) {
			t.Errorf("synthesis prompt missing %q", analysis)
		}
	}
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	p := newTestPipeline(&stubGateway{}, &stubLLM{})

	first, err := p.Run(context.Background(), "best budget mechanical keyboard")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), "best budget mechanical keyboard")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	a1, _ := first.FinalAnswer.Value()
	a2, _ := second.FinalAnswer.Value()
	if a1 != a2 {
		t.Fatalf("expected identical answers across runs, got %q vs %q", a1, a2)
	}
	if first.RunID == second.RunID {
		t.Fatal("runs must not share state records")
	}
}
