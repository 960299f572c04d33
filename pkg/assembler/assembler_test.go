package assembler_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/pkg/assembler"
	"github.com/engram-ai/engram-go/pkg/retrieval"
	"github.com/engram-ai/engram-go/pkg/storage"
	"github.com/engram-ai/engram-go/pkg/storage/inmemory"
)

type stubProvider struct {
	vectors map[string][]float64
	fail    bool
}

func (p *stubProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func (p *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Dimensions() int { return 3 }
func (p *stubProvider) Close() error    { return nil }

func newAssembler(t *testing.T, store storage.Store, provider *stubProvider, cfg assembler.Config) *assembler.Assembler {
	t.Helper()
	engine, err := retrieval.NewEngine(store, provider, retrieval.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return assembler.NewAssembler(store, engine, cfg)
}

func seed(t *testing.T, store storage.Store, id int64, userID, memType, content string, importance float64, keywords []string, embedding []float64) {
	t.Helper()
	err := store.Create(context.Background(), &storage.Record{
		ID:          id,
		UserID:      userID,
		Type:        memType,
		Content:     content,
		Keywords:    keywords,
		Embedding:   embedding,
		Importance:  importance,
		Confidence:  1.0,
		DecayFactor: 1.0,
		IsActive:    true,
	})
	require.NoError(t, err)
}

func TestBuildContextIncludesRelevantMemory(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	seed(t, store, 1, "user_001", "knowledge", "I prefer dark mode", 0.6,
		[]string{"prefer", "dark", "mode"}, []float64{1, 0, 0})

	asm := newAssembler(t, store, provider, assembler.Config{})

	text, err := asm.BuildContext(context.Background(), "user_001", "what theme do I like", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "I prefer dark mode")
	assert.Contains(t, text, "## Relevant Memories")
}

func TestBuildContextProfileTier(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	seed(t, store, 1, "user_001", "personal", "My name is Ada", 0.8,
		[]string{"name", "ada"}, []float64{0, 1, 0})

	asm := newAssembler(t, store, provider, assembler.Config{})

	text, err := asm.BuildContext(context.Background(), "user_001", "anything", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "## User Profile")
	assert.Contains(t, text, "My name is Ada")
}

func TestBuildContextOmitsEmptyTiers(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	asm := newAssembler(t, store, provider, assembler.Config{})

	text, err := asm.BuildContext(context.Background(), "user_001", "anything", nil)
	require.NoError(t, err)
	assert.NotContains(t, text, "## User Profile")
	assert.NotContains(t, text, "## Relevant Memories")
	assert.NotContains(t, text, "## Recent Conversation")
}

func TestBuildContextSkipsNearDuplicates(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	seed(t, store, 1, "user_001", "knowledge", "I prefer dark mode in all my editors", 0.6,
		[]string{"prefer", "dark", "mode", "editors"}, []float64{1, 0, 0})
	seed(t, store, 2, "user_001", "knowledge", "I prefer dark mode in all my editors", 0.6,
		[]string{"prefer", "dark", "mode", "editors"}, []float64{1, 0, 0})

	asm := newAssembler(t, store, provider, assembler.Config{})

	text, err := asm.BuildContext(context.Background(), "user_001", "dark mode", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "I prefer dark mode in all my editors"))
}

func TestBuildContextHistoryBudget(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	// Each turn is ~13 tokens; a 30-token budget fits two turns only, and
	// the most recent turns win.
	asm := newAssembler(t, store, provider, assembler.Config{HistoryBudget: 30})

	history := []assembler.Turn{
		{Role: "user", Content: strings.Repeat("oldest ", 7)},
		{Role: "assistant", Content: strings.Repeat("middle ", 7)},
		{Role: "user", Content: strings.Repeat("newest ", 7)},
	}

	text, err := asm.BuildContext(context.Background(), "user_001", "query", history)
	require.NoError(t, err)
	assert.Contains(t, text, "newest")
	assert.Contains(t, text, "middle")
	assert.NotContains(t, text, "oldest")
}

func TestBuildContextHistoryChronological(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	asm := newAssembler(t, store, provider, assembler.Config{})

	history := []assembler.Turn{
		{Role: "user", Content: "first message"},
		{Role: "assistant", Content: "second message"},
	}

	text, err := asm.BuildContext(context.Background(), "user_001", "query", history)
	require.NoError(t, err)
	assert.Less(t, strings.Index(text, "first message"), strings.Index(text, "second message"))
}

func TestBuildContextMemoriesBudgetNeverTruncates(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{}

	long := strings.Repeat("alpha ", 50) // ~75 tokens
	seed(t, store, 1, "user_001", "knowledge", long, 0.6,
		[]string{"alpha"}, []float64{1, 0, 0})
	seed(t, store, 2, "user_001", "knowledge", "short beta fact", 0.6,
		[]string{"beta"}, []float64{0.9, 0.1, 0})

	// Budget fits the long item but not both.
	asm := newAssembler(t, store, provider, assembler.Config{MemoriesBudget: 80})

	text, err := asm.BuildContext(context.Background(), "user_001", "query", nil)
	require.NoError(t, err)

	// The overflowing item is dropped whole, never cut mid-text.
	if strings.Contains(text, "short beta fact") {
		assert.NotContains(t, text, "alpha")
	} else {
		assert.Contains(t, text, strings.TrimSpace(long))
	}
}

func TestBuildContextDegradedRetrievalStillProduces(t *testing.T) {
	store := inmemory.NewStore()
	provider := &stubProvider{fail: true}

	seed(t, store, 1, "user_001", "knowledge", "I prefer dark mode", 0.6,
		[]string{"prefer", "dark", "mode"}, []float64{1, 0, 0})

	asm := newAssembler(t, store, provider, assembler.Config{})

	text, err := asm.BuildContext(context.Background(), "user_001", "dark mode", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "I prefer dark mode")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, assembler.EstimateTokens(""))
	assert.Equal(t, 2, assembler.EstimateTokens("abcd"))
	assert.Equal(t, 26, assembler.EstimateTokens(strings.Repeat("x", 100)))
}
