// Package assembler builds token-budgeted context blocks from a user's
// profile facts, their ranked memories and the recent conversation.
//
// The budget is split across three tiers in priority order. Within a tier,
// whole items are packed until the next one would overflow the tier's
// allotment; partial items are never emitted, and an empty tier is omitted
// entirely.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/engram-ai/engram-go/pkg/classifier"
	"github.com/engram-ai/engram-go/pkg/retrieval"
	"github.com/engram-ai/engram-go/pkg/storage"
)

// Default token budget and its per-tier split.
const (
	DefaultTotalBudget    = 2048
	DefaultProfileBudget  = 256
	DefaultMemoriesBudget = 1280
	DefaultHistoryBudget  = 512
)

// profileImportanceFloor is the minimum importance for a personal or
// preference record to qualify as a profile fact.
const profileImportanceFloor = 0.7

// duplicateThreshold is the token-set Dice similarity above which a memory is
// treated as a near-duplicate of an already-included item and skipped.
const duplicateThreshold = 0.85

// Turn is one conversation turn of session history.
type Turn struct {
	Role    string
	Content string
}

// Config tunes the assembler's tier budgets.
type Config struct {
	// ProfileBudget, MemoriesBudget and HistoryBudget are per-tier token
	// allotments. Zero values take the documented defaults.
	ProfileBudget  int
	MemoriesBudget int
	HistoryBudget  int

	// TopK is how many memories to request from the retrieval engine.
	// Zero means 10.
	TopK int
}

// Assembler builds context blocks.
type Assembler struct {
	store  storage.Store
	engine *retrieval.Engine
	cfg    Config
}

// NewAssembler creates an assembler over store and engine.
func NewAssembler(store storage.Store, engine *retrieval.Engine, cfg Config) *Assembler {
	if cfg.ProfileBudget == 0 {
		cfg.ProfileBudget = DefaultProfileBudget
	}
	if cfg.MemoriesBudget == 0 {
		cfg.MemoriesBudget = DefaultMemoriesBudget
	}
	if cfg.HistoryBudget == 0 {
		cfg.HistoryBudget = DefaultHistoryBudget
	}
	if cfg.TopK == 0 {
		cfg.TopK = 10
	}
	return &Assembler{store: store, engine: engine, cfg: cfg}
}

// BuildContext assembles a context block for userID's query.
//
// Tiers in priority order: profile facts (personal and preference records
// with high importance, by importance descending), relevant memories (by
// retrieval score), recent conversation turns (most recent first, emitted in
// chronological order). A degraded retrieval result still produces a context.
func (a *Assembler) BuildContext(ctx context.Context, userID, query string, history []Turn) (string, error) {
	records, err := a.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	result, err := a.engine.Search(ctx, userID, query, a.cfg.TopK)
	if err != nil {
		return "", err
	}

	var sections []string
	var included []map[string]struct{}

	if section := a.profileSection(records, &included); section != "" {
		sections = append(sections, section)
	}
	if section := a.memoriesSection(result.Matches, &included); section != "" {
		sections = append(sections, section)
	}
	if section := a.historySection(history); section != "" {
		sections = append(sections, section)
	}

	return strings.Join(sections, "\n\n"), nil
}

// profileSection packs high-importance personal and preference facts.
func (a *Assembler) profileSection(records []*storage.Record, included *[]map[string]struct{}) string {
	var facts []*storage.Record
	for _, record := range records {
		if record.Importance < profileImportanceFloor {
			continue
		}
		t := classifier.Category(record.Type)
		if t != classifier.CategoryPersonal && t != classifier.CategoryPreference {
			continue
		}
		facts = append(facts, record)
	}

	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Importance > facts[j].Importance
	})

	var lines []string
	used := 0
	for _, record := range facts {
		line := "- " + itemText(record)
		cost := EstimateTokens(line)
		if used+cost > a.cfg.ProfileBudget {
			break
		}
		tokens := tokenSet(line)
		if isDuplicate(tokens, *included) {
			continue
		}
		lines = append(lines, line)
		*included = append(*included, tokens)
		used += cost
	}

	if len(lines) == 0 {
		return ""
	}
	return "## User Profile\n" + strings.Join(lines, "\n")
}

// memoriesSection packs ranked memories, skipping near-duplicates of
// anything already in the context.
func (a *Assembler) memoriesSection(matches []retrieval.Match, included *[]map[string]struct{}) string {
	var lines []string
	used := 0
	for _, m := range matches {
		line := "- " + itemText(m.Record)
		cost := EstimateTokens(line)
		if used+cost > a.cfg.MemoriesBudget {
			break
		}
		tokens := tokenSet(line)
		if isDuplicate(tokens, *included) {
			continue
		}
		lines = append(lines, line)
		*included = append(*included, tokens)
		used += cost
	}

	if len(lines) == 0 {
		return ""
	}
	return "## Relevant Memories\n" + strings.Join(lines, "\n")
}

// historySection packs recent turns, newest prioritized, emitted oldest
// first so the conversation reads top to bottom.
func (a *Assembler) historySection(history []Turn) string {
	var lines []string
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		line := fmt.Sprintf("%s: %s", turn.Role, turn.Content)
		cost := EstimateTokens(line)
		if used+cost > a.cfg.HistoryBudget {
			break
		}
		lines = append(lines, line)
		used += cost
	}

	if len(lines) == 0 {
		return ""
	}

	// Reverse back into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return "## Recent Conversation\n" + strings.Join(lines, "\n")
}

// itemText prefers the record's summary when present.
func itemText(record *storage.Record) string {
	if record.Summary != "" {
		return record.Summary
	}
	return record.Content
}

// isDuplicate reports whether tokens are a near-duplicate of any
// already-included item.
func isDuplicate(tokens map[string]struct{}, included []map[string]struct{}) bool {
	for _, prev := range included {
		if diceSimilarity(tokens, prev) >= duplicateThreshold {
			return true
		}
	}
	return false
}
