package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// describeMemoryLimit caps how many recent memories feed a session
// description, to keep the prompt bounded.
const describeMemoryLimit = 20

// SummaryService is the text-summarization collaborator. ProcessText is the
// primary enrichment artifact; DescribeSession derives a short session
// description from its memories.
type SummaryService interface {
	ProcessText(ctx context.Context, text string) (string, error)
	DescribeSession(ctx context.Context, memories []string) (string, error)
}

// Summarizer summarizes captured text through the Anthropic API.
type Summarizer struct {
	client anthropic.Client
	model  string
}

// NewSummarizer creates a new summarizer.
func NewSummarizer(apiKey, model string) *Summarizer {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Summarizer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

const processTextPrompt = `You are summarizing content for a knowledge management system. Create a dense, information-rich summary optimized for future retrieval and context reconstruction.

CRITICAL REQUIREMENTS:
- Preserve ALL technical specifics: APIs, libraries, versions, commands, file paths
- Keep code snippets verbatim (use ` + "```" + `language blocks)
- Maintain exact terminology and proper nouns
- Flag decisions, problems, and solutions explicitly
- Structure for scannability

FORMAT:
Use natural paragraphs with these elements when present:
- **Topic/Title** at start if identifiable
- Technical details inline with context
- Code blocks preserved exactly
- Action items with clear subjects ("Need to...", "Should...")
- Key decisions/conclusions

TONE: Dense technical prose, no fluff, no meta-commentary like "this text discusses..."

INPUT TEXT:
%s

SUMMARY:`

// ProcessText processes and summarizes captured text. This is the primary
// enrichment artifact: on failure the whole capture fails.
func (s *Summarizer) ProcessText(ctx context.Context, text string) (string, error) {
	result, err := s.complete(ctx, fmt.Sprintf(processTextPrompt, text), 500)
	if err != nil {
		return "", fmt.Errorf("failed to process text: %w", err)
	}
	return result, nil
}

const describeSessionPrompt = `You are analyzing a user's session memories to create a concise session description.

Based on the memories below, generate a 1-2 sentence description that captures the main theme or purpose of this session.

Be specific and mention key topics, technologies, or goals if clear.

MEMORIES:
%s

DESCRIPTION (1-2 sentences only):`

// DescribeSession generates a 1-2 sentence description of a session from its
// processed memory texts, most recent first.
func (s *Summarizer) DescribeSession(ctx context.Context, memories []string) (string, error) {
	if len(memories) == 0 {
		return "No memories yet in this session.", nil
	}
	if len(memories) > describeMemoryLimit {
		memories = memories[:describeMemoryLimit]
	}

	prompt := fmt.Sprintf(describeSessionPrompt, strings.Join(memories, "\n\n"))
	result, err := s.complete(ctx, prompt, 100)
	if err != nil {
		return "", fmt.Errorf("failed to describe session: %w", err)
	}
	return result, nil
}

const generateTagsPrompt = `Extract 2-5 relevant tags from this text for categorization.

Tags should be:
- Single words or short phrases (1-2 words)
- Lowercase
- Technical terms, technologies, concepts, or topics
- No generic words like "text", "information", etc.

Return ONLY the tags as a comma-separated list, nothing else.

TEXT:
%s

TAGS:`

// GenerateTags extracts up to five categorization tags for a memory.
// Tagging is non-critical: any failure returns an empty list.
func (s *Summarizer) GenerateTags(ctx context.Context, text string) []string {
	if len(text) > 500 {
		text = text[:500]
	}

	raw, err := s.complete(ctx, fmt.Sprintf(generateTagsPrompt, text), 50)
	if err != nil {
		slog.Warn("failed to generate tags", "error", err)
		return nil
	}

	return ParseTags(raw)
}

// ParseTags normalizes a comma-separated tag response into at most five
// lowercase tags.
func ParseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		tag = strings.ReplaceAll(tag, "#", "")
		if len(tag) > 1 {
			tags = append(tags, tag)
		}
		if len(tags) == 5 {
			break
		}
	}
	return tags
}

func (s *Summarizer) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(text), nil
}

var _ SummaryService = (*Summarizer)(nil)
