// Package ai wraps the generative-language API behind the forum's helper
// features: tip generation for a new question, similar-question lookup, and
// thread summarization. Every call is bounded by a timeout and failures
// degrade to "no suggestion" instead of failing the enclosing request.
package ai

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sujalbistaa/askhub/internal/models"
)

const (
	defaultModel = "gpt-4o-mini"

	// requestTimeout bounds every helper call so a stuck upstream cannot
	// hold a handler goroutine.
	requestTimeout = 10 * time.Second

	// similarCandidateLimit caps how many existing posts are offered to the
	// model for similarity ranking.
	similarCandidateLimit = 10

	// similarResultLimit caps how many matches are returned; the prompt
	// asks for the top 3, so anything extra the model lists is discarded.
	similarResultLimit = 3
)

// Assistant is the client for all AI helper calls. A zero-value or
// unconfigured Assistant is valid and every method reports no result.
type Assistant struct {
	client *openai.Client
	model  string
}

// NewFromEnv builds an Assistant from OPENAI_API_KEY and OPENAI_MODEL.
// A missing key disables the assistant rather than failing startup.
func NewFromEnv() *Assistant {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("OPENAI_API_KEY not set, AI helpers disabled")
		return &Assistant{}
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	log.Printf("AI helpers enabled (model=%s)", model)
	return &Assistant{client: openai.NewClient(apiKey), model: model}
}

// Enabled reports whether the assistant has a configured API client.
func (a *Assistant) Enabled() bool {
	return a != nil && a.client != nil
}

// Suggestions returns up to three brief tips for answering the question, or
// an empty string when the assistant is disabled or the call fails.
func (a *Assistant) Suggestions(ctx context.Context, title, content string) string {
	if !a.Enabled() {
		return ""
	}

	prompt := fmt.Sprintf(`Given this technical question:
Title: %q
Content: %q

Provide 3 brief, helpful suggestions or tips to help answer this question. Keep each suggestion to 1-2 sentences. Format as a simple list.`, title, content)

	out, err := a.complete(ctx, prompt)
	if err != nil {
		log.Printf("ai: suggestions failed: %v", err)
		return ""
	}
	return out
}

// SimilarQuestions asks the model to pick up to three candidates similar to
// the draft question. Failures and unparseable answers return an empty
// slice.
func (a *Assistant) SimilarQuestions(ctx context.Context, title, content string, candidates []models.Post) []models.Post {
	if !a.Enabled() || len(candidates) == 0 {
		return nil
	}
	if len(candidates) > similarCandidateLimit {
		candidates = candidates[:similarCandidateLimit]
	}

	out, err := a.complete(ctx, similarPrompt(title, content, candidates))
	if err != nil {
		log.Printf("ai: similar-question lookup failed: %v", err)
		return nil
	}

	var matches []models.Post
	for _, idx := range parseSimilarIndices(out, len(candidates)) {
		matches = append(matches, candidates[idx])
	}
	return matches
}

// SummarizeThread produces a 2-3 sentence summary of a discussion. Unlike
// the other helpers it returns its error: the handler distinguishes "no
// replies" and upstream failure from an empty-but-successful answer.
func (a *Assistant) SummarizeThread(ctx context.Context, post models.Post, replies []models.Reply) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("assistant not configured")
	}
	if len(replies) == 0 {
		return "", fmt.Errorf("no replies to summarize")
	}

	var sb strings.Builder
	for i, r := range replies {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Reply %d by %s: %s", i+1, r.Author, r.Content)
	}

	prompt := fmt.Sprintf(`Summarize this discussion thread in 2-3 sentences:

Question: %s
Details: %s

Replies:
%s

Provide a concise summary of the main points and solutions discussed.`, post.Title, post.Content, sb.String())

	return a.complete(ctx, prompt)
}

func (a *Assistant) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpful assistant for a technical discussion forum."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func similarPrompt(title, content string, candidates []models.Post) string {
	var list strings.Builder
	for i, p := range candidates {
		fmt.Fprintf(&list, "%d. %s\n", i+1, p.Title)
	}

	return fmt.Sprintf(`Given this new question:
Title: %q
Content: %q

And these existing questions:
%s
Find and return ONLY the numbers (1-%d) of the top 3 most similar questions, separated by commas. If no similar questions exist, return "none". Reply with ONLY the numbers or "none", nothing else.`,
		title, content, list.String(), len(candidates))
}

// parseSimilarIndices turns the model's "1, 3, 7" answer into zero-based
// indices, dropping anything out of range or non-numeric. "none" yields nil.
func parseSimilarIndices(answer string, n int) []int {
	answer = strings.TrimSpace(answer)
	if strings.EqualFold(answer, "none") {
		return nil
	}

	var out []int
	for _, part := range strings.Split(answer, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		idx := v - 1
		if idx >= 0 && idx < n {
			out = append(out, idx)
		}
		if len(out) == similarResultLimit {
			break
		}
	}
	return out
}
