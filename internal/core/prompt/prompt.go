package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Placeholder marks where chunk text is substituted into a prompt pattern.
const Placeholder = "{text}"

const defaultTargetWords = 200

var (
	ErrUnknownTemplate = errors.New("unknown summary template")
	ErrInvalidTemplate = errors.New("prompt pattern has no {text} placeholder")
)

// Template is a named prompt pattern. Patterns must contain the Placeholder;
// TargetWords bounds the length of the final merged summary.
type Template struct {
	Key             string
	Name            string
	Description     string
	Pattern         string
	TargetWords     int
	ExtractInsights bool
}

// Render substitutes chunk text into the template pattern.
func (t Template) Render(chunkText string) string {
	return strings.ReplaceAll(t.Pattern, Placeholder, chunkText)
}

// Registry holds the templates loaded at startup. Read-only after creation.
type Registry struct {
	templates map[string]Template
}

func NewRegistry(templates []Template) (*Registry, error) {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		if !strings.Contains(t.Pattern, Placeholder) {
			return nil, fmt.Errorf("template %q: %w", t.Key, ErrInvalidTemplate)
		}
		if t.TargetWords <= 0 {
			t.TargetWords = defaultTargetWords
		}
		m[t.Key] = t
	}
	return &Registry{templates: m}, nil
}

// Get returns the template registered under key.
func (r *Registry) Get(key string) (Template, error) {
	t, ok := r.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	return t, nil
}

// Resolve returns the template for key, with its pattern replaced by
// customPrompt when one is supplied. A custom prompt must still carry the
// Placeholder so chunk text has somewhere to go.
func (r *Registry) Resolve(key, customPrompt string) (Template, error) {
	t, err := r.Get(key)
	if err != nil {
		return Template{}, err
	}
	if custom := strings.TrimSpace(customPrompt); custom != "" {
		if !strings.Contains(custom, Placeholder) {
			return Template{}, ErrInvalidTemplate
		}
		t.Pattern = custom
	}
	return t, nil
}

// List returns all templates sorted by key.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// RenderReduce builds the merge prompt for the reduce phase: the partial
// summaries are concatenated in chunk order and compressed to the template's
// target length in one additional call.
func RenderReduce(t Template, partials []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Combine the following partial summaries into one coherent summary of at most %d words. ", t.TargetWords)
	b.WriteString("Preserve the most important facts and keep the original order of topics.")
	if t.ExtractInsights {
		b.WriteString(" End with 3-5 key insights as bullet points, one per line.")
	}
	b.WriteString("\n\n")
	b.WriteString(strings.Join(partials, "\n\n"))
	return b.String()
}

// Defaults returns the built-in template set used when the configuration does
// not declare any.
func Defaults() []Template {
	return []Template{
		{
			Key:         "general",
			Name:        "General Summary",
			Description: "Balanced summary for any document type",
			Pattern: "Summarize the following text in clear, concise prose. " +
				"Focus on the main points and conclusions:\n\n{text}\n\nSummary:",
			TargetWords:     200,
			ExtractInsights: true,
		},
		{
			Key:         "customer_feedback",
			Name:        "Customer Feedback Analysis",
			Description: "Sentiment and recurring themes in customer feedback",
			Pattern: "Analyze the following customer feedback. Summarize the overall sentiment, " +
				"the most frequent complaints and the most praised aspects:\n\n{text}\n\nAnalysis:",
			TargetWords:     200,
			ExtractInsights: true,
		},
		{
			Key:         "contract_analysis",
			Name:        "Contract Analysis",
			Description: "Key obligations, terms and risks in a contract",
			Pattern: "Review the following contract text. Summarize the parties, key obligations, " +
				"payment terms, termination clauses and notable risks:\n\n{text}\n\nReview:",
			TargetWords:     250,
			ExtractInsights: true,
		},
	}
}
