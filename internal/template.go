package internal

import "strings"

// ChatTemplate holds the formatting rules and stop sequences for a model
// family. The backend owns real tokenization; the template only renders the
// turn sequence into the textual form the backend expects.
type ChatTemplate struct {
	Name     string          `yaml:"name"`
	Prefixes map[Role]string `yaml:"prefixes"`
	Suffix   string          `yaml:"suffix"`
	Stop     []string        `yaml:"stop"`
	// Overhead is the per-turn token cost of the template markup itself,
	// added on top of the content estimate.
	Overhead int `yaml:"overhead"`
}

// DefaultTemplate returns the vicuna-style template used by VILA checkpoints.
func DefaultTemplate() *ChatTemplate {
	return &ChatTemplate{
		Name: "vicuna",
		Prefixes: map[Role]string{
			RoleSystem:       "",
			RoleUser:         "USER: ",
			RoleBot:          "ASSISTANT: ",
			RoleToolResponse: "TOOL: ",
		},
		Suffix:   "\n",
		Stop:     []string{"</s>"},
		Overhead: 5,
	}
}

// Render formats a turn for inclusion in the model input.
func (t *ChatTemplate) Render(turn Turn) string {
	return t.Prefixes[turn.Role] + turn.Content + t.Suffix
}

// RenderAll formats a full window of turns, oldest first.
func (t *ChatTemplate) RenderAll(turns []Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(t.Render(turn))
	}
	return b.String()
}
