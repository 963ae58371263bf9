package extraction

import (
	_ "embed"

	"github.com/quotient-labs/quotient/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "stages.extract.system"
	UserPromptKey   = "stages.extract.user"
)

// RegisterPrompts registers the extraction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Item extraction system prompt",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Item extraction user prompt template - asks for a JSON array of items",
	})
}

type promptData struct {
	Text string
}

// prompt renders the system and user prompts, preferring overrides from
// the resolver.
func (e *Engine) prompt(text string) (system, user string, err error) {
	data := promptData{Text: text}
	if e.prompts != nil {
		if p, rerr := e.prompts.Resolve(SystemPromptKey); rerr == nil {
			system = p.Text
		}
		if user, err = e.prompts.Render(UserPromptKey, data); err == nil {
			if system == "" {
				system = systemPrompt
			}
			return system, user, nil
		}
		e.logger.Warn("prompt override failed, using embedded default", "key", UserPromptKey, "error", err)
	}
	user, err = prompts.Render(UserPromptKey, userPromptTmpl, data)
	return systemPrompt, user, err
}
