// Package chat relays conversations to the Gemini generation API under
// one of two fixed personas, rotating across the configured key pool.
package chat

// Persona selectors recognized in chat requests. Anything else falls
// back to the muse persona.
const (
	PersonaMuse = "muse"
	PersonaSage = "sage"
)

const (
	defaultMuseModel = "gemini-2.0-flash"
	defaultSageModel = "gemini-2.5-flash"

	museTemperature float32 = 0.9
	sageTemperature float32 = 0.7

	defaultMusePrompt = "You are Muse, a warm and playful conversation partner. " +
		"You riff on the user's ideas, offer unexpected angles, and keep the " +
		"tone light without being shallow. Answer in the language the user " +
		"writes in, and keep responses conversational rather than lecture-like."

	defaultSagePrompt = "You are Sage, a calm and precise assistant. " +
		"You answer directly, structure longer explanations clearly, admit " +
		"uncertainty instead of guessing, and never pad answers with filler. " +
		"Answer in the language the user writes in."
)

// Persona is a named chat behavior: a model, a system prompt and a
// sampling temperature.
type Persona struct {
	Name        string
	Model       string
	Prompt      string
	Temperature float32
}

// Personas holds the two configured personas.
type Personas struct {
	muse Persona
	sage Persona
}

// NewPersonas builds the persona table. Empty arguments keep the built-in
// defaults; non-empty ones override prompt or model per persona.
func NewPersonas(musePrompt, museModel, sagePrompt, sageModel string) *Personas {
	if musePrompt == "" {
		musePrompt = defaultMusePrompt
	}
	if museModel == "" {
		museModel = defaultMuseModel
	}
	if sagePrompt == "" {
		sagePrompt = defaultSagePrompt
	}
	if sageModel == "" {
		sageModel = defaultSageModel
	}
	return &Personas{
		muse: Persona{Name: PersonaMuse, Model: museModel, Prompt: musePrompt, Temperature: museTemperature},
		sage: Persona{Name: PersonaSage, Model: sageModel, Prompt: sagePrompt, Temperature: sageTemperature},
	}
}

// Resolve maps a request's model selector to a persona. Unrecognized
// selectors, including the empty string, resolve to muse.
func (p *Personas) Resolve(selector string) Persona {
	if selector == PersonaSage {
		return p.sage
	}
	return p.muse
}

// Models lists the model names behind both personas, for the health
// endpoint.
func (p *Personas) Models() []string {
	return []string{p.muse.Model, p.sage.Model}
}
