package llm

import (
	"fmt"
	"strings"
)

// CorrelatePrompt asks the classifier to correlate heterogeneous behavioral
// signals into proposed facts plus reinforce/downgrade suggestions for
// existing facts. Filled with: signal bundle, known fact list, blocked list.
const CorrelatePrompt = `You are a personal-context inference system. You observe low-level
behavioral signals from a single user and propose durable facts about them.

Signals observed recently:
%s

Facts already known (do NOT re-propose these):
%s

Contents the user has rejected (do NOT propose these or close rephrasings):
%s

Propose new facts only when multiple signals support them. For each:
- content: a clear, concise statement about the user
- category: one of "core", "expertise", "preference", "context", "focus"
- confidence: 0.0-1.0, how strongly the signals support it
- signals: short strings naming the supporting signals
- reasoning: one sentence

Also suggest lifecycle actions for existing facts:
- reinforce: facts the signals support, with the fact id and a reason
- downgrade: facts the signals undermine, with the fact id and a reason

Respond ONLY with JSON, no markdown:
{"candidates":[{"content":"...","category":"...","confidence":0.6,"signals":["..."],"reasoning":"..."}],"reinforce":[{"factId":"...","reason":"..."}],"downgrade":[{"factId":"...","reason":"..."}]}

If nothing can be inferred, respond with {"candidates":[],"reinforce":[],"downgrade":[]}.`

// CategorizePrompt asks the classifier to label an unknown signal grouping
// key (e.g. a site the user keeps visiting) with a semantic label and an
// identity category.
const CategorizePrompt = `Classify this source a user repeatedly interacts with.

Source key: %s
Sample activity:
%s

Determine:
- label: a short human-readable topic name for the source
- category: "expertise" if the activity shows a skill or domain knowledge,
  "focus" if it shows what the user is currently working on,
  otherwise "context"

Respond ONLY with JSON, no markdown:
{"type":"source","name":"%s","label":"...","category":"..."}`

// CorrelatePromptFor fills CorrelatePrompt with the signal bundle, known
// fact contents, and blocked contents.
func CorrelatePromptFor(signalBundle string, factContents, blockedContents []string) string {
	return fmt.Sprintf(CorrelatePrompt, orNone(signalBundle), orNone(strings.Join(factContents, "\n")), orNone(strings.Join(blockedContents, "\n")))
}

// CategorizePromptFor fills CategorizePrompt for one grouping key.
func CategorizePromptFor(key string, samples []string) string {
	return fmt.Sprintf(CategorizePrompt, key, orNone(strings.Join(samples, "\n")), key)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
