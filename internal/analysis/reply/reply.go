// Package reply produces the deterministic assistant replies used when no
// live model is reachable.
package reply

import "strings"

// Kind names one of the fixed simulated replies.
type Kind string

const (
	Greeting   Kind = "greeting"
	WellBeing  Kind = "well_being"
	Help       Kind = "help"
	Capability Kind = "capability"
	Generic    Kind = "generic"
)

// Fixed reply texts.
const (
	GreetingText   = "Здраво! Ја сам Нешко _ Qwen асистент. Како могу да вам помогнем данас?"
	WellBeingText  = "Одлично сам, хвала на питању! Ту сам да вам помогнем са било којим питањима која имате."
	HelpText       = "Ту сам да помогнем! Можете ме питати о различитим темама, и учинићу све што могу да пружим корисне одговоре. Шта бисте желели да знате?"
	CapabilityText = "Ја сам AI асистент на бази Qwen. Могу да помогнем са одговорима на питања, пружим информације, помогнем са решавањем проблема и водим разговоре о широком спектру тема. Шта бисте желели да истражимо?"
	GenericText    = "Хвала на поруци! Ја сам Нешко _ Qwen асистент. Иако тренутно радим у демо режиму, ту сам да разговарам са вама. Слободно ме питајте било шта!"

	// ApologyText replaces an upstream completion that carried no text.
	ApologyText = "Извините, нисам успео да генеришем одговор."
)

var texts = map[Kind]string{
	Greeting:   GreetingText,
	WellBeing:  WellBeingText,
	Help:       HelpText,
	Capability: CapabilityText,
	Generic:    GenericText,
}

var (
	greetingKeywords  = []string{"здраво", "hello", "hi", "ћао"}
	wellBeingKeywords = []string{"како си", "how are you"}
	helpKeywords      = []string{"помоћ", "help", "помози"}
	// capability needs one topic word and one ability word.
	capabilityTopics    = []string{"шта", "what"}
	capabilityAbilities = []string{"можеш", "do", "радиш"}
)

// Classify picks the rule for a user message. Keywords are matched as
// substrings of the lowercased text; the first matching rule wins.
func Classify(userMessage string) Kind {
	normalized := strings.ToLower(userMessage)

	switch {
	case containsAny(normalized, greetingKeywords):
		return Greeting
	case containsAny(normalized, wellBeingKeywords):
		return WellBeing
	case containsAny(normalized, helpKeywords):
		return Help
	case containsAny(normalized, capabilityTopics) && containsAny(normalized, capabilityAbilities):
		return Capability
	default:
		return Generic
	}
}

// Text returns the fixed reply for kind.
func Text(kind Kind) string {
	if text, ok := texts[kind]; ok {
		return text
	}
	return GenericText
}

// Simulate returns the fixed reply for a user message.
func Simulate(userMessage string) string {
	return Text(Classify(userMessage))
}

// All returns every reply text the engine can produce.
func All() []string {
	return []string{GreetingText, WellBeingText, HelpText, CapabilityText, GenericText}
}

func containsAny(text string, keywords []string) bool {
	for _, word := range keywords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
