package workflow

import (
	"regexp"
	"strings"
)

// Where an intent label came from.
const (
	SourceModel = "model"
	SourceRules = "rules"
)

// Intent is what the user wants from an utterance.
type Intent string

// Intents.
const (
	IntentDatabaseQuery       Intent = "database_query"
	IntentResourceMatching    Intent = "resource_matching"
	IntentGeneralConversation Intent = "general_conversation"
	IntentGreeting            Intent = "greeting"
	IntentHelpRequest         Intent = "help_request"
	IntentUnknown             Intent = "unknown"
)

// RequiresData reports whether answering needs the database.
func (i Intent) RequiresData() bool {
	return i == IntentDatabaseQuery || i == IntentResourceMatching
}

// ParseIntent maps a model label such as "DATABASE_QUERY" to an Intent.
func ParseIntent(label string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(label))) {
	case IntentDatabaseQuery:
		return IntentDatabaseQuery, true
	case IntentResourceMatching:
		return IntentResourceMatching, true
	case IntentGeneralConversation:
		return IntentGeneralConversation, true
	case IntentGreeting:
		return IntentGreeting, true
	case IntentHelpRequest:
		return IntentHelpRequest, true
	case IntentUnknown:
		return IntentUnknown, true
	}
	return "", false
}

// cannedReplies answer the intents that need no data.
var cannedReplies = map[Intent]string{
	IntentGreeting: "Hello! I'm ResourceWise. I can help you find employees, search by skills, " +
		"check project allocations and put together teams for new projects. How can I help today?",
	IntentHelpRequest: "You can ask me to find employees by skill or designation, check who is available, " +
		"look up project allocations, or staff a project, for example \"I need 2 React developers and a TL " +
		"for a 6 month project starting next month\".",
	IntentGeneralConversation: "I'm here to help with resource allocation and project staffing. " +
		"Let me know what information you need.",
	IntentUnknown: "I'm not sure how to help with that. I specialise in employee search, skills, " +
		"project allocations and team matching. Could you rephrase your question?",
}

// CannedReply returns the fixed answer for intents that need no data.
func CannedReply(i Intent) string {
	if r, ok := cannedReplies[i]; ok {
		return r
	}
	return cannedReplies[IntentUnknown]
}

var (
	greetingPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|greetings|good (morning|afternoon|evening))\b`)
	helpPattern     = regexp.MustCompile(`(?i)\b(help|what can you do|how do i use|your capabilities|what do you do)\b`)
	matchingPattern = regexp.MustCompile(`(?i)\b(build|form|assemble|put together|staff|find)\s+(a|the|my|our)?\s*team\b|\bstaffing\b|\bstaff (a|the|my|our|this) project\b|\bteam (for|to)\b|\b(need|needs|require|requires)\b.*\bfor (a|the|my|our|this|an?) .*project\b`)
	dataPattern     = regexp.MustCompile(`(?i)\b(find|search|show|list|get|who|which|what|where|how many|count|employees?|projects?|skills?|allocations?|available|designations?)\b`)
	smallTalk       = regexp.MustCompile(`(?i)^\s*(thanks|thank you|ok|okay|cool|great|bye|goodbye|nice)\b`)
)

// RuleIntent classifies text with keyword rules. It is the fallback when no
// model answer is available.
func RuleIntent(text string) Intent {
	switch {
	case matchingPattern.MatchString(text):
		return IntentResourceMatching
	case greetingPattern.MatchString(text) && len(strings.Fields(text)) <= 4:
		return IntentGreeting
	case helpPattern.MatchString(text):
		return IntentHelpRequest
	case dataPattern.MatchString(text):
		return IntentDatabaseQuery
	case smallTalk.MatchString(text):
		return IntentGeneralConversation
	}
	return IntentUnknown
}

// referencePattern spots follow-ups that lean on earlier turns.
var referencePattern = regexp.MustCompile(`(?i)\b(them|those|these|they|their|it|its|his|her|also|too|as well|additionally|what about|how about|and|same|who among|which ones|the ones)\b`)

// NeedsContext reports whether text refers back to the conversation.
func NeedsContext(text string) bool {
	return referencePattern.MatchString(text)
}
