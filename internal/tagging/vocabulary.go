package tagging

// VocabularyVersion identifies the label set below. Bump it whenever the list
// changes so stored auto_tags can be traced back to the vocabulary that
// produced them.
const VocabularyVersion = "v1"

// DefaultThreshold is the similarity cutoff used when the config leaves it
// unset.
const DefaultThreshold = 0.3

// Vocabulary is the closed set of candidate labels submitted to the oracle.
var Vocabulary = []string{
	// People & composition
	"single person", "two people", "group photo", "large group", "crowd",
	"audience", "people posing", "candid photo", "selfie", "portrait",

	// Stage & structure
	"speaker on stage", "person at podium", "panel discussion",
	"presentation slide", "microphone on stage", "stage performance",
	"award presentation", "trophy presentation",

	// Activities
	"speech", "performance", "dance performance", "music performance",
	"live concert", "question and answer session", "celebration",
	"inauguration ceremony", "closing ceremony",

	// Environment
	"indoor event", "outdoor event", "auditorium", "conference hall",
	"classroom", "open ground", "decorated stage", "banner backdrop",

	// Time & lighting
	"daytime event", "night event", "low light", "bright lighting",
	"spotlight on stage", "natural lighting",

	// Camera / shot
	"wide angle shot", "close up shot", "medium shot", "front view",

	// Mood
	"formal event", "informal gathering", "celebratory mood",
	"energetic atmosphere", "crowded atmosphere",

	// Event types
	"college event", "technical event", "cultural event", "seminar",
	"workshop", "guest lecture", "convocation ceremony",
}
