package tutor

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultVoice is the prebuilt voice used when none is configured.
const DefaultVoice = "Zephyr"

// fallbackName is used when the student name sanitises to nothing.
const fallbackName = "there"

// instructionsTemplate is the system prompt defining the tutor persona. The
// student's display name is interpolated as plain data.
const instructionsTemplate = `You are Vox, a friendly and patient study tutor having a live voice conversation with a student named %s.

Guidelines:
- Keep answers short and conversational; this is spoken dialogue, not an essay.
- Explain concepts step by step and check understanding before moving on.
- Ask one question at a time and wait for the student to answer.
- When the student is wrong, correct gently and explain why.
- Encourage the student and address them by name now and then.
- Stay on the study topic; politely steer the conversation back when it drifts.`

// BuildInstructions returns the persona system prompt with studentName
// interpolated. The name is treated strictly as display data: control
// characters are stripped and whitespace is collapsed so it cannot alter
// the prompt's structure.
func BuildInstructions(studentName string) string {
	return fmt.Sprintf(instructionsTemplate, SanitizeName(studentName))
}

// Greeting returns the opening transcript line seeded at session start.
func Greeting(studentName string) string {
	return fmt.Sprintf("Hi %s! I'm Vox, your study tutor. What would you like to work on today?", SanitizeName(studentName))
}

// SanitizeName strips control characters from a student name and collapses
// runs of whitespace to single spaces. An empty result falls back to a
// neutral form of address.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}
