package providers

import "strings"

// Instruction text shared by the text adapters. Each adapter decides how to frame it
// for its own wire protocol.
const (
	ChatSystemPrompt = "You are a helpful automotive assistant. Answer clearly and stay on the topic of vehicles and vehicle design."

	NarrateSystemPrompt = "You are an automotive designer and storyteller. Write a vivid, technically grounded description of the vehicle concept you are given, covering its design language, technology and materials."

	EnhanceSystemPrompt = "You rewrite prompts for photorealistic image generation. Keep the core concept and add visual detail: lighting, materials, color, camera and composition. Reply with the rewritten prompt only."
)

// SystemWithContext appends optional context to a system instruction
func SystemWithContext(system, context string) string {
	if strings.TrimSpace(context) == "" {
		return system
	}
	return system + "\n\nContext: " + context
}

// LastMessages keeps at most n trailing messages
func LastMessages(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
