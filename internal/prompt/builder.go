// Package prompt assembles the chat message sequences sent to the model.
package prompt

import (
	"github.com/suPer8Hu/yt-assistant/internal/ai"
)

// Action names one of the fixed analysis tasks.
type Action string

const (
	ActionSummarize     Action = "summarize"
	ActionKeyPoints     Action = "key-points"
	ActionExplain       Action = "explain"
	ActionRelatedTopics Action = "related-topics"
)

var actionInstructions = map[Action]string{
	ActionSummarize:     "Provide a brief summary of the video content in about 3-4 sentences.",
	ActionKeyPoints:     "List the 3-5 main key points or takeaways from the video.",
	ActionExplain:       "Provide a detailed explanation of the main topic discussed in the video.",
	ActionRelatedTopics: "Suggest 3-5 related topics that viewers might want to explore further based on this video's content.",
}

const suggestTask = "Generate 3-5 suggested questions about this video content."

// Instructions are the system messages that open each kind of prompt.
type Instructions struct {
	Ask        string
	Analysis   string
	Suggestion string
}

var DefaultInstructions = Instructions{
	Ask: "You are a youtube question answerer assitant that answers questions based on the provided video transcript. " +
		"Keep the answer short and concise in english. Don't mention the keyword 'transcript' while answering the question. " +
		"The answer should be in first person. If the question is not related to the video, say respond with " +
		"'I'm sorry, I can't answer that question. Its out of context.'",
	Analysis: "You are a youtube video analysis assistant. Provide concise and informative responses based on the video transcript.",
	Suggestion: "You are a youtube video analysis assistant. Generate 3-5 short, precise, and specific questions based on the video transcript. " +
		"Each question should be no longer than 10 words and should encourage viewers to engage more deeply with the video content. " +
		"The questions should only be in english.",
}

// InvalidActionError is returned for an action outside the fixed set.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string { return "Invalid action" }

// Builder is stateless apart from its instructions and safe for concurrent use.
type Builder struct {
	instructions Instructions
}

// NewBuilder returns a Builder; empty instructions fall back to the defaults.
func NewBuilder(in Instructions) *Builder {
	if in.Ask == "" {
		in.Ask = DefaultInstructions.Ask
	}
	if in.Analysis == "" {
		in.Analysis = DefaultInstructions.Analysis
	}
	if in.Suggestion == "" {
		in.Suggestion = DefaultInstructions.Suggestion
	}
	return &Builder{instructions: in}
}

// Ask returns [system, transcript, ...history, question]. History messages
// are copied in order without validation.
func (b *Builder) Ask(transcript string, history []ai.Message, question string) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+3)
	msgs = append(msgs,
		ai.Message{Role: ai.RoleSystem, Content: b.instructions.Ask},
		ai.Message{Role: ai.RoleUser, Content: "Transcript: " + transcript},
	)
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: question})
	return msgs
}

func (b *Builder) Action(transcript string, action string) ([]ai.Message, error) {
	instruction, ok := actionInstructions[Action(action)]
	if !ok {
		return nil, &InvalidActionError{Action: action}
	}
	return b.task(b.instructions.Analysis, transcript, instruction), nil
}

func (b *Builder) Suggest(transcript string) []ai.Message {
	return b.task(b.instructions.Suggestion, transcript, suggestTask)
}

func (b *Builder) task(system, transcript, task string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: "Transcript: " + transcript + "\n\nTask: " + task},
	}
}
