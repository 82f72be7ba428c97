// Package nlu turns a raw utterance into the list of tasks the assistant
// should run.
package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"kashi/internal/llm"
	"kashi/pkg/task"
)

var ErrClassify = errors.New("classify utterance")

const DefaultAttempts = 2

const systemPrompt = `
You are a very accurate decision-making model. You decide what kind of query is given to you.
Do NOT answer the query. Output ONLY a comma separated list of tasks.

TASKS:
- "general <query>"          conversational question answerable without live data,
                               including time/date questions and incomplete questions ("who is he?")
- "realtime <query>"         ONLY when the question needs up-to-date data: news, weather, scores, prices
- "open <app or website>"    one item per application
- "close <app>"              one item per application
- "play <song>"              one item per song
- "generate image <prompt>"  one item per image
- "reminder <datetime message>"
- "remember <fact>"
- "forget <fact>"
- "set preference <key> = <value>"
- "system <mute|unmute|volume up|volume down>"
- "content <topic>"          write an application, code, email or other text
- "google search <topic>"
- "youtube search <topic>"
- "analyze image <path> <optional question>"
- "analyze file <path> <optional question>"
- "exit"                     the user says goodbye

RULES:
1. Multiple requests become multiple tasks: "open facebook, telegram and close whatsapp"
   -> "open facebook, open telegram, close whatsapp".
2. Put the user's actual words in place of <query>. Never output the literal "(query)".
3. If unsure, or the request is not listed above, use "general <query>".
`

var examples = []llm.Turn{
	{Role: llm.RoleUser, Content: "how are you?"},
	{Role: llm.RoleAssistant, Content: "general how are you?"},
	{Role: llm.RoleUser, Content: "open chrome and tell me about mahatma gandhi."},
	{Role: llm.RoleAssistant, Content: "open chrome, general tell me about mahatma gandhi."},
	{Role: llm.RoleUser, Content: "open chrome and firefox"},
	{Role: llm.RoleAssistant, Content: "open chrome, open firefox"},
	{Role: llm.RoleUser, Content: "what is today's date and by the way remind me that I have a dancing performance on 5th aug at 11pm"},
	{Role: llm.RoleAssistant, Content: "general what is today's date, reminder 11:00pm 5th aug dancing performance"},
	{Role: llm.RoleUser, Content: "analyze this image /home/me/screenshot.png what text do you see?"},
	{Role: llm.RoleAssistant, Content: "analyze image /home/me/screenshot.png what text do you see?"},
	{Role: llm.RoleUser, Content: "what's the weather in delhi right now and generate an image of a lion"},
	{Role: llm.RoleAssistant, Content: "realtime what's the weather in delhi right now, generate image a lion"},
	{Role: llm.RoleUser, Content: "bye kashi."},
	{Role: llm.RoleAssistant, Content: "exit"},
}

// Classifier asks the decision model to split an utterance into tasks.
type Classifier struct {
	gen      llm.Generator
	attempts int
}

func NewClassifier(gen llm.Generator, attempts int) *Classifier {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Classifier{gen: gen, attempts: attempts}
}

// Classify returns the tasks found in utterance, in model order. Unknown
// items are dropped, so the result may be empty. When the model keeps
// leaving the template placeholder in its answer the whole utterance is
// treated as a general question.
func (c *Classifier) Classify(ctx context.Context, utterance string) ([]task.Task, error) {
	for attempt := 1; attempt <= c.attempts; attempt++ {
		content, err := c.gen.Generate(ctx, systemPrompt, examples, utterance)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrClassify, err)
		}

		log.Debug("Processed", "data", content, "attempt", attempt)

		tasks := task.Split(content)
		if !hasPlaceholder(tasks) {
			return tasks, nil
		}

		log.Warn("Placeholder in decision", "attempt", attempt, "raw", content)
	}

	return []task.Task{{Category: task.General, Payload: utterance}}, nil
}

func hasPlaceholder(tasks []task.Task) bool {
	for _, t := range tasks {
		if t.Placeholder() {
			return true
		}
	}
	return false
}
