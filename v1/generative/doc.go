// Package generative runs chat completions against an OpenAI compatible API.
//
// It backs single-prompt generation over query results: a prompt template such as
// "Categorize genre: {title}" is rendered once per object with RenderPrompt and the
// resulting prompts are completed with CompleteAll.
//
//	client, err := generative.NewClient(cfg)
//	prompt, err := generative.RenderPrompt("Categorize genre: {title}", obj.Properties)
//	answer, err := client.Complete(ctx, prompt)
package generative
