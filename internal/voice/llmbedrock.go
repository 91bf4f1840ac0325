package voice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agriagents/voicebridge/internal/session"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// SystemPrompt is the verbatim agricultural-advisor persona the LLM
// driver sends as the system message on every turn.
const SystemPrompt = `You are an agricultural advisor helping farmers over a phone call. Reply in the exact language the user spoke in. Keep replies to at most two short sentences. Never use lists. Ask at most one counter-question at a time, and only when information is missing. If the user's question is out of scope or abusive, gently steer the conversation back to farming. If you are unsure of an answer, suggest the Kisan Call Center at 1800-180-1551.`

// BedrockLLMConfig configures the AWS Bedrock streaming LLM driver.
type BedrockLLMConfig struct {
	Region  string
	ModelID string
}

const (
	llmMaxTokens   = 180
	llmTemperature = 0.2
	llmTopP        = 0.7
)

// BedrockLLMAdapter streams chat completions from Anthropic models
// hosted on AWS Bedrock via InvokeModelWithResponseStream.
type BedrockLLMAdapter struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockLLMAdapter constructs an adapter using the given Bedrock
// client (typically built from aws-sdk-go-v2's config.LoadDefaultConfig).
func NewBedrockLLMAdapter(client *bedrockruntime.Client, modelID string) *BedrockLLMAdapter {
	return &BedrockLLMAdapter{client: client, modelID: modelID}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string              `json:"anthropic_version"`
	MaxTokens        int                 `json:"max_tokens"`
	Temperature      float64             `json:"temperature"`
	TopP             float64             `json:"top_p"`
	System           string              `json:"system"`
	Messages         []anthropicMessage  `json:"messages"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// StreamResponse sends one turn's conversation history plus the new user
// text to Bedrock, invoking onDelta for every text fragment as it
// streams back. It returns the full accumulated reply text. An error
// from onDelta stops the stream early and is returned to the caller; an
// in-flight turn is aborted by cancelling ctx.
func (a *BedrockLLMAdapter) StreamResponse(ctx context.Context, req LLMRequest, onDelta func(string) error) (string, error) {
	messages := make([]anthropicMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := "user"
		if turn.Role == session.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: req.UserText})

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        llmMaxTokens,
		Temperature:      llmTemperature,
		TopP:             llmTopP,
		System:           SystemPrompt,
		Messages:         messages,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	out, err := a.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("llm: invoke model: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	var full string
	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var se anthropicStreamEvent
		if err := json.Unmarshal(chunk.Value.Bytes, &se); err != nil {
			continue
		}
		if se.Type != "content_block_delta" || se.Delta.Text == "" {
			continue
		}
		full += se.Delta.Text
		if err := onDelta(se.Delta.Text); err != nil {
			return full, err
		}
	}
	if err := stream.Err(); err != nil {
		return full, fmt.Errorf("llm: stream error: %w", err)
	}
	return full, nil
}
