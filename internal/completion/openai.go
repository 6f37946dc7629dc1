package completion

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/tidwall/gjson"

	"github.com/parleyhq/parley/internal/history"
)

// OpenAIClient implements Client over the OpenAI-compatible wire protocol,
// including Azure deployments when an endpoint and API version are given.
type OpenAIClient struct{}

// NewOpenAIClient builds the production streaming client.
func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{}
}

// Stream opens a streaming chat completion per the call specification.
func (c *OpenAIClient) Stream(ctx context.Context, p Params) (ChunkStream, error) {
	var opts []option.RequestOption
	if p.APIKey != "" {
		opts = append(opts, option.WithAPIKey(p.APIKey))
	}
	switch {
	case p.APIBase != "" && p.APIVersion != "":
		opts = append(opts, azure.WithEndpoint(p.APIBase, p.APIVersion))
	case p.APIBase != "":
		opts = append(opts, option.WithBaseURL(p.APIBase))
	}

	client := openai.NewClient(opts...)

	body := openai.ChatCompletionNewParams{
		Model:    deploymentModel(p.Model),
		Messages: toOpenAIMessages(p.Messages),
	}
	if p.Temperature != nil {
		body.Temperature = openai.Float(*p.Temperature)
	}
	for _, tool := range p.Tools {
		body.Tools = append(body.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
			Parameters:  openai.FunctionParameters(tool.Parameters),
		}))
	}

	stream := client.Chat.Completions.NewStreaming(ctx, body)
	return &openaiStream{stream: stream}, nil
}

// deploymentModel strips the "provider/" prefix from a profile string; the
// provider half selects the endpoint, not the wire model name.
func deploymentModel(profile string) string {
	if _, name, ok := strings.Cut(profile, "/"); ok {
		return name
	}
	return profile
}

func toOpenAIMessages(messages []history.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case history.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case history.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text()))
		default:
			out = append(out, userMessage(msg))
		}
	}
	return out
}

// userMessage keeps single-part text messages as plain strings and expands
// multimodal messages into content parts.
func userMessage(msg history.Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.Parts) == 1 && msg.Parts[0].Type == history.PartText {
		return openai.UserMessage(msg.Parts[0].Text)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case history.PartImageURL:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: part.ImageURL,
			}))
		default:
			parts = append(parts, openai.TextContentPart(part.Text))
		}
	}
	return openai.UserMessage(parts)
}

type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openaiStream) Next() (Chunk, bool) {
	if !s.stream.Next() {
		return Chunk{}, false
	}

	raw := s.stream.Current()
	var chunk Chunk
	if len(raw.Choices) > 0 {
		chunk.Content = raw.Choices[0].Delta.Content
	}

	// Some providers append a nonstandard citations array the SDK does not
	// model; pull it from the raw payload.
	if citations := gjson.Get(raw.RawJSON(), "citations"); citations.Exists() {
		urls := make([]string, 0, len(citations.Array()))
		for _, v := range citations.Array() {
			urls = append(urls, v.String())
		}
		chunk.Citations = urls
	}
	return chunk, true
}

func (s *openaiStream) Err() error {
	return s.stream.Err()
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}
