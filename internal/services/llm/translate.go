package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vidtranslate/internal/textutil"
)

// translationChunkRunes bounds the source text sent in one request.
const translationChunkRunes = 6000

// TranslationPrompt instructs the model to return only the translated text.
const TranslationPrompt = `You are a professional subtitle and dubbing translator.
Translate the user's text into %s (language code %q).
Preserve meaning, tone, names and numbers. Do not summarize, explain or add notes.
Keep sentence boundaries so the result can be read aloud naturally.
Respond with JSON only: {"translation": "<translated text>"}`

type translationPayload struct {
	Translation string `json:"translation"`
}

// Translate translates text into the target language. Long inputs are split
// on sentence boundaries and translated in order. languageName is the human
// readable name used in the prompt.
func (c *Client) Translate(ctx context.Context, text, targetCode, languageName string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("llm translate: text required")
	}
	targetCode = strings.TrimSpace(targetCode)
	if targetCode == "" {
		return "", errors.New("llm translate: target language required")
	}
	if strings.TrimSpace(languageName) == "" {
		languageName = targetCode
	}
	prompt := fmt.Sprintf(TranslationPrompt, languageName, targetCode)

	chunks := textutil.SplitChunks(text, translationChunkRunes)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		content, err := c.CompleteJSON(ctx, prompt, chunk)
		if err != nil {
			return "", fmt.Errorf("llm translate: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		var parsed translationPayload
		if err := DecodeLLMJSON(content, &parsed); err != nil {
			return "", fmt.Errorf("llm translate: parse payload: %w", err)
		}
		translated := strings.TrimSpace(parsed.Translation)
		if translated == "" {
			return "", fmt.Errorf("llm translate: chunk %d/%d: empty translation", i+1, len(chunks))
		}
		parts = append(parts, translated)
	}
	return strings.Join(parts, " "), nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
