package llm

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/yuin/goldmark"
)

// EncodingName is the tokenizer used to bound prompt size.
const EncodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		// Ship the BPE ranks with the binary instead of downloading them.
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, encErr = tiktoken.GetEncoding(EncodingName)
	})
	return enc, encErr
}

// Truncate cuts text to at most maxTokens tokens. It reports whether the
// text was shortened.
func Truncate(text string, maxTokens int) (string, bool, error) {
	e, err := encoding()
	if err != nil {
		return "", false, err
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false, nil
	}
	return e.Decode(tokens[:maxTokens]), true, nil
}

// ImprovementPrompt wraps text in the rewrite instruction.
func ImprovementPrompt(text string) string {
	return "Réécris ce paragraphe en français, de manière fluide et enrichie, " +
		"prêt à être publié. Ne renvoie que le texte, sans balises, sans code, " +
		"sans explications :\n\n" + text
}

var (
	reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	blockEnd       = regexp.MustCompile(`(</(?:p|h[1-6])>)\n`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
	strictPolicy   = bluemonday.StrictPolicy()
)

// PlainText reduces a completion to publishable text: reasoning blocks are
// dropped and markdown formatting is rendered away. Paragraph breaks are
// kept.
func PlainText(s string) string {
	s = reasoningBlock.ReplaceAllString(s, "")

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return strings.TrimSpace(s)
	}
	rendered := blockEnd.ReplaceAllString(buf.String(), "$1\n\n")

	out := html.UnescapeString(strictPolicy.Sanitize(rendered))
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
