package vision

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"cloud.google.com/go/vertexai/genai"
)

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

// responseImage returns the first inline image payload in the response, or
// nil when there is none. Base64-encoded text payloads are tolerated; some
// model versions return images that way.
func responseImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Blob:
				if len(v.Data) > 0 {
					return v.Data
				}
			case genai.Text:
				if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(v))); err == nil && looksLikeImage(decoded) {
					return decoded
				}
			}
		}
	}
	return nil
}

func looksLikeImage(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	// PNG and JPEG magic numbers.
	return (data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G') ||
		(data[0] == 0xFF && data[1] == 0xD8)
}

// firstInteger extracts the first run of digits from the text. A minus sign
// immediately before the digits is honored, so a reply like "-1" comes back
// negative and fails the caller's range check instead of parsing as index 1.
func firstInteger(text string) (int, error) {
	var digits strings.Builder
	neg := false
	prev := rune(0)
	for _, r := range text {
		if unicode.IsDigit(r) {
			if digits.Len() == 0 {
				neg = prev == '-'
			}
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		} else {
			prev = r
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("no integer found")
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// parseIndexList parses a comma-separated list of integers, tolerating
// whitespace, brackets and stray prose. Tokens with no digits are dropped.
func parseIndexList(text string) []int {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := firstInteger(tok)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
