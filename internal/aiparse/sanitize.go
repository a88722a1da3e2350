package aiparse

import (
	"fmt"
	"strings"

	"github.com/contaflow/bankparse/internal/statement"
)

// sanitizeModelJSON strips Markdown fences and surrounding prose from a model
// response, leaving only the outermost JSON object. Models ignore "no fences"
// instructions often enough that this runs on every response.
func sanitizeModelJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty model response", statement.ErrClassificationParse)
	}

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only from the first '{' to the last '}'. Anything outside is
	// commentary the model added around the payload.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in model response", statement.ErrClassificationParse)
	}
	return strings.TrimSpace(s[start : end+1]), nil
}
