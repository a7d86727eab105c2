package generation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/formai/engine/internal/schema"
)

//go:embed system_prompt.txt
var systemPrompt string

// SystemPrompt returns the output contract sent with every request
func SystemPrompt() string {
	return systemPrompt
}

var (
	leadingFence  = regexp.MustCompile("^```(?:json)?\\n?")
	trailingFence = regexp.MustCompile("\\n?```$")
)

// stripFences removes a markdown code fence wrapped around the output
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = leadingFence.ReplaceAllString(text, "")
	return trailingFence.ReplaceAllString(text, "")
}

func refinePrompt(current *schema.Definition, instructions string) (string, error) {
	encoded, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode current form: %w", err)
	}
	return fmt.Sprintf("Formulaire actuel :\n%s\n\nModifications à appliquer :\n%s\n\nRenvoie le formulaire complet modifié, en JSON.",
		encoded, instructions), nil
}
