package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// DeclarationSuggestions lists the ways out of an exhausted declaration
// fallback chain.
func DeclarationSuggestions() []ErrorSuggestion {
	return []ErrorSuggestion{
		{
			Title:   "Install typescript as a project dependency",
			Command: "npm install --save-dev typescript",
		},
		{
			Title:   "Install typescript globally",
			Command: "npm install --global typescript",
		},
		{
			Title:       "Write your own type definition file",
			Description: "Declarations found at index.d.ts or src/index.d.ts are copied as-is",
			Example:     "index.d.ts",
		},
	}
}

// ConfigurationSuggestions generates suggestions for a tsconfig that failed
// to load.
func ConfigurationSuggestions(configPath string) []ErrorSuggestion {
	return []ErrorSuggestion{
		{
			Title:       "Check the configuration syntax",
			Description: "Comments and trailing commas are allowed, everything else must be valid JSON",
			Command:     "npx tsc --showConfig --project " + configPath,
		},
		{
			Title:       "Verify every \"extends\" target exists",
			Description: "Relative paths resolve against the file that declares them",
		},
	}
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
	}

	return output.String()
}
