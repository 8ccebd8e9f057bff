package prompt

import (
	"fmt"
	"strings"
)

// ValidationError reports user input that cannot be turned into a prompt.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Compose builds the generation prompt from the raw prompt and the selected style.
// customText is only read for the custom category, referenceText only for entertainment.
func Compose(rawPrompt, category, value, customText, referenceText string) (string, error) {
	rawPrompt = strings.TrimSpace(rawPrompt)
	if rawPrompt == "" {
		return "", invalid("prompt", "prompt is required")
	}

	category = strings.TrimSpace(category)
	if category == CategoryCustom {
		custom := strings.TrimSpace(customText)
		if custom == "" {
			return "", invalid("custom_style", "please enter a custom style description")
		}
		return rawPrompt + ", " + custom, nil
	}

	styleCategory, ok := findStyleCategory(category)
	if !ok {
		return "", invalid("style_category", fmt.Sprintf("unknown style category %q", category))
	}

	value = strings.TrimSpace(value)
	for _, option := range styleCategory.Options {
		if option.Value != value {
			continue
		}
		reference := strings.TrimSpace(referenceText)
		if category == CategoryEntertainment && reference != "" {
			return fmt.Sprintf("%s, %s %s", rawPrompt, option.Fragment, reference), nil
		}
		return rawPrompt + ", " + option.Fragment, nil
	}

	return "", invalid("style", fmt.Sprintf("unknown style %q for category %q", value, category))
}

// EditInstruction resolves the final edit instruction for an edit type.
// Option driven types use the fixed instruction of the selected option; free text
// types prefix the custom text.
func EditInstruction(editType, option, customText string) (string, error) {
	editType = strings.TrimSpace(editType)
	category, ok := findEditCategory(editType)
	if !ok {
		return "", invalid("edit_type", fmt.Sprintf("unknown edit type %q", editType))
	}

	if category.FreeText() {
		custom := strings.TrimSpace(customText)
		if custom == "" {
			return "", invalid("custom_instructions", "please enter edit instructions")
		}
		return category.PromptPrefix + " " + custom, nil
	}

	option = strings.TrimSpace(option)
	if option == "" {
		return "", invalid("option", "please select an edit option")
	}
	for _, candidate := range category.Options {
		if candidate.Value == option {
			return candidate.Instruction, nil
		}
	}
	return "", invalid("option", fmt.Sprintf("unknown option %q for edit type %q", option, editType))
}
