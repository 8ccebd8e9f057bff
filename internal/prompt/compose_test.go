package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		category  string
		value     string
		custom    string
		reference string
		want      string
		wantErr   bool
	}{
		{
			name:     "watercolor",
			raw:      "a cat",
			category: CategoryArtistic,
			value:    "watercolor",
			want:     "a cat, in the style of a watercolor painting with soft, flowing colors and artistic brush strokes",
		},
		{
			name:     "custom text appended",
			raw:      "a skyline",
			category: CategoryCustom,
			value:    "custom",
			custom:   "neon city",
			want:     "a skyline, neon city",
		},
		{
			name:     "custom without text",
			raw:      "a skyline",
			category: CategoryCustom,
			custom:   "   ",
			wantErr:  true,
		},
		{
			name:      "entertainment with reference",
			raw:       "a detective",
			category:  CategoryEntertainment,
			value:     "movie",
			reference: "Blade Runner",
			want:      "a detective, in the visual style of Blade Runner",
		},
		{
			name:     "entertainment without reference",
			raw:      "a detective",
			category: CategoryEntertainment,
			value:    "cartoon",
			want:     "a detective, in the animation style of",
		},
		{
			name:      "reference ignored outside entertainment",
			raw:       "a road",
			category:  CategoryPhotography,
			value:     "vintage",
			reference: "Blade Runner",
			want:      "a road, in the style of vintage photography",
		},
		{
			name:     "unknown category",
			raw:      "a cat",
			category: "sculpture",
			value:    "marble",
			wantErr:  true,
		},
		{
			name:     "unknown value",
			raw:      "a cat",
			category: CategoryAnime,
			value:    "western",
			wantErr:  true,
		},
		{
			name:     "empty prompt",
			raw:      " ",
			category: CategoryArtistic,
			value:    "watercolor",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.raw, tt.category, tt.value, tt.custom, tt.reference)
			if tt.wantErr {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestComposeIgnoresEmptyCustomTextOutsideCustom(t *testing.T) {
	for _, category := range Styles() {
		if category.IsCustom {
			continue
		}
		for _, option := range category.Options {
			got, err := Compose("a cat", category.ID, option.Value, "", "")
			if err != nil {
				t.Fatalf("%s/%s: unexpected error: %v", category.ID, option.Value, err)
			}
			if !strings.HasPrefix(got, "a cat, ") || !strings.HasSuffix(got, option.Fragment) {
				t.Errorf("%s/%s: unexpected prompt %q", category.ID, option.Value, got)
			}
		}
	}
}

func TestEditInstruction(t *testing.T) {
	tests := []struct {
		name     string
		editType string
		option   string
		custom   string
		want     string
		wantErr  bool
	}{
		{
			name:     "fixed option",
			editType: "enhance",
			option:   "teeth-whiten",
			want:     "Transform this image by naturally whitening and brightening the teeth while maintaining a realistic appearance",
		},
		{
			name:     "custom text ignored for option category",
			editType: "retouch",
			option:   "natural",
			custom:   "ignored",
			want:     "Transform this image with subtle enhancement while maintaining a very natural look",
		},
		{
			name:     "option missing",
			editType: "style",
			wantErr:  true,
		},
		{
			name:     "free text",
			editType: "background",
			custom:   "a sunny beach",
			want:     "Transform this image by changing the background to a sunny beach",
		},
		{
			name:     "free text missing",
			editType: "remove",
			option:   "watercolor",
			wantErr:  true,
		},
		{
			name:     "unknown edit type",
			editType: "rotate",
			custom:   "90 degrees",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EditInstruction(tt.editType, tt.option, tt.custom)
			if tt.wantErr {
				var validationErr *ValidationError
				if !errors.As(err, &validationErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
