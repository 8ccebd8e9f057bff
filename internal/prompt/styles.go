package prompt

// Style categories.
const (
	CategoryCustom        = "custom"
	CategoryArtistic      = "artistic"
	CategoryModern        = "modern"
	CategoryAnime         = "anime"
	CategoryEntertainment = "entertainment"
	CategoryPhotography   = "photography"
)

// StyleOption is one selectable style and the fragment appended to the prompt.
type StyleOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Fragment string `json:"prompt"`
}

// StyleCategory groups style options for the generation form.
type StyleCategory struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	IsCustom bool          `json:"is_custom,omitempty"`
	Options  []StyleOption `json:"options"`
}

var styleCategories = []StyleCategory{
	{
		ID:       CategoryCustom,
		Label:    "Custom Style",
		IsCustom: true,
		Options: []StyleOption{
			{Value: "custom", Label: "Custom Style"},
		},
	},
	{
		ID:    CategoryArtistic,
		Label: "Artistic",
		Options: []StyleOption{
			{Value: "watercolor", Label: "Watercolor", Fragment: "in the style of a watercolor painting with soft, flowing colors and artistic brush strokes"},
			{Value: "oil-painting", Label: "Oil Painting", Fragment: "in the style of a rich oil painting with textured brush strokes and deep colors"},
			{Value: "pencil-sketch", Label: "Pencil Sketch", Fragment: "in the style of a detailed pencil sketch with fine lines and shading"},
			{Value: "pop-art", Label: "Pop Art", Fragment: "in the style of pop art with bold colors and comic-like patterns"},
			{Value: "impressionist", Label: "Impressionist", Fragment: "in the style of impressionism with visible brush strokes and light effects"},
		},
	},
	{
		ID:    CategoryModern,
		Label: "Modern",
		Options: []StyleOption{
			{Value: "cyberpunk", Label: "Cyberpunk", Fragment: "in the style of cyberpunk with neon colors and futuristic elements"},
			{Value: "minimalist", Label: "Minimalist", Fragment: "in the style of minimalism with clean shapes and limited colors"},
			{Value: "vaporwave", Label: "Vaporwave", Fragment: "in the style of vaporwave with retro elements and pastel colors"},
			{Value: "geometric", Label: "Geometric", Fragment: "in the style of geometric art with clean lines and shapes"},
		},
	},
	{
		ID:    CategoryAnime,
		Label: "Anime & Manga",
		Options: []StyleOption{
			{Value: "anime", Label: "Classic Anime", Fragment: "in the style of classic anime with characteristic features"},
			{Value: "studio-ghibli", Label: "Studio Ghibli", Fragment: "in the style of Studio Ghibli animation"},
			{Value: "chibi", Label: "Chibi", Fragment: "in the style of cute chibi anime"},
			{Value: "manga", Label: "Manga", Fragment: "in the style of black and white manga art"},
		},
	},
	{
		ID:    CategoryEntertainment,
		Label: "Movies & Entertainment",
		Options: []StyleOption{
			{Value: "movie", Label: "Movie Style", Fragment: "in the visual style of"},
			{Value: "tv-show", Label: "TV Show Style", Fragment: "in the visual style of"},
			{Value: "video-game", Label: "Video Game Style", Fragment: "in the art style of"},
			{Value: "cartoon", Label: "Cartoon Style", Fragment: "in the animation style of"},
		},
	},
	{
		ID:    CategoryPhotography,
		Label: "Photography",
		Options: []StyleOption{
			{Value: "portrait", Label: "Portrait", Fragment: "in the style of professional portrait photography"},
			{Value: "landscape", Label: "Landscape", Fragment: "in the style of landscape photography"},
			{Value: "street", Label: "Street", Fragment: "in the style of urban street photography"},
			{Value: "vintage", Label: "Vintage", Fragment: "in the style of vintage photography"},
		},
	},
}

// EditOption is a fixed edit instruction.
type EditOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Instruction string `json:"prompt"`
}

// EditCategory is either option driven or free text with a prefix.
type EditCategory struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	PromptPrefix string       `json:"prompt_prefix,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Options      []EditOption `json:"options,omitempty"`
}

// FreeText reports whether the category takes a custom instruction.
func (c EditCategory) FreeText() bool {
	return len(c.Options) == 0
}

var editCategories = []EditCategory{
	{
		ID:    "enhance",
		Label: "Enhance",
		Options: []EditOption{
			{Value: "teeth-whiten", Label: "Whiten Teeth", Instruction: "Transform this image by naturally whitening and brightening the teeth while maintaining a realistic appearance"},
			{Value: "skin-smooth", Label: "Smooth Skin", Instruction: "Transform this image by smoothing and evening out skin texture while preserving natural features"},
			{Value: "remove-blemishes", Label: "Remove Blemishes", Instruction: "Transform this image by removing skin blemishes and imperfections while maintaining natural skin texture"},
			{Value: "brighten-eyes", Label: "Brighten Eyes", Instruction: "Transform this image by enhancing and brightening eyes while maintaining natural appearance"},
			{Value: "reduce-wrinkles", Label: "Reduce Wrinkles", Instruction: "Transform this image by subtly reducing the appearance of wrinkles while maintaining natural skin texture"},
		},
	},
	{
		ID:    "style",
		Label: "Style",
		Options: []EditOption{
			{Value: "watercolor", Label: "Watercolor", Instruction: "Transform this image into a watercolor painting style while preserving the main subject"},
			{Value: "oil-painting", Label: "Oil Painting", Instruction: "Transform this image into an oil painting style with rich textures"},
			{Value: "pencil-sketch", Label: "Pencil Sketch", Instruction: "Transform this image into a detailed pencil sketch"},
			{Value: "pop-art", Label: "Pop Art", Instruction: "Transform this image into pop art style with bold colors"},
			{Value: "anime", Label: "Anime", Instruction: "Transform this image into anime style artwork"},
		},
	},
	{
		ID:    "retouch",
		Label: "Retouch",
		Options: []EditOption{
			{Value: "professional", Label: "Professional", Instruction: "Transform this image into a professional headshot with perfect lighting and subtle retouching"},
			{Value: "glamour", Label: "Glamour", Instruction: "Transform this image by applying glamour retouching while maintaining natural features"},
			{Value: "natural", Label: "Natural", Instruction: "Transform this image with subtle enhancement while maintaining a very natural look"},
		},
	},
	{ID: "background", Label: "Change Background", PromptPrefix: "Transform this image by changing the background to", Placeholder: "a sunny beach, a city skyline"},
	{ID: "lighting", Label: "Adjust Lighting", PromptPrefix: "Transform this image by adjusting the lighting to create", Placeholder: "golden hour lighting, studio lighting"},
	{ID: "color", Label: "Color Adjustment", PromptPrefix: "Transform this image by adjusting the colors to have", Placeholder: "warmer tones, vintage colors"},
	{ID: "remove", Label: "Remove Objects", PromptPrefix: "Transform this image by carefully removing", Placeholder: "the person in the background"},
	{ID: "adjust", Label: "Custom Adjustments", PromptPrefix: "Transform this image by subtly adjusting", Placeholder: "make the smile more natural"},
}

// Styles returns the generation style catalog.
func Styles() []StyleCategory {
	out := make([]StyleCategory, len(styleCategories))
	copy(out, styleCategories)
	return out
}

// EditOptions returns the edit catalog.
func EditOptions() []EditCategory {
	out := make([]EditCategory, len(editCategories))
	copy(out, editCategories)
	return out
}

func findStyleCategory(id string) (StyleCategory, bool) {
	for _, category := range styleCategories {
		if category.ID == id {
			return category, true
		}
	}
	return StyleCategory{}, false
}

func findEditCategory(id string) (EditCategory, bool) {
	for _, category := range editCategories {
		if category.ID == id {
			return category, true
		}
	}
	return EditCategory{}, false
}
