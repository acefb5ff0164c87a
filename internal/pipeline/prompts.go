package pipeline

import "fmt"

// enhancementStyles is the fixed, ordered style list for the Enhancement
// stage. Order matters: the loop stops once enough styles have produced a
// shot, so earlier styles are preferred.
var enhancementStyles = []string{"studio", "lifestyle", "creative"}

var stylePrompts = map[string]string{
	"studio": "A professional studio product photograph of the provided product on a clean " +
		"white background with soft, even lighting. High-resolution, sharp focus.",
	"lifestyle": "A lifestyle product shot of the provided product on a modern wooden desk with a " +
		"coffee cup nearby, natural window lighting, softly blurred background.",
	"creative": "A creative product shot of the provided product on a vibrant gradient background " +
		"(blue to purple) with dramatic side lighting, studio quality.",
}

// buildPrompt composes the generation prompt for one style.
func buildPrompt(style, productName string) string {
	return fmt.Sprintf(
		"Generate an enhanced marketing image featuring the %s. %s Preserve the product's proportions and core design.",
		productName, stylePrompts[style],
	)
}
