// Package prompt assembles the transformation instructions sent to the
// generation providers: period clothing, era-appropriate surroundings, and
// optionally the photographic style of the target year.
package prompt

import (
	"fmt"

	"server/internal/domain"
)

// Build returns the provider prompt for the target year and mode, plus a
// short style label stored on the job for display.
func Build(year int, mode domain.TransformMode) (prompt, styleLabel string) {
	clothing := clothingPrompt(year)
	eraStyle, eraLabel := eraStyle(year)

	switch mode {
	case domain.TransformModeClothingOnly:
		prompt = fmt.Sprintf(
			"Transform this photo to look like it was taken in %d. "+
				"Keep original buildings and environment intact with minimal alterations. "+
				"%s "+
				"Maintain modern photo quality and colors - only update the people's attire.",
			year, clothing)
		return prompt, fmt.Sprintf("Clothing only → %d", year)
	case domain.TransformModeFull:
		prompt = fmt.Sprintf(
			"Transform this photo to look like it was taken in %d. "+
				"%s "+
				"Update architecture and surroundings to match the %ds era: "+
				"period-appropriate vehicles, signage, street furniture, and urban landscape. "+
				"Keep modern photo quality and natural colors.",
			year, clothing, year)
		return prompt, fmt.Sprintf("Full transformation → %d", year)
	default: // full_vintage
		prompt = fmt.Sprintf(
			"Transform this photo to look like it was taken in %d. "+
				"Keep original buildings and environment intact with minimal alterations. "+
				"%s "+
				"%s",
			year, clothing, eraStyle)
		return prompt, eraLabel
	}
}

// eraStyle returns the vintage photographic style instruction and its label
// for the target year.
func eraStyle(year int) (style, label string) {
	switch {
	case year < 1900:
		return "Apply authentic 19th century daguerreotype photography style: " +
				"true black and white with high contrast, visible grain and texture, " +
				"soft vignette around edges, slightly faded corners, period-appropriate " +
				"lighting with dramatic shadows.",
			"Daguerreotype / vintage B&W"
	case year < 1940:
		return "Apply early 20th century photography style: sepia-toned or slightly " +
				"desaturated colors, visible film grain, soft focus edges, warm brownish " +
				"tones characteristic of early color or hand-tinted photographs.",
			"Sepia / early 20th-century"
	case year < 1970:
		return "Apply 1950s photography style: muted desaturated colors, subtle film grain, " +
				"soft contrast, slight vignette, and warm tonal range characteristic of " +
				"mid-century Kodachrome or Ektachrome film stock.",
			"Mid-century muted film"
	case year < 2000:
		return "Apply retro film photography style with warm tones, visible film grain, " +
				"slightly faded colors, light leaks, and color palette typical of " +
				"1970s-1990s consumer film photography.",
			"Retro warm film"
	default:
		return "Modern digital photography style with natural colors.",
			"Modern digital"
	}
}

// clothingPrompt returns the fashion instruction for the target year.
func clothingPrompt(year int) string {
	switch {
	case year < 1850:
		return "Update clothing to early 19th century fashion: men in tailcoats, waistcoats, " +
			"cravats, and top hats; women in empire-waist dresses with high necklines, " +
			"bonnets, and shawls."
	case year < 1900:
		return "Update clothing to Victorian era fashion: men in frock coats, bowler hats, " +
			"and pocket watches; women in bustle dresses, corsets, high collars, " +
			"and elaborate hats."
	case year < 1930:
		return "Update clothing to early 20th century fashion: men in three-piece suits " +
			"with wide lapels, bowler or fedora hats, pocket watches; women in " +
			"long skirts or early flapper dresses, cloche hats."
	case year < 1960:
		return "Update clothing to authentic mid-century fashion: men in tailored suits " +
			"with wide lapels and fedora hats; women in full-skirted dresses with " +
			"nipped waists, pearl accessories, and period-appropriate hairstyles " +
			"like victory rolls or pin curls."
	case year < 1980:
		return "Update clothing to 1960s-70s fashion: men in slim suits or casual " +
			"turtlenecks, sideburns; women in mini skirts, shift dresses, or " +
			"bell-bottoms with peace-era accessories."
	case year < 2000:
		return "Update clothing to 1980s-90s fashion: men in power suits with shoulder pads " +
			"or casual denim; women in bold colors, big hair, shoulder pads, " +
			"or grunge-era flannel and jeans."
	default:
		return "Keep clothing modern and contemporary."
	}
}
