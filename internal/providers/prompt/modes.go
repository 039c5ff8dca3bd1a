package prompt

import "server/internal/domain"

// ModeInfo describes a transformation mode for the client-facing catalog.
type ModeInfo struct {
	ID          domain.TransformMode `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"desc"`
}

var modeCatalog = map[string][]ModeInfo{
	"en": {
		{
			ID:          domain.TransformModeClothingOnly,
			Name:        "Clothing only",
			Description: "Only update people's clothing to the era; buildings and surroundings stay modern",
		},
		{
			ID:          domain.TransformModeFull,
			Name:        "Full transformation",
			Description: "Update clothing plus architecture and surroundings to the era, keeping modern photo quality",
		},
		{
			ID:          domain.TransformModeFullVintage,
			Name:        "Full + vintage",
			Description: "Full transformation plus the photographic style of the era (B&W, sepia, grain, vignette)",
		},
	},
	"ru": {
		{
			ID:          domain.TransformModeClothingOnly,
			Name:        "Только одежда",
			Description: "Изменить только одежду людей под эпоху, здания и окружение остаются современными",
		},
		{
			ID:          domain.TransformModeFull,
			Name:        "Полная трансформация",
			Description: "Изменить одежду + архитектуру и окружение под эпоху, сохранить современное качество фото",
		},
		{
			ID:          domain.TransformModeFullVintage,
			Name:        "Полная + винтаж",
			Description: "Полная трансформация + стиль фото эпохи (ч/б, сепия, зернистость, виньетка)",
		},
	},
}

// Modes returns the mode catalog for the given locale, falling back to
// English.
func Modes(locale string) []ModeInfo {
	if modes, ok := modeCatalog[locale]; ok {
		return modes
	}
	return modeCatalog["en"]
}

// ValidMode reports whether mode is one of the supported transformation
// modes.
func ValidMode(mode domain.TransformMode) bool {
	switch mode {
	case domain.TransformModeClothingOnly, domain.TransformModeFull, domain.TransformModeFullVintage:
		return true
	}
	return false
}
