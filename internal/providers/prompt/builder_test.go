package prompt

import (
	"strings"
	"testing"

	"server/internal/domain"
)

func TestBuildClothingOnlyKeepsEnvironment(t *testing.T) {
	p, label := Build(1920, domain.TransformModeClothingOnly)
	if !strings.Contains(p, "taken in 1920") {
		t.Fatalf("prompt missing year: %q", p)
	}
	if !strings.Contains(p, "only update the people's attire") {
		t.Fatalf("clothing_only must leave surroundings alone: %q", p)
	}
	if label != "Clothing only → 1920" {
		t.Fatalf("label = %q", label)
	}
}

func TestBuildFullUpdatesSurroundings(t *testing.T) {
	p, label := Build(1955, domain.TransformModeFull)
	if !strings.Contains(p, "Update architecture and surroundings") {
		t.Fatalf("full mode must change surroundings: %q", p)
	}
	if strings.Contains(p, "film grain") {
		t.Fatalf("full mode must not apply vintage style: %q", p)
	}
	if label != "Full transformation → 1955" {
		t.Fatalf("label = %q", label)
	}
}

func TestBuildFullVintageStyleByEra(t *testing.T) {
	cases := []struct {
		year  int
		label string
		hint  string
	}{
		{1885, "Daguerreotype / vintage B&W", "daguerreotype"},
		{1925, "Sepia / early 20th-century", "sepia"},
		{1950, "Mid-century muted film", "Kodachrome"},
		{1985, "Retro warm film", "light leaks"},
		{2020, "Modern digital", "natural colors"},
	}
	for _, tc := range cases {
		p, label := Build(tc.year, domain.TransformModeFullVintage)
		if label != tc.label {
			t.Fatalf("year %d: label = %q, want %q", tc.year, label, tc.label)
		}
		if !strings.Contains(strings.ToLower(p), strings.ToLower(tc.hint)) {
			t.Fatalf("year %d: prompt missing %q: %q", tc.year, tc.hint, p)
		}
	}
}

func TestClothingPromptBands(t *testing.T) {
	cases := []struct {
		year int
		hint string
	}{
		{1820, "tailcoats"},
		{1880, "Victorian"},
		{1910, "three-piece suits"},
		{1950, "victory rolls"},
		{1970, "bell-bottoms"},
		{1990, "shoulder pads"},
		{2010, "modern and contemporary"},
	}
	for _, tc := range cases {
		got := clothingPrompt(tc.year)
		if !strings.Contains(got, tc.hint) {
			t.Fatalf("year %d: clothing prompt missing %q: %q", tc.year, tc.hint, got)
		}
	}
}

func TestModesLocalized(t *testing.T) {
	en := Modes("en")
	ru := Modes("ru")
	fallback := Modes("de")

	if len(en) != 3 || len(ru) != 3 {
		t.Fatalf("mode catalog sizes: en=%d ru=%d", len(en), len(ru))
	}
	if en[0].ID != domain.TransformModeClothingOnly {
		t.Fatalf("first mode = %q", en[0].ID)
	}
	if ru[0].Name == en[0].Name {
		t.Fatal("russian catalog should be translated")
	}
	if fallback[0].Name != en[0].Name {
		t.Fatal("unknown locale should fall back to english")
	}
}

func TestValidMode(t *testing.T) {
	if !ValidMode(domain.TransformModeFullVintage) {
		t.Fatal("full_vintage should be valid")
	}
	if ValidMode("sepia_madness") {
		t.Fatal("unknown mode should be invalid")
	}
}
