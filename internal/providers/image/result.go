package image

// Provider responses and callbacks are not consistent about where they put
// the generated image URL. ExtractResultURL centralizes the probing order so
// poll responses and webhook payloads resolve results identically.

// resultURLFields is the ordered list of known result fields, most reliable
// first. GeminiGen histories use the first three; KIE task output uses the
// rest.
var resultURLFields = []string{
	"generate_result",
	"thumbnail_url",
	"last_frame_url",
	"image_url",
	"resultImageUrl",
	"url",
}

// resultURLArrays lists fields that hold an array whose first string entry is
// the result.
var resultURLArrays = []string{"images", "resultUrls", "result_urls"}

// resultURLContainers lists nested objects worth descending into.
var resultURLContainers = []string{"output", "data", "result", "info"}

// ExtractResultURL probes payload for a usable result reference, trying each
// known field in order and then descending one level into known container
// objects. It returns ok=false when nothing yields a non-empty string; the
// caller decides whether that means failure.
func ExtractResultURL(payload map[string]any) (string, bool) {
	return extractResultURL(payload, 2)
}

func extractResultURL(payload map[string]any, depth int) (string, bool) {
	if payload == nil || depth < 0 {
		return "", false
	}
	for _, field := range resultURLFields {
		if s, ok := payload[field].(string); ok && s != "" {
			return s, true
		}
	}
	for _, field := range resultURLArrays {
		arr, ok := payload[field].([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			if s, ok := item.(string); ok && s != "" {
				return s, true
			}
		}
	}
	for _, field := range resultURLContainers {
		if nested, ok := payload[field].(map[string]any); ok {
			if s, ok := extractResultURL(nested, depth-1); ok {
				return s, true
			}
		}
	}
	return "", false
}
