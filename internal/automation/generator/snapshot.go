package generator

import "strings"

// pricingMarkers flag snapshot keys that may carry money.
var pricingMarkers = []string{"amount", "price", "total", "cents", "subtotal", "tax"}

// SanitizeSnapshot returns a copy of snapshot without pricing fields, at any depth.
func SanitizeSnapshot(snapshot map[string]any) map[string]any {
	clean := make(map[string]any, len(snapshot))
	for key, value := range snapshot {
		if isPricingKey(key) {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			clean[key] = SanitizeSnapshot(v)
		case []any:
			items := make([]any, 0, len(v))
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					items = append(items, SanitizeSnapshot(nested))
					continue
				}
				items = append(items, item)
			}
			clean[key] = items
		default:
			clean[key] = value
		}
	}
	return clean
}

func isPricingKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range pricingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
