package images

import "strings"

// decorativeTerms mark site chrome rather than product photography.
var decorativeTerms = []string{
	"icon", "logo", "banner", "button", "nav", "menu",
	"header", "footer", "arrow", "search", "cart",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// IsProductImageURL reports whether an image URL is worth fetching: a
// recognized image extension and no decorative-asset term anywhere in the
// URL.
func IsProductImageURL(raw string) bool {
	lower := strings.ToLower(raw)

	for _, term := range decorativeTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}

	// Strip any query string before the extension check.
	if i := strings.IndexByte(lower, '?'); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
