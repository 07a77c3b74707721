// Package normalize canonicalizes free-text listing titles and condition
// phrases into stable identities shared across source platforms.
package normalize

import (
	"regexp"
	"strings"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

// Identity is the canonical (name, brand, category) triple derived from a
// raw listing title, plus the slug that keys the Device catalog.
type Identity struct {
	CanonicalName string
	Brand         string
	Category      v1.Category
	ModelSlug     string
}

// modelPattern pairs a matcher with its canonical re-emitted form.
// $1 in the template is replaced by the captured numeric/sub-model token.
type modelPattern struct {
	re       *regexp.Regexp
	template string
	category v1.Category
}

// modelPatterns is evaluated in order, first match wins. More specific
// patterns (Pro Max, Ultra) must precede their general counterparts, or
// "iphone 13 pro max" would canonicalize as "iPhone 13" with a dangling
// suffix. The ordering is a load-bearing, tested property.
var modelPatterns = []modelPattern{
	// Apple iPhone
	{regexp.MustCompile(`iphone\s*(\d+)\s*pro\s*max`), "iPhone $1 Pro Max", v1.CategoryPhone},
	{regexp.MustCompile(`iphone\s*(\d+)\s*pro`), "iPhone $1 Pro", v1.CategoryPhone},
	{regexp.MustCompile(`iphone\s*(\d+)\s*plus`), "iPhone $1 Plus", v1.CategoryPhone},
	{regexp.MustCompile(`iphone\s*(\d+)\s*mini`), "iPhone $1 Mini", v1.CategoryPhone},
	{regexp.MustCompile(`iphone\s*(\d+)`), "iPhone $1", v1.CategoryPhone},

	// Samsung Galaxy
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*s\s*(\d+)\s*ultra`), "Samsung Galaxy S$1 Ultra", v1.CategoryPhone},
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*s\s*(\d+)\s*plus`), "Samsung Galaxy S$1 Plus", v1.CategoryPhone},
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*s\s*(\d+)`), "Samsung Galaxy S$1", v1.CategoryPhone},
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*a\s*(\d+)`), "Samsung Galaxy A$1", v1.CategoryPhone},
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*tab\s*s\s*(\d+)`), "Samsung Galaxy Tab S$1", v1.CategoryTablet},
	{regexp.MustCompile(`(?:samsung\s*)?galaxy\s*watch\s*(\d+)`), "Samsung Galaxy Watch $1", v1.CategorySmartwatch},

	// Google Pixel
	{regexp.MustCompile(`(?:google\s*)?pixel\s*(\d+)\s*pro`), "Google Pixel $1 Pro", v1.CategoryPhone},
	{regexp.MustCompile(`(?:google\s*)?pixel\s*(\d+a)`), "Google Pixel $1", v1.CategoryPhone},
	{regexp.MustCompile(`(?:google\s*)?pixel\s*(\d+)`), "Google Pixel $1", v1.CategoryPhone},

	// OnePlus
	{regexp.MustCompile(`oneplus\s*(\d+)\s*pro`), "OnePlus $1 Pro", v1.CategoryPhone},
	{regexp.MustCompile(`oneplus\s*(\d+t?)`), "OnePlus $1", v1.CategoryPhone},

	// Apple MacBook
	{regexp.MustCompile(`macbook\s*pro\s*(\d+)`), "MacBook Pro $1", v1.CategoryLaptop},
	{regexp.MustCompile(`macbook\s*air\s*(\d+)`), "MacBook Air $1", v1.CategoryLaptop},
	{regexp.MustCompile(`macbook\s*air`), "MacBook Air", v1.CategoryLaptop},
	{regexp.MustCompile(`macbook`), "MacBook", v1.CategoryLaptop},

	// Apple iPad
	{regexp.MustCompile(`ipad\s*pro\s*(\d+)`), "iPad Pro $1", v1.CategoryTablet},
	{regexp.MustCompile(`ipad\s*air\s*(\d+)`), "iPad Air $1", v1.CategoryTablet},
	{regexp.MustCompile(`ipad\s*mini\s*(\d+)`), "iPad Mini $1", v1.CategoryTablet},
	{regexp.MustCompile(`ipad\s*(\d+)`), "iPad $1", v1.CategoryTablet},

	// Apple Watch
	{regexp.MustCompile(`apple\s*watch\s*(?:series\s*)?(\d+)`), "Apple Watch Series $1", v1.CategorySmartwatch},
}

// brandKeywords maps a lower-case keyword found in the canonical name to the
// brand it implies. First match wins; no match means "Other".
var brandKeywords = []struct {
	keyword string
	brand   string
}{
	{"iphone", "Apple"},
	{"macbook", "Apple"},
	{"ipad", "Apple"},
	{"apple watch", "Apple"},
	{"samsung", "Samsung"},
	{"galaxy", "Samsung"},
	{"oneplus", "OnePlus"},
	{"pixel", "Google"},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	slugStripRe  = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashRe   = regexp.MustCompile(`-+`)
)

// Model canonicalizes a raw listing title. The title is lower-cased and
// whitespace-collapsed, then tested against the ordered pattern list. A title
// matching no pattern is returned unchanged (lower-cased) as its own canonical
// name: near-duplicate uncanonicalized titles can therefore create
// near-duplicate devices, which is an accepted fidelity limit.
func Model(rawTitle string) Identity {
	title := whitespaceRe.ReplaceAllString(strings.TrimSpace(strings.ToLower(rawTitle)), " ")

	name := title
	category := v1.CategoryOther
	for _, p := range modelPatterns {
		m := p.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		name = p.template
		if len(m) > 1 {
			name = strings.Replace(name, "$1", m[1], 1)
		}
		category = p.category
		break
	}

	return Identity{
		CanonicalName: name,
		Brand:         brandFor(name),
		Category:      category,
		ModelSlug:     Slug(name),
	}
}

func brandFor(canonicalName string) string {
	lower := strings.ToLower(canonicalName)
	for _, b := range brandKeywords {
		if strings.Contains(lower, b.keyword) {
			return b.brand
		}
	}
	return "Other"
}

// Slug derives the stable catalog key from a canonical name: lower-case,
// spaces to hyphens, anything else stripped.
func Slug(canonicalName string) string {
	s := strings.ToLower(strings.TrimSpace(canonicalName))
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
