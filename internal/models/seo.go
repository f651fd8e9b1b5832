package models

const (
	SEOSourceAI    = "ai"
	SEOSourceBasic = "basic"
)

// SEOResult is returned by the optimizer, whether the AI answered or the basic
// extractors filled in.
type SEOResult struct {
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	KeyTakeaways    []string `json:"keyTakeaways"`
	OptimizedTitle  string   `json:"optimizedTitle"`
	Source          string   `json:"source"`
}
