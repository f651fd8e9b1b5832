package content

import "strings"

// WordsPerMinute is the reading speed used for reading time.
const WordsPerMinute = 200

// Metrics holds the values derived from an article body on every save.
type Metrics struct {
	WordCount   int `json:"word_count"`
	ReadingTime int `json:"reading_time"`
}

// WordCount counts the whitespace-separated tokens of the tag-stripped text.
func WordCount(html string) int {
	return len(strings.Fields(StripTags(html)))
}

// ReadingTime returns minutes at WordsPerMinute, rounded up. Zero words is zero minutes.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

func DeriveMetrics(html string) Metrics {
	words := WordCount(html)
	return Metrics{
		WordCount:   words,
		ReadingTime: ReadingTime(words),
	}
}
