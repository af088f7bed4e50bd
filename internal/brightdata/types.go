package brightdata

// Engine selects which web search engine the request relay targets. It is a
// closed enumeration: anything else is a programming error, rejected before
// the provider is contacted.
type Engine string

const (
	EngineGoogle Engine = "google"
	EngineBing   Engine = "bing"
)

// Snippet is one organic search result. Every field is absent-tolerant; a
// missing key decodes to the zero value.
type Snippet struct {
	Title       string `json:"title"`
	URL         string `json:"link"`
	Description string `json:"description"`
	Position    int    `json:"rank"`
}

// SearchBundle is the normalized result of one engine search.
type SearchBundle struct {
	Knowledge map[string]any `json:"knowledge"`
	Organic   []Snippet      `json:"organic"`
}

// Post is one discovered discussion thread, projected down to the two fields
// the rest of the system cares about.
type Post struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DiscoveryBundle is the normalized result of a discussion discovery job. A
// nil *DiscoveryBundle means "discovery unavailable"; a bundle with
// TotalFound == 0 means the job succeeded and found nothing.
type DiscoveryBundle struct {
	Posts      []Post `json:"posts"`
	TotalFound int    `json:"total_found"`
}

// Comment is one retrieved discussion comment.
type Comment struct {
	ID      string `json:"comment_id"`
	Content string `json:"comment"`
	Date    string `json:"date_posted"`
}

// CommentBundle is the normalized result of a comment-retrieval job.
type CommentBundle struct {
	Comments       []Comment `json:"comments"`
	TotalRetrieved int       `json:"total_retrieved"`
}
