package search

import (
	"fmt"
	"strings"
)

// Intent selects the field set a query is ranked against.
type Intent string

const (
	IntentNone     Intent = "none"
	IntentTitle    Intent = "title"
	IntentAuthor   Intent = "author"
	IntentCombined Intent = "combined"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	// substringBonus is added to the text rank when the raw query appears verbatim.
	substringBonus = 1.0
	tsConfig       = "'english'"
	authorJoin     = "JOIN users ON users.id = posts.user_id AND users.deleted_at IS NULL"
)

// Request carries the raw listing parameters.
type Request struct {
	Search string
	Title  string
	Author string
	Tag    string
	Page   int
	Limit  int
}

// Options tune query generation.
type Options struct {
	// FullText enables the natural-language predicate and ts_rank scoring.
	FullText bool
	// MaxLimit caps page size; zero means MaxLimit.
	MaxLimit int
}

// ResolveIntent picks the ranking mode: title, then author, then combined.
func (r Request) ResolveIntent() (Intent, string) {
	if q := strings.TrimSpace(r.Title); q != "" {
		return IntentTitle, q
	}
	if q := strings.TrimSpace(r.Author); q != "" {
		return IntentAuthor, q
	}
	if q := strings.TrimSpace(r.Search); q != "" {
		return IntentCombined, q
	}
	return IntentNone, ""
}

// Paginate normalizes page and limit and returns the row offset.
func Paginate(page, limit, max int) (int, int, int) {
	if max <= 0 {
		max = MaxLimit
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}
	return page, limit, (page - 1) * limit
}

type fieldSet struct {
	// text concatenates the searched columns for substring and tsvector matching.
	text string
	// weighted ranks the same columns with per-column weights.
	weighted string
	join     bool
}

func col(expr string) string { return "coalesce(" + expr + ", '')" }

func weight(expr, w string) string {
	return fmt.Sprintf("setweight(to_tsvector(%s, %s), '%s')", tsConfig, col(expr), w)
}

func concat(exprs ...string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = col(e)
	}
	return strings.Join(parts, " || ' ' || ")
}

var fieldSets = map[Intent]fieldSet{
	IntentTitle: {
		text:     concat("posts.title", "posts.content"),
		weighted: weight("posts.title", "A") + " || " + weight("posts.content", "B"),
	},
	IntentAuthor: {
		text:     concat("users.display_name", "users.username"),
		weighted: weight("users.display_name", "A") + " || " + weight("users.username", "B"),
		join:     true,
	},
	IntentCombined: {
		text: concat("posts.title", "users.display_name", "users.username", "posts.content"),
		weighted: weight("posts.title", "A") + " || " + weight("users.display_name", "B") + " || " +
			weight("users.username", "B") + " || " + weight("posts.content", "C"),
		join: true,
	},
}

// Build turns a listing request into a published-posts query.
// Without a query string rows are ordered by recency only.
func Build(req Request, opts Options) *Query {
	q := newQuery("posts")
	intent, text := req.ResolveIntent()
	q.Intent = intent

	_, q.Limit, q.Offset = Paginate(req.Page, req.Limit, opts.MaxLimit)

	fs, ranked := fieldSets[intent]
	if ranked && fs.join {
		q.Join(authorJoin)
	}

	q.Where("posts.is_published = ?", true)

	if ranked {
		pattern := "%" + EscapeLike(text) + "%"
		if opts.FullText {
			q.Where(
				fmt.Sprintf("%s ILIKE ? OR to_tsvector(%s, %s) @@ plainto_tsquery(%s, ?)", fs.text, tsConfig, fs.text, tsConfig),
				pattern, text,
			)
		} else {
			q.Where(fs.text+" ILIKE ?", pattern)
		}
	}

	if tag := strings.ToLower(strings.TrimSpace(req.Tag)); tag != "" {
		q.Where("? = ANY(posts.tags)", tag)
	}

	if !ranked {
		q.OrderBy("posts.created_at DESC")
		return q
	}

	pattern := "%" + EscapeLike(text) + "%"
	bonus := fmt.Sprintf("CASE WHEN %s ILIKE ? THEN %.1f ELSE 0 END", fs.text, substringBonus)
	if opts.FullText {
		q.Select(
			fmt.Sprintf("ts_rank(%s, plainto_tsquery(%s, ?)) + %s AS relevance", fs.weighted, tsConfig, bonus),
			text, pattern,
		)
	} else {
		q.Select(bonus+" AS relevance", pattern)
	}
	q.OrderBy("relevance DESC")
	q.OrderBy("posts.created_at DESC")
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so user text matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
