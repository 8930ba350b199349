// Package query computes the derived list views over posts: answered-state
// filtering, the four sort modes, keyword search, and the reply-count
// annotation attached to every listed post.
package query

import (
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/sujalbistaa/askhub/internal/models"
)

// SortMode selects the ordering of the post list.
type SortMode string

const (
	SortVotes   SortMode = "votes"
	SortDate    SortMode = "date"
	SortOldest  SortMode = "oldest"
	SortReplies SortMode = "replies"
)

// AnsweredFilter restricts the list by answered state.
type AnsweredFilter string

const (
	FilterAll        AnsweredFilter = "all"
	FilterAnswered   AnsweredFilter = "answered"
	FilterUnanswered AnsweredFilter = "unanswered"
)

// ParseSortMode maps a query parameter to a SortMode, falling back to
// SortVotes for anything unrecognized.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortDate, SortOldest, SortReplies:
		return SortMode(s)
	default:
		return SortVotes
	}
}

// ParseAnsweredFilter maps a query parameter to an AnsweredFilter, falling
// back to FilterAll.
func ParseAnsweredFilter(s string) AnsweredFilter {
	switch AnsweredFilter(s) {
	case FilterAnswered, FilterUnanswered:
		return AnsweredFilter(s)
	default:
		return FilterAll
	}
}

// ListPosts returns the filtered, sorted post list with every post annotated
// with its live reply count.
//
// For SortReplies the store order is creation time descending and the final
// ordering comes from a second pass over the counted set; the other modes
// order in the store. Counts are attached in all modes.
func ListPosts(db *gorm.DB, mode SortMode, filter AnsweredFilter) ([]models.PostWithReplyCount, error) {
	q := db.Model(&models.Post{})

	switch filter {
	case FilterAnswered:
		q = q.Where("is_answered = ?", true)
	case FilterUnanswered:
		q = q.Where("is_answered = ?", false)
	}

	switch mode {
	case SortDate, SortReplies:
		q = q.Order("created_at desc")
	case SortOldest:
		q = q.Order("created_at asc")
	default:
		q = q.Order("votes desc, created_at desc")
	}

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}

	counts, err := replyCounts(db, posts)
	if err != nil {
		return nil, err
	}

	annotated := make([]models.PostWithReplyCount, len(posts))
	for i, p := range posts {
		annotated[i] = models.PostWithReplyCount{Post: p, ReplyCount: counts[p.ID]}
	}

	if mode == SortReplies {
		// Stable so the created_at desc store order breaks count ties.
		sort.SliceStable(annotated, func(i, j int) bool {
			return annotated[i].ReplyCount > annotated[j].ReplyCount
		})
	}

	return annotated, nil
}

// likeEscaper makes %, _ and the escape character itself literal inside a
// LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPosts matches keyword case-insensitively against title or content,
// ordered by votes descending then creation time descending. The keyword is
// a plain substring: LIKE metacharacters in it match themselves.
func SearchPosts(db *gorm.DB, keyword string) ([]models.Post, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"

	var posts []models.Post
	err := db.
		Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("votes desc, created_at desc").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// RepliesForPost returns a post's replies oldest-first.
func RepliesForPost(db *gorm.DB, postID uint) ([]models.Reply, error) {
	var replies []models.Reply
	err := db.
		Where("post_id = ?", postID).
		Order("created_at asc").
		Find(&replies).Error
	if err != nil {
		return nil, err
	}
	return replies, nil
}

// TopPostsByVotes returns up to limit posts ordered by votes descending.
// Used by the similar-question helper to bound the candidate set.
func TopPostsByVotes(db *gorm.DB, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := db.
		Order("votes desc, created_at desc").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// replyCounts aggregates reply counts for the given posts in one grouped
// query instead of a count per post.
func replyCounts(db *gorm.DB, posts []models.Post) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(posts))
	if len(posts) == 0 {
		return counts, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var rows []struct {
		PostID uint
		N      int64
	}
	err := db.Model(&models.Reply{}).
		Select("post_id, COUNT(*) as n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	return counts, nil
}
