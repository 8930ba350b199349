// Package vote holds the three-state toggle logic for per-user votes on a
// post: neutral, upvoted, or downvoted. The functions mutate the post's
// membership sets and keep the derived Votes counter in step; callers are
// responsible for persisting the result.
package vote

import (
	"errors"
	"strings"

	"github.com/sujalbistaa/askhub/internal/models"
)

// ErrMissingUserID is returned before any state is touched when the caller
// did not supply a user identity.
var ErrMissingUserID = errors.New("user ID is required")

// Result describes the outcome of a vote transition.
type Result struct {
	// Active is true when the user's vote is applied after the transition,
	// false when the transition removed it (toggle-off).
	Active  bool
	Message string
}

// ApplyUpvote toggles userID's upvote on post.
//
// Already upvoted: the upvote is removed and Votes decremented, clamped at a
// floor of 0. Otherwise any existing downvote is cancelled (remove from set,
// increment once) and the upvote applied (add to set, increment once).
//
// The 0 floor exists only on this removal path; downvote removal has no
// matching ceiling. Clients depend on the asymmetry, so keep it.
func ApplyUpvote(post *models.Post, userID string) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrMissingUserID
	}

	if post.UpvotedBy.Contains(userID) {
		post.Votes--
		if post.Votes < 0 {
			post.Votes = 0
		}
		post.UpvotedBy = post.UpvotedBy.Remove(userID)
		return Result{Active: false, Message: "Upvote removed"}, nil
	}

	if post.DownvotedBy.Contains(userID) {
		post.Votes++
		post.DownvotedBy = post.DownvotedBy.Remove(userID)
	}

	post.Votes++
	post.UpvotedBy = append(post.UpvotedBy, userID)
	return Result{Active: true, Message: "Upvoted successfully"}, nil
}

// ApplyDownvote toggles userID's downvote on post. Symmetric to ApplyUpvote
// except the removal path does not clamp.
func ApplyDownvote(post *models.Post, userID string) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrMissingUserID
	}

	if post.DownvotedBy.Contains(userID) {
		post.Votes++
		post.DownvotedBy = post.DownvotedBy.Remove(userID)
		return Result{Active: false, Message: "Downvote removed"}, nil
	}

	if post.UpvotedBy.Contains(userID) {
		post.Votes--
		post.UpvotedBy = post.UpvotedBy.Remove(userID)
	}

	post.Votes--
	post.DownvotedBy = append(post.DownvotedBy, userID)
	return Result{Active: true, Message: "Downvoted successfully"}, nil
}
