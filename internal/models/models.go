package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// AnonymousAuthor is used when a client omits the author field.
	AnonymousAuthor = "Anonymous"

	// MaxTitleLength is the hard cap on post titles.
	MaxTitleLength = 200
)

// UserIDList is a set of user identifiers stored as a JSON array column.
// It implements sql.Scanner and driver.Valuer so GORM can persist it on
// both SQLite and Postgres.
type UserIDList []string

// Value serializes the list as JSON. An empty list is stored as "[]", never
// NULL, so Contains never has to distinguish the two.
func (l UserIDList) Value() (driver.Value, error) {
	if l == nil {
		l = UserIDList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan accepts []byte or string column data.
func (l *UserIDList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = UserIDList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for UserIDList", src)
	}
}

// Contains reports whether userID is in the list.
func (l UserIDList) Contains(userID string) bool {
	for _, id := range l {
		if id == userID {
			return true
		}
	}
	return false
}

// Remove returns the list without userID.
func (l UserIDList) Remove(userID string) UserIDList {
	out := make(UserIDList, 0, len(l))
	for _, id := range l {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

// Post is a top-level question thread.
//
// Votes is a derived counter: the vote engine keeps it in sync with the
// membership sets on every transition, and nothing recomputes it from the
// sets on read.
type Post struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Content     string     `gorm:"not null" json:"content"`
	Author      string     `gorm:"not null;default:Anonymous" json:"author"`
	Votes       int        `gorm:"not null;default:0;index:idx_posts_votes_created,priority:1" json:"votes"`
	UpvotedBy   UserIDList `gorm:"type:text" json:"upvotedBy"`
	DownvotedBy UserIDList `gorm:"type:text" json:"downvotedBy"`
	IsAnswered  bool       `gorm:"not null;default:false" json:"isAnswered"`
	CreatedAt   time.Time  `gorm:"index:idx_posts_votes_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Reply is a comment attached to exactly one Post. The reference is weak:
// replies are looked up by PostID, the post does not embed them.
type Reply struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	Content   string    `gorm:"not null" json:"content"`
	Author    string    `gorm:"not null;default:Anonymous" json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostWithReplyCount is the list-view shape: every listed post carries its
// live reply count regardless of sort mode.
type PostWithReplyCount struct {
	Post
	ReplyCount int64 `json:"replyCount"`
}

// NewPost applies the construction defaults in one place instead of
// null-checks at each call site.
func NewPost(title, content, author string) Post {
	return Post{
		Title:       strings.TrimSpace(title),
		Content:     strings.TrimSpace(content),
		Author:      defaultAuthor(author),
		UpvotedBy:   UserIDList{},
		DownvotedBy: UserIDList{},
	}
}

// NewReply applies the reply construction defaults.
func NewReply(postID uint, content, author string) Reply {
	return Reply{
		PostID:  postID,
		Content: strings.TrimSpace(content),
		Author:  defaultAuthor(author),
	}
}

func defaultAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return AnonymousAuthor
	}
	return author
}
