package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
)

// usersMapping keeps emails and ids exact-match and names full-text.
const usersMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "email":       {"type": "keyword"},
      "name":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "avatar_url":  {"type": "keyword", "index": false},
      "role":        {"type": "keyword"},
      "is_verified": {"type": "boolean"},
      "course_ids":  {"type": "keyword"},
      "created_at":  {"type": "date"},
      "updated_at":  {"type": "date"}
    }
  }
}`

// UserIndexer writes user documents to the users index. A nil client
// disables indexing.
type UserIndexer struct {
	ES      *elasticsearch.Client
	Index   string
	Timeout time.Duration
}

func NewUserIndexer(es *elasticsearch.Client, index string) *UserIndexer {
	return &UserIndexer{ES: es, Index: index, Timeout: 3 * time.Second}
}

type userDocument struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	AvatarURL  string   `json:"avatar_url,omitempty"`
	Role       string   `json:"role"`
	IsVerified bool     `json:"is_verified"`
	CourseIDs  []string `json:"course_ids"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func newUserDocument(u *entity.User) userDocument {
	courses := u.CourseIDs
	if courses == nil {
		courses = []string{}
	}
	return userDocument{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		AvatarURL:  u.Avatar.URL,
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
		CourseIDs:  courses,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  u.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// EnsureIndex creates the users index with its mapping on first start.
func (i *UserIndexer) EnsureIndex(ctx context.Context) (bool, error) {
	if i == nil || i.ES == nil || i.Index == "" {
		return false, nil
	}
	return helpers.EnsureIndex(ctx, i.ES, i.Index, []byte(usersMapping))
}

func (i *UserIndexer) IndexUser(ctx context.Context, u *entity.User) error {
	if i == nil || i.ES == nil || i.Index == "" {
		return nil
	}
	b, err := json.Marshal(newUserDocument(u))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: i.Index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}

	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := req.Do(c, i.ES)
	if err != nil {
		return fmt.Errorf("index user %s: %w", u.ID, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index user %s: %s", u.ID, res.Status())
	}
	return nil
}
