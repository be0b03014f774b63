package services

import (
	"context"
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/models"
	"freedomwall/internal/providers"
	"slices"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	DefaultCollection = "freedomWall"

	fieldVisitorToken = "visitorToken"
)

type PostRepositoryInterface interface {
	Submit(ctx context.Context, name, message, visitorToken string, placement models.Placement) error
	SubscribeLiveFeed(onUpdate func([]models.Post), onError func(error)) docstore.Unsubscribe
	HasVisitorPosted(ctx context.Context, visitorToken string) (bool, error)
}

// postDocument is the stored shape of a post.
type postDocument struct {
	Name         string            `json:"name"`
	Message      string            `json:"message"`
	VisitorToken string            `json:"visitorToken"`
	Placement    *models.Placement `json:"placement,omitempty"`
}

type PostRepository struct {
	store      docstore.DocumentStore
	collection string
	logger     providers.Logger
}

func NewPostRepository(store docstore.DocumentStore, collection string, logger providers.Logger) PostRepositoryInterface {
	if collection == "" {
		collection = DefaultCollection
	}
	return &PostRepository{
		store:      store,
		collection: collection,
		logger:     logger,
	}
}

func (pr *PostRepository) Submit(ctx context.Context, name, message, visitorToken string, placement models.Placement) error {
	data, err := toData(postDocument{
		Name:         name,
		Message:      message,
		VisitorToken: visitorToken,
		Placement:    &placement,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrWrite, err)
	}
	id, err := pr.store.Append(ctx, pr.collection, data)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrWrite, err)
	}
	pr.logger.Debugf(providers.TypePost, "Post %s written to %s", id, pr.collection)
	return nil
}

func (pr *PostRepository) SubscribeLiveFeed(onUpdate func([]models.Post), onError func(error)) docstore.Unsubscribe {
	unsubscribe := pr.store.SubscribeOrdered(pr.collection, docstore.FieldCreatedAt, docstore.Descending,
		func(records []docstore.Record) {
			onUpdate(pr.toPosts(records))
		},
		func(err error) {
			if onError != nil {
				onError(fmt.Errorf("%w: %w", models.ErrFeedSync, err))
			}
		})

	var once sync.Once
	return func() { once.Do(unsubscribe) }
}

func (pr *PostRepository) HasVisitorPosted(ctx context.Context, visitorToken string) (bool, error) {
	records, err := pr.store.QueryWhere(ctx, pr.collection, fieldVisitorToken, visitorToken)
	if err != nil {
		return false, fmt.Errorf("query posts by visitor: %w", err)
	}
	return len(records) > 0, nil
}

// toPosts converts records newest first, ties by id. Records that do not
// decode as posts are skipped.
func (pr *PostRepository) toPosts(records []docstore.Record) []models.Post {
	posts := make([]models.Post, 0, len(records))
	for _, rec := range records {
		post, err := toPost(rec)
		if err != nil {
			pr.logger.Warnf(providers.TypeGet, "Skipping malformed record %s: %s", rec.ID, err)
			continue
		}
		posts = append(posts, post)
	}
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return posts
}

func toPost(rec docstore.Record) (models.Post, error) {
	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return models.Post{}, err
	}
	var doc postDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Post{}, err
	}
	return models.Post{
		ID:           rec.ID,
		Name:         doc.Name,
		Message:      doc.Message,
		CreatedAt:    rec.CreatedAt,
		VisitorToken: doc.VisitorToken,
		Placement:    doc.Placement,
	}, nil
}

func toData(doc postDocument) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
