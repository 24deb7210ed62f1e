package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/trashposts/post-search/internal/errs"
	"github.com/trashposts/post-search/internal/model"
	"github.com/trashposts/post-search/internal/service"
)

// PostDeletedEvent is the value of a *.deleted message.
type PostDeletedEvent struct {
	ID string `json:"id"`
}

// HandlePostCreated indexes the Post carried in msg.Value.
func HandlePostCreated(ctx context.Context, msg kafka.Message, postSvc service.PostServicer) error {
	var post model.Post
	if err := json.Unmarshal(msg.Value, &post); err != nil {
		return fmt.Errorf("unmarshal post: %w", err)
	}
	published, err := model.NormalizeTimestamp(post.StatusPublished)
	if err != nil {
		return fmt.Errorf("status_published %q: %w", post.StatusPublished, err)
	}
	post.StatusPublished = published
	return postSvc.IndexPost(ctx, &post)
}

// HandlePostDeleted removes a post. Deleting an unknown post is not an error.
func HandlePostDeleted(ctx context.Context, msg kafka.Message, postSvc service.PostServicer) error {
	var ev PostDeletedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("unmarshal delete event: %w", err)
	}
	if strings.TrimSpace(ev.ID) == "" {
		return fmt.Errorf("delete event without id")
	}
	if err := postSvc.Delete(ctx, ev.ID); err != nil && !errs.Is(err, errs.ErrPostNotFound) {
		return err
	}
	return nil
}
