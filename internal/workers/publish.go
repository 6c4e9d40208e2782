package workers

import (
	"context"

	"contentfactory/internal/services"
	"contentfactory/internal/services/wordpress"
	"contentfactory/internal/stage"
)

// upsertPost updates existingID when set, otherwise creates the post. In
// test mode no request is made and a placeholder id is returned.
func (b base) upsertPost(ctx context.Context, opts stage.Options, existingID int64, post wordpress.Post) (int64, error) {
	if opts.TestMode {
		if existingID > 0 {
			return existingID, nil
		}
		return nextTestPostID(), nil
	}
	if err := b.requirePublisher(); err != nil {
		return 0, err
	}
	if existingID > 0 {
		ref, err := b.deps.Publisher.UpdatePost(ctx, existingID, wordpress.PostPatch{
			Title:   post.Title,
			Content: post.Content,
			Excerpt: post.Excerpt,
			Slug:    post.Slug,
			Meta:    post.Meta,
		})
		if err != nil {
			return 0, services.Wrap(services.ErrExternalTool, b.id, "update post", "", err)
		}
		if ref.ID > 0 {
			return ref.ID, nil
		}
		return existingID, nil
	}
	ref, err := b.deps.Publisher.CreatePost(ctx, post)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, b.id, "create post", "", err)
	}
	return ref.ID, nil
}
