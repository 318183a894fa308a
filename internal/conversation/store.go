package conversation

import "context"

// Store persists conversations and their message history. Implementations
// must serialize writers per conv_id and keep the index consistent with an
// atomic write-tmp-then-rename on every mutating operation.
type Store interface {
	Create(ctx context.Context, model, username string) (convID string, err error)
	Get(ctx context.Context, convID, username string) (Conversation, error)
	List(ctx context.Context, username, model string) ([]Metadata, error)
	Delete(ctx context.Context, convID, username string) error

	AppendMessage(ctx context.Context, convID, username string, msg Message) (id string, err error)
	UpdateMessage(ctx context.Context, convID, username string, sel MessageSelector, patch MessagePatch) error
	SetModel(ctx context.Context, convID, username, model string) error

	// EnqueueImages adds entries to the conversation's pending-image queue,
	// deduplicated by path.
	EnqueueImages(ctx context.Context, convID, username string, entries []PendingImage) error
	// RemoveImages drops queue entries matching the given paths.
	RemoveImages(ctx context.Context, convID, username string, paths []string) error
	// ClearImages empties the pending-image queue.
	ClearImages(ctx context.Context, convID, username string) error
	// ListImages returns the current queue contents without mutating it.
	ListImages(ctx context.Context, convID, username string) ([]PendingImage, error)
	// MaterializeImages returns the current queue contents and decrements
	// every entry's remaining-view counter, evicting entries that reach
	// zero.
	MaterializeImages(ctx context.Context, convID, username string) ([]PendingImage, error)
}
