package persistence

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. Callers use errors.Is
// to distinguish these from transport/backend failures.
var (
	ErrNotFound         = errors.New("persistence: not found")
	ErrForbidden        = errors.New("persistence: forbidden")
	ErrRevisionConflict = errors.New("persistence: revision conflict")
)

// ChatSession is a persisted conversation thread. UserID is nil in
// single-tenant deployments that run without auth.
type ChatSession struct {
	ID                 string    `json:"id"`
	UserID             *int64    `json:"userId,omitempty"`
	Name               string    `json:"name"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	LastMessagePreview string    `json:"lastMessagePreview"`
	Model              string    `json:"model"`
	Summary            string    `json:"summary"`
	SummarizedCount    int       `json:"summarizedCount"`
}

// ChatMessage is a single turn within a ChatSession.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatStore persists conversation sessions and their message history.
// UserID is a pointer throughout so a nil-auth deployment can still scope
// sessions (always nil, always accessible) the same way an authenticated
// one scopes them to a specific owner.
type ChatStore interface {
	Init(ctx context.Context) error

	EnsureSession(ctx context.Context, userID *int64, id, name string) (ChatSession, error)
	CreateSession(ctx context.Context, userID *int64, name string) (ChatSession, error)
	GetSession(ctx context.Context, userID *int64, id string) (ChatSession, error)
	ListSessions(ctx context.Context, userID *int64) ([]ChatSession, error)
	RenameSession(ctx context.Context, userID *int64, id, name string) (ChatSession, error)
	DeleteSession(ctx context.Context, userID *int64, id string) error

	ListMessages(ctx context.Context, userID *int64, sessionID string, limit int) ([]ChatMessage, error)
	AppendMessages(ctx context.Context, userID *int64, sessionID string, messages []ChatMessage, preview string, model string) error
	UpdateSummary(ctx context.Context, userID *int64, sessionID string, summary string, summarizedCount int) error
}
