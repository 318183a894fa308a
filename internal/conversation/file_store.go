package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const indexFileName = "index.json"

// FileConversationStore persists one JSON document per conversation under
// {root}/{username}/{YYYY-MM}/{timestamp}_{conv_id}.json, backed by a single
// index.json at the root holding the rebuildable metadata map.
type FileConversationStore struct {
	root          string
	workspaceRoot string

	idxMu sync.RWMutex
	index map[string]Metadata

	locks sync.Map // conv_id -> *sync.Mutex
}

// NewFileStore constructs a FileConversationStore rooted at dir, creating it
// and loading (or initializing) its index.json. workspaceDir is the parent
// directory under which each conversation's output directory is created.
func NewFileStore(dir, workspaceDir string) (*FileConversationStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversations dir: %w", err)
	}
	if workspaceDir != "" {
		if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation workspaces dir: %w", err)
		}
	}
	s := &FileConversationStore{root: dir, workspaceRoot: workspaceDir, index: map[string]Metadata{}}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileConversationStore) loadIndex() error {
	path := filepath.Join(s.root, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	return json.Unmarshal(data, &s.index)
}

// saveIndexLocked writes the index atomically. Callers must hold idxMu for writing.
func (s *FileConversationStore) saveIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, indexFileName), data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".conversation-write-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileConversationStore) lockFor(convID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(convID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func ownerDir(username string) string {
	if strings.TrimSpace(username) == "" {
		return "anonymous"
	}
	return username
}

func compactTimestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

func (s *FileConversationStore) conversationPath(meta Metadata) string {
	shard := meta.CreatedAt.UTC().Format("2006-01")
	fname := fmt.Sprintf("%s_%s.json", compactTimestamp(meta.CreatedAt), meta.ConvID)
	return filepath.Join(s.root, ownerDir(meta.User), shard, fname)
}

func hasAccess(caller, owner string) bool {
	if strings.TrimSpace(owner) == "" {
		return true
	}
	return caller == owner
}

func (s *FileConversationStore) Create(ctx context.Context, model, username string) (string, error) {
	id := newConvID()
	now := time.Now().UTC()
	outputDir := fmt.Sprintf("%s_%s", compactTimestamp(now), id)

	conv := Conversation{
		ConvID:        id,
		User:          username,
		Model:         model,
		CreatedAt:     now,
		UpdatedAt:     now,
		OutputDir:     outputDir,
		Messages:      []Message{},
		PendingImages: []PendingImage{},
	}
	meta := metadataOf(conv)

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path := s.conversationPath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create conversation shard dir: %w", err)
	}
	if err := s.writeConversation(conv, path); err != nil {
		return "", err
	}
	if s.workspaceRoot != "" {
		if err := os.MkdirAll(filepath.Join(s.workspaceRoot, outputDir), 0o755); err != nil {
			return "", fmt.Errorf("create conversation workspace: %w", err)
		}
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.index[id] = meta
	if err := s.saveIndexLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileConversationStore) writeConversation(conv Conversation, path string) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

func (s *FileConversationStore) readConversation(meta Metadata) (Conversation, error) {
	data, err := os.ReadFile(s.conversationPath(meta))
	if err != nil {
		return Conversation{}, err
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (s *FileConversationStore) metaFor(convID string) (Metadata, bool) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	meta, ok := s.index[convID]
	return meta, ok
}

func (s *FileConversationStore) Get(ctx context.Context, convID, username string) (Conversation, error) {
	meta, ok := s.metaFor(convID)
	if !ok {
		return Conversation{}, ErrNotFound
	}
	if !hasAccess(username, meta.User) {
		return Conversation{}, ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()
	return s.readConversation(meta)
}

func (s *FileConversationStore) List(ctx context.Context, username, model string) ([]Metadata, error) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	out := make([]Metadata, 0, len(s.index))
	for _, meta := range s.index {
		if !hasAccess(username, meta.User) {
			continue
		}
		if model != "" && meta.Model != model {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FileConversationStore) Delete(ctx context.Context, convID, username string) error {
	meta, ok := s.metaFor(convID)
	if !ok {
		return nil
	}
	if !hasAccess(username, meta.User) {
		return ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	_ = os.Remove(s.conversationPath(meta))
	lock.Unlock()

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	delete(s.index, convID)
	return s.saveIndexLocked()
}

func (s *FileConversationStore) AppendMessage(ctx context.Context, convID, username string, msg Message) (string, error) {
	meta, ok := s.metaFor(convID)
	if !ok {
		return "", ErrNotFound
	}
	if !hasAccess(username, meta.User) {
		return "", ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.readConversation(meta)
	if err != nil {
		return "", fmt.Errorf("read conversation: %w", err)
	}

	id, titleChanged := appendMessageRules(&conv, msg)
	conv.UpdatedAt = time.Now().UTC()
	if err := s.writeConversation(conv, s.conversationPath(meta)); err != nil {
		return "", err
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	meta.UpdatedAt = conv.UpdatedAt
	if titleChanged {
		meta.Title = conv.Title
	}
	s.index[convID] = meta
	if err := s.saveIndexLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileConversationStore) UpdateMessage(ctx context.Context, convID, username string, sel MessageSelector, patch MessagePatch) error {
	meta, ok := s.metaFor(convID)
	if !ok {
		return ErrNotFound
	}
	if !hasAccess(username, meta.User) {
		return ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.readConversation(meta)
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}
	idx := selectMessage(conv.Messages, sel)
	if idx < 0 {
		return ErrNotFound
	}
	applyPatch(&conv.Messages[idx], patch)
	conv.UpdatedAt = time.Now().UTC()
	if err := s.writeConversation(conv, s.conversationPath(meta)); err != nil {
		return err
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	meta.UpdatedAt = conv.UpdatedAt
	s.index[convID] = meta
	return s.saveIndexLocked()
}

func (s *FileConversationStore) SetModel(ctx context.Context, convID, username, model string) error {
	meta, ok := s.metaFor(convID)
	if !ok {
		return ErrNotFound
	}
	if !hasAccess(username, meta.User) {
		return ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.readConversation(meta)
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}
	conv.Model = model
	conv.UpdatedAt = time.Now().UTC()
	if err := s.writeConversation(conv, s.conversationPath(meta)); err != nil {
		return err
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	meta.Model = model
	meta.UpdatedAt = conv.UpdatedAt
	s.index[convID] = meta
	return s.saveIndexLocked()
}

func (s *FileConversationStore) withConversation(ctx context.Context, convID, username string, mutate func(*Conversation)) error {
	meta, ok := s.metaFor(convID)
	if !ok {
		return ErrNotFound
	}
	if !hasAccess(username, meta.User) {
		return ErrForbidden
	}

	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.readConversation(meta)
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}
	mutate(&conv)
	conv.UpdatedAt = time.Now().UTC()
	if err := s.writeConversation(conv, s.conversationPath(meta)); err != nil {
		return err
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	meta.UpdatedAt = conv.UpdatedAt
	s.index[convID] = meta
	return s.saveIndexLocked()
}

func (s *FileConversationStore) EnqueueImages(ctx context.Context, convID, username string, entries []PendingImage) error {
	return s.withConversation(ctx, convID, username, func(conv *Conversation) {
		enqueuePendingImages(conv, entries)
	})
}

func (s *FileConversationStore) RemoveImages(ctx context.Context, convID, username string, paths []string) error {
	return s.withConversation(ctx, convID, username, func(conv *Conversation) {
		removePendingImages(conv, paths)
	})
}

func (s *FileConversationStore) ClearImages(ctx context.Context, convID, username string) error {
	return s.withConversation(ctx, convID, username, func(conv *Conversation) {
		conv.PendingImages = nil
	})
}

func (s *FileConversationStore) ListImages(ctx context.Context, convID, username string) ([]PendingImage, error) {
	conv, err := s.Get(ctx, convID, username)
	if err != nil {
		return nil, err
	}
	return append([]PendingImage(nil), conv.PendingImages...), nil
}

func (s *FileConversationStore) MaterializeImages(ctx context.Context, convID, username string) ([]PendingImage, error) {
	var out []PendingImage
	err := s.withConversation(ctx, convID, username, func(conv *Conversation) {
		out = materializePendingImages(conv)
	})
	return out, err
}
