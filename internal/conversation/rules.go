package conversation

import "time"

// appendMessageRules implements the append algorithm's idempotency and
// near-duplicate merge rules against conv in place, returning the id of the
// message the call resolved to and whether the conversation's title changed
// as a result (set from the first user message).
func appendMessageRules(conv *Conversation, msg Message) (id string, titleChanged bool) {
	if msg.ClientMsgID != "" {
		for i := range conv.Messages {
			m := &conv.Messages[i]
			if m.Role == msg.Role && m.ClientMsgID == msg.ClientMsgID {
				m.GeneratedFiles = mergeGeneratedFiles(m.GeneratedFiles, msg.GeneratedFiles)
				m.UpdatedAt = time.Now().UTC()
				return m.ID, false
			}
		}
	}

	if n := len(conv.Messages); n > 0 {
		tail := &conv.Messages[n-1]
		if tail.Role == msg.Role && normalizeContent(tail.Content) == normalizeContent(msg.Content) {
			tail.GeneratedFiles = mergeGeneratedFiles(tail.GeneratedFiles, msg.GeneratedFiles)
			tail.UpdatedAt = time.Now().UTC()
			return tail.ID, false
		}
	}

	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = StatusCompleted
	}

	isFirstUser := msg.Role == RoleUser
	if isFirstUser {
		for _, m := range conv.Messages {
			if m.Role == RoleUser {
				isFirstUser = false
				break
			}
		}
	}

	conv.Messages = append(conv.Messages, msg)
	if isFirstUser {
		conv.Title = deriveTitle(msg.Content)
		return msg.ID, true
	}
	return msg.ID, false
}

// selectMessage resolves a MessageSelector to an index into messages, or -1
// if no message matches.
func selectMessage(messages []Message, sel MessageSelector) int {
	if sel.ID != "" {
		for i, m := range messages {
			if m.ID == sel.ID {
				return i
			}
		}
		return -1
	}
	if sel.ClientMsgID != "" {
		for i, m := range messages {
			if m.ClientMsgID == sel.ClientMsgID {
				return i
			}
		}
		return -1
	}
	if sel.LastInProgressAssistant {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == RoleAssistant && messages[i].Status == StatusInProgress {
				return i
			}
		}
		return -1
	}
	return -1
}

// applyPatch mutates m according to patch.
func applyPatch(m *Message, patch MessagePatch) {
	if patch.SetContent != nil {
		m.Content = *patch.SetContent
	}
	if patch.AppendContent != "" {
		m.Content += patch.AppendContent
	}
	if len(patch.MergeGeneratedFiles) > 0 {
		m.GeneratedFiles = mergeGeneratedFiles(m.GeneratedFiles, patch.MergeGeneratedFiles)
	}
	if patch.SetStatus != "" {
		m.Status = patch.SetStatus
	}
	m.UpdatedAt = time.Now().UTC()
}

// enqueuePendingImages adds entries to conv's pending-image queue. An entry
// whose Path already exists in the queue is a no-op; otherwise it is
// appended with the given detail and remaining-view count.
func enqueuePendingImages(conv *Conversation, entries []PendingImage) {
	for _, e := range entries {
		if e.RemainingViews <= 0 {
			e.RemainingViews = 1
		}
		if e.Detail == "" {
			e.Detail = "auto"
		}
		found := false
		for _, existing := range conv.PendingImages {
			if existing.Path == e.Path {
				found = true
				break
			}
		}
		if !found {
			conv.PendingImages = append(conv.PendingImages, e)
		}
	}
}

// removePendingImages drops every queue entry whose Path is in paths.
func removePendingImages(conv *Conversation, paths []string) {
	if len(paths) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[p] = struct{}{}
	}
	kept := conv.PendingImages[:0]
	for _, e := range conv.PendingImages {
		if _, ok := drop[e.Path]; !ok {
			kept = append(kept, e)
		}
	}
	conv.PendingImages = kept
}

// materializePendingImages returns the current queue contents and decrements
// each entry's remaining-view counter, evicting entries that reach zero. The
// decrement happens once the queue is materialized into an outgoing message.
func materializePendingImages(conv *Conversation) []PendingImage {
	out := append([]PendingImage(nil), conv.PendingImages...)
	kept := conv.PendingImages[:0]
	for _, e := range conv.PendingImages {
		e.RemainingViews--
		if e.RemainingViews > 0 {
			kept = append(kept, e)
		}
	}
	conv.PendingImages = kept
	return out
}
