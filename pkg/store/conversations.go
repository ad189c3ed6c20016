package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"tradepost/pkg/logger"
	"tradepost/pkg/models"
	"tradepost/pkg/utils"
)

// seq breaks key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// noItemSentinel keys conversations that are not scoped to an item. "No
// item" is a distinct, stable key segment, never an absent field.
const noItemSentinel = "-"

func convDocKey(id string) string { return convPrefix + id }

// isConvDocKey distinguishes conversation documents ("conv:<id>") from
// message keys ("conv:<id>:msg:...") within the shared namespace.
func isConvDocKey(key string) bool {
	return !strings.Contains(strings.TrimPrefix(key, convPrefix), ":")
}

// pairKey builds the unique lookup key for a conversation: the unordered
// participant pair (sorted) plus the item id or the no-item sentinel.
func pairKey(a, b, itemID string) string {
	if b < a {
		a, b = b, a
	}
	ik := itemID
	if ik == "" {
		ik = noItemSentinel
	}
	return convKeyPrefix + a + ":" + b + ":" + ik
}

func msgPrefix(convID string) string { return convPrefix + convID + ":msg:" }

func newMsgKey(convID string, ts int64) string {
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%s%020d-%06d", msgPrefix(convID), ts, s)
}

// SaveConversation writes a conversation document.
func SaveConversation(c models.Conversation) error {
	return setJSON(convDocKey(c.ID), c)
}

// GetConversationDoc loads a conversation without an authorization check.
// Callers outside this package should prefer GetConversation.
func GetConversationDoc(id string) (models.Conversation, error) {
	var c models.Conversation
	err := getJSON(convDocKey(id), &c)
	return c, err
}

// GetConversation loads a conversation and verifies viewer is a
// participant. Existence is checked first: a missing conversation is
// ErrNotFound regardless of who asks.
func GetConversation(id, viewer string) (models.Conversation, error) {
	c, err := GetConversationDoc(id)
	if err != nil {
		return c, err
	}
	if !c.HasParticipant(viewer) {
		return models.Conversation{}, ErrForbidden
	}
	return c, nil
}

// CreateConversation finds the conversation keyed by the unordered
// {requester, receiver} pair and item (or no-item sentinel), creating it if
// absent, then appends the initial message. The pair+item lookup makes the
// whole operation idempotent under retry. Returns created=true when a new
// conversation document was written.
func CreateConversation(requester, receiver, itemID, content string) (models.Conversation, models.Message, bool, error) {
	key := pairKey(requester, receiver, itemID)
	created := false

	var c models.Conversation
	if id, err := getRaw(key); err == nil {
		c, err = GetConversationDoc(id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return c, models.Message{}, false, err
		}
		if errors.Is(err, ErrNotFound) {
			// dangling pair index (crash between index and doc writes);
			// rebuild the document under the indexed id
			c = models.Conversation{ID: id, Participants: []string{requester, receiver}, Item: itemID, CreatedTS: nowTS()}
			if err := SaveConversation(c); err != nil {
				return c, models.Message{}, false, err
			}
			created = true
		}
	} else if errors.Is(err, ErrNotFound) {
		ts := nowTS()
		c = models.Conversation{
			ID:           utils.GenConvID(),
			Participants: []string{requester, receiver},
			Item:         itemID,
			CreatedTS:    ts,
			UpdatedTS:    ts,
		}
		if err := SaveConversation(c); err != nil {
			return c, models.Message{}, false, err
		}
		if err := setRaw(key, c.ID); err != nil {
			return c, models.Message{}, false, err
		}
		created = true
		logger.Info("conversation_created", "conversation", c.ID, "item", itemID)
	} else {
		return c, models.Message{}, false, err
	}

	m, err := appendMessage(&c, requester, content)
	if err != nil {
		return c, m, created, err
	}
	return c, m, created, nil
}

// SendMessage validates sender is a participant and appends a message. The
// sender is in the read set from creation.
func SendMessage(convID, sender, content string) (models.Message, error) {
	c, err := GetConversation(convID, sender)
	if err != nil {
		return models.Message{}, err
	}
	return appendMessage(&c, sender, content)
}

// appendMessage writes the message document, indexes it by id, then bumps
// the conversation's last-message pointer and updated timestamp. The
// message is written before the pointer so a crash in between leaves the
// pointer stale, never dangling.
func appendMessage(c *models.Conversation, sender, content string) (models.Message, error) {
	ts := nowTS()
	m := models.Message{
		ID:           utils.GenMsgID(),
		Conversation: c.ID,
		Sender:       sender,
		Content:      content,
		ReadBy:       []string{sender},
		TS:           ts,
	}
	key := newMsgKey(c.ID, ts)
	if err := setJSON(key, m); err != nil {
		logger.Error("save_message_failed", "conversation", c.ID, "key", key, "error", err)
		return m, err
	}
	if err := setRaw(msgIdxPrefix+m.ID, key); err != nil {
		logger.Error("save_message_index_failed", "msg_id", m.ID, "error", err)
		return m, err
	}
	c.LastMessageID = m.ID
	c.UpdatedTS = ts
	if err := SaveConversation(*c); err != nil {
		return m, err
	}
	logger.Info("message_saved", "conversation", c.ID, "msg_id", m.ID)
	return m, nil
}

// GetMessage looks up a message by id through the id index.
func GetMessage(id string) (models.Message, error) {
	loc, err := getRaw(msgIdxPrefix + id)
	if err != nil {
		return models.Message{}, err
	}
	var m models.Message
	err = getJSON(loc, &m)
	return m, err
}

// listMessagesWithKeys returns all messages for a conversation in creation
// order along with their storage keys (needed for read-set rewrites).
func listMessagesWithKeys(convID string) ([]string, []models.Message, error) {
	keys := []string{}
	msgs := []models.Message{}
	err := scanPrefix(msgPrefix(convID), func(key string, val []byte) bool {
		var m models.Message
		if json.Unmarshal(val, &m) == nil {
			keys = append(keys, key)
			msgs = append(msgs, m)
		}
		return true
	})
	return keys, msgs, err
}

// ListMessages returns all messages of a conversation ordered by creation
// time ascending. When markRead is set, every message not authored by
// viewer is marked read by viewer before being returned — the deliberate
// read-coupled mutation of the thread view. The returned count is the
// number of messages whose read set changed.
func ListMessages(convID, viewer string, markRead bool) ([]models.Message, int, error) {
	if _, err := GetConversation(convID, viewer); err != nil {
		return nil, 0, err
	}
	keys, msgs, err := listMessagesWithKeys(convID)
	if err != nil {
		return nil, 0, err
	}
	modified := 0
	if markRead {
		for i := range msgs {
			if msgs[i].Sender == viewer {
				continue
			}
			if msgs[i].MarkReadBy(viewer) {
				if err := setJSON(keys[i], msgs[i]); err != nil {
					return nil, modified, err
				}
				modified++
			}
		}
		if modified > 0 {
			readMarksTotal.Add(float64(modified))
			logger.Info("messages_marked_read", "conversation", convID, "user", viewer, "count", modified)
		}
	}
	return msgs, modified, nil
}

// MarkRead adds viewer to the read set of every message in the
// conversation authored by someone else. Idempotent: a second call reports
// zero modified.
func MarkRead(convID, viewer string) (int, error) {
	_, n, err := ListMessages(convID, viewer, true)
	return n, err
}

// UnreadCount computes, for viewer, the number of messages in the
// conversation not authored by viewer and not yet read by viewer. Derived
// on demand, never cached.
func UnreadCount(convID, viewer string) (int, error) {
	count := 0
	err := scanPrefix(msgPrefix(convID), func(_ string, val []byte) bool {
		var m models.Message
		if json.Unmarshal(val, &m) == nil {
			if m.Sender != viewer && !m.ReadByUser(viewer) {
				count++
			}
		}
		return true
	})
	return count, err
}

// ListConversations returns every conversation viewer participates in,
// unsorted and unenriched.
func ListConversations(viewer string) ([]models.Conversation, error) {
	out := []models.Conversation{}
	err := scanPrefix(convPrefix, func(key string, val []byte) bool {
		if !isConvDocKey(key) {
			return true
		}
		var c models.Conversation
		if json.Unmarshal(val, &c) == nil && c.HasParticipant(viewer) {
			out = append(out, c)
		}
		return true
	})
	return out, err
}

// ListConversationViews returns viewer's conversations enriched with
// participant summaries, the item summary, the populated last message and
// the viewer's unread count, ordered by last-update time descending.
func ListConversationViews(viewer string) ([]models.ConversationView, error) {
	convs, err := ListConversations(viewer)
	if err != nil {
		return nil, err
	}
	views := make([]models.ConversationView, 0, len(convs))
	for i := range convs {
		v, err := BuildConversationView(convs[i], viewer)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].UpdatedTS > views[j].UpdatedTS })
	return views, nil
}

// BuildConversationView resolves a conversation's references into a
// response view for viewer.
func BuildConversationView(c models.Conversation, viewer string) (models.ConversationView, error) {
	v := models.ConversationView{
		ID:        c.ID,
		CreatedTS: c.CreatedTS,
		UpdatedTS: c.UpdatedTS,
	}
	for _, pid := range c.Participants {
		u, err := GetUser(pid)
		if errors.Is(err, ErrNotFound) {
			// deleted or never-seeded user; keep the reference visible
			u = models.User{ID: pid}
		} else if err != nil {
			return v, err
		}
		v.Participants = append(v.Participants, u)
	}
	if c.Item != "" {
		if it, err := GetItem(c.Item); err == nil {
			v.Item = &it
		} else if !errors.Is(err, ErrNotFound) {
			return v, err
		}
	}
	if c.LastMessageID != "" {
		if m, err := GetMessage(c.LastMessageID); err == nil {
			v.LastMessage = &m
			if u, err := GetUser(m.Sender); err == nil {
				v.LastSender = &u
			}
		} else if !errors.Is(err, ErrNotFound) {
			return v, err
		}
	}
	n, err := UnreadCount(c.ID, viewer)
	if err != nil {
		return v, err
	}
	v.UnreadCount = n
	return v, nil
}
