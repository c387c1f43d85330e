package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"paidqa/internal/errorz"
)

// PostMessage appends a message to the conversation between sender and receiver.
func (s *Store) PostMessage(ctx context.Context, m Message) (*Message, error) {
	if strings.TrimSpace(m.Content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", errorz.ErrValidation)
	}
	if m.SenderID == m.ReceiverID {
		return nil, fmt.Errorf("%w: sender and receiver must differ", errorz.ErrValidation)
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	if m.ConversationID == "" {
		m.ConversationID = ConversationID(m.SenderID, m.ReceiverID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var questionID any
	if m.QuestionID != 0 {
		questionID = m.QuestionID
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, type, question_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ConversationID, m.SenderID, m.ReceiverID, m.Content, string(m.Type), questionID, m.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if m.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &m, nil
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, type, COALESCE(question_id, 0), read, read_at, created_at`

func scanMessage(row interface{ Scan(...any) error }, extra ...any) (*Message, error) {
	var (
		m         Message
		msgType   string
		read      int
		readAt    sql.NullInt64
		createdAt int64
	)
	dest := append([]any{&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &msgType,
		&m.QuestionID, &read, &readAt, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.Type = MessageType(msgType)
	m.Read = read != 0
	m.ReadAt = fromNanos(readAt)
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return &m, nil
}

// ListMessages returns up to limit messages of a conversation, oldest first.
// A non-zero beforeID pages backwards: only messages older than that message
// are returned.
func (s *Store) ListMessages(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = ?
			  AND (? = 0 OR (created_at, id) < (SELECT created_at, id FROM messages WHERE id = ?))
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`, conversationID, beforeID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListConversations returns every conversation userID takes part in with its
// latest message and the number of messages still unread by userID, most
// recently active first.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]*ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`,
			(SELECT COUNT(*) FROM messages u
			 WHERE u.conversation_id = latest.conversation_id AND u.receiver_id = ? AND u.read = 0)
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY created_at DESC, id DESC) AS rn
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		) AS latest
		WHERE rn = 1
		ORDER BY created_at DESC, id DESC
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*ConversationSummary{}
	for rows.Next() {
		var unread int
		m, err := scanMessage(rows, &unread)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		other := m.ReceiverID
		if other == userID {
			other = m.SenderID
		}
		conversations = append(conversations, &ConversationSummary{
			ConversationID: m.ConversationID,
			OtherUserID:    other,
			LastMessage:    m,
			UnreadCount:    unread,
		})
	}
	return conversations, rows.Err()
}

// MarkConversationRead flags every unread message addressed to readerID as read.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID string, readerID int64, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET read = 1, read_at = ?
		WHERE conversation_id = ? AND receiver_id = ? AND read = 0
	`, at.UnixNano(), conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected()
}
