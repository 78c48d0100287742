package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"contact-service/internal/models"
	"contact-service/internal/repositories"
	"contact-service/internal/storage"
)

type ContactRepositoryMock struct {
	mock.Mock
}

func (m *ContactRepositoryMock) CreateRequest(ctx context.Context, senderID, recipientID int64) (models.Contact, error) {
	args := m.Called(ctx, senderID, recipientID)
	var contact models.Contact
	if val := args.Get(0); val != nil {
		contact = val.(models.Contact)
	}
	return contact, args.Error(1)
}

func (m *ContactRepositoryMock) GetPair(ctx context.Context, userID, peerID int64) (models.Contact, error) {
	args := m.Called(ctx, userID, peerID)
	var contact models.Contact
	if val := args.Get(0); val != nil {
		contact = val.(models.Contact)
	}
	return contact, args.Error(1)
}

func (m *ContactRepositoryMock) CountActive(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *ContactRepositoryMock) SetStatus(ctx context.Context, contactID int64, status string) error {
	args := m.Called(ctx, contactID, status)
	return args.Error(0)
}

func (m *ContactRepositoryMock) Delete(ctx context.Context, contactID int64) error {
	args := m.Called(ctx, contactID)
	return args.Error(0)
}

func (m *ContactRepositoryMock) SetBlocked(ctx context.Context, contactID int64, sideA, blocked bool) error {
	args := m.Called(ctx, contactID, sideA, blocked)
	return args.Error(0)
}

func (m *ContactRepositoryMock) SetFavorite(ctx context.Context, contactID int64, sideA, favorite bool) error {
	args := m.Called(ctx, contactID, sideA, favorite)
	return args.Error(0)
}

func (m *ContactRepositoryMock) ListEdges(ctx context.Context, userID int64, filter string) ([]models.EdgeView, error) {
	args := m.Called(ctx, userID, filter)
	var edges []models.EdgeView
	if val := args.Get(0); val != nil {
		edges = val.([]models.EdgeView)
	}
	return edges, args.Error(1)
}

func (m *ContactRepositoryMock) TotalUnread(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *ContactRepositoryMock) AcceptedPeerIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var peers []int64
	if val := args.Get(0); val != nil {
		peers = val.([]int64)
	}
	return peers, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, params repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, params)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID string, limit int, beforeID int64, since time.Time) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, beforeID, since)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, conversationID string, recipientID int64) error {
	args := m.Called(ctx, conversationID, recipientID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID string, readerID int64) (int, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID string, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertProfile(ctx context.Context, userID int64, email, displayName, photoURL string) (models.User, error) {
	args := m.Called(ctx, userID, email, displayName, photoURL)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SearchByEmailPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]models.User, error) {
	args := m.Called(ctx, prefix, excludeID, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) GetPlan(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *UserRepositoryMock) SetPlan(ctx context.Context, userID int64, plan string) error {
	args := m.Called(ctx, userID, plan)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID int64, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetPresence(ctx context.Context, userID int64) (models.Presence, error) {
	args := m.Called(ctx, userID)
	var presence models.Presence
	if val := args.Get(0); val != nil {
		presence = val.(models.Presence)
	}
	return presence, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, notif models.Notification) error {
	args := m.Called(ctx, notif)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	var notifs []models.Notification
	if val := args.Get(0); val != nil {
		notifs = val.([]models.Notification)
	}
	return notifs, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID int64) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

type AttachmentStoreMock struct {
	mock.Mock
}

func (m *AttachmentStoreMock) Upload(ctx context.Context, conversationID, filename, mimeType string, content io.Reader) (storage.Attachment, error) {
	args := m.Called(ctx, conversationID, filename, mimeType, content)
	var att storage.Attachment
	if val := args.Get(0); val != nil {
		att = val.(storage.Attachment)
	}
	return att, args.Error(1)
}

func (m *AttachmentStoreMock) Open(ctx context.Context, fileID string) (io.ReadCloser, storage.Attachment, error) {
	args := m.Called(ctx, fileID)
	var stream io.ReadCloser
	if val := args.Get(0); val != nil {
		stream = val.(io.ReadCloser)
	}
	var att storage.Attachment
	if val := args.Get(1); val != nil {
		att = val.(storage.Attachment)
	}
	return stream, att, args.Error(2)
}

func (m *AttachmentStoreMock) Delete(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

var _ repositories.ContactRepository = (*ContactRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ storage.AttachmentStore = (*AttachmentStoreMock)(nil)
