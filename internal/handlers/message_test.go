package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contact-service/internal/mocks"
	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/plan"
	"contact-service/internal/repositories"
	"contact-service/internal/ws"
)

// recordingPublisher captures envelopes pushed at the event bus.
type recordingPublisher struct {
	envelopes []observability.EventEnvelope
}

func (p *recordingPublisher) PublishJSON(_ context.Context, _ string, message interface{}, _ map[string]string) error {
	if env, ok := message.(observability.EventEnvelope); ok {
		p.envelopes = append(p.envelopes, env)
	}
	return nil
}

func (p *recordingPublisher) names() []string {
	var out []string
	for _, env := range p.envelopes {
		out = append(out, env.EventName)
	}
	return out
}

type messageMocks struct {
	convRepo    *mocks.ConversationRepositoryMock
	messageRepo *mocks.MessageRepositoryMock
	contactRepo *mocks.ContactRepositoryMock
	userRepo    *mocks.UserRepositoryMock
	notifRepo   *mocks.NotificationRepositoryMock
	store       *mocks.AttachmentStoreMock
}

func setupMessageRouter() (*gin.Engine, messageMocks) {
	m := messageMocks{
		convRepo:    new(mocks.ConversationRepositoryMock),
		messageRepo: new(mocks.MessageRepositoryMock),
		contactRepo: new(mocks.ContactRepositoryMock),
		userRepo:    new(mocks.UserRepositoryMock),
		notifRepo:   new(mocks.NotificationRepositoryMock),
		store:       new(mocks.AttachmentStoreMock),
	}
	handler := NewMessageHandler(m.convRepo, m.messageRepo, m.contactRepo, m.userRepo, m.notifRepo,
		plan.NewResolver(m.userRepo), m.store, ws.NewHub())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages", handler.ListMessages)
	r.POST("/conversations/:conversation_id/messages", handler.SendText)
	r.POST("/conversations/:conversation_id/attachments", handler.SendAttachment)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	r.DELETE("/conversations/:conversation_id/messages/:message_id", handler.DeleteMessage)
	return r, m
}

func acceptedConversation(m messageMocks) {
	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.contactRepo.On("GetPair", mock.Anything, int64(1), int64(2)).
		Return(models.Contact{ID: 4, UserA: 1, UserB: 2, Status: models.PairAccepted, ConversationID: "conv-1"}, nil).Once()
}

func TestSendTextSuccess(t *testing.T) {
	router, m := setupMessageRouter()
	acceptedConversation(m)

	m.messageRepo.On("CreateMessage", mock.Anything, repositories.NewMessage{
		ConversationID: "conv-1", SenderID: 1, RecipientID: 2, Body: "hola", Type: models.MessageText,
	}).Return(models.Message{ID: 7, ConversationID: "conv-1", SenderID: 1, RecipientID: 2, Body: "hola", Type: models.MessageText}, nil).Once()
	m.userRepo.On("GetPlan", mock.Anything, int64(2)).Return("basic", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	m.messageRepo.AssertExpectations(t)
	// Recipient is on basic, so no push notification is written.
	m.notifRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendTextNotifiesProRecipient(t *testing.T) {
	router, m := setupMessageRouter()
	acceptedConversation(m)

	m.messageRepo.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 7, ConversationID: "conv-1", SenderID: 1, RecipientID: 2, Body: "hola", Type: models.MessageText}, nil).Once()
	m.userRepo.On("GetPlan", mock.Anything, int64(2)).Return("pro", nil).Once()
	m.userRepo.On("GetUser", mock.Anything, int64(1)).Return(models.User{ID: 1, DisplayName: "Alice"}, nil).Once()
	m.notifRepo.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == 2 && n.Type == models.NotifyNewMessage
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	m.notifRepo.AssertExpectations(t)
}

func TestSendTextPublishesBusEvent(t *testing.T) {
	pub := &recordingPublisher{}
	observability.SetPublisher(pub)
	defer observability.SetPublisher(nil)

	router, m := setupMessageRouter()
	acceptedConversation(m)

	m.messageRepo.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: 7, ConversationID: "conv-1", SenderID: 1, RecipientID: 2, Body: "hola", Type: models.MessageText}, nil).Once()
	m.userRepo.On("GetPlan", mock.Anything, int64(2)).Return("basic", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, pub.names(), "message.sent")
}

func TestSendTextBlockedPair(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.contactRepo.On("GetPair", mock.Anything, int64(1), int64(2)).
		Return(models.Contact{ID: 4, UserA: 1, UserB: 2, Status: models.PairAccepted, BBlocked: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	m.messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendTextPendingPair(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.contactRepo.On("GetPair", mock.Anything, int64(1), int64(2)).
		Return(models.Contact{ID: 4, UserA: 1, UserB: 2, Status: models.PairPending, RequestedBy: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendTextNonMember(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 5, UserB: 6}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", bytes.NewBufferString(`{"body":"hola"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendAttachmentDeniedBeforeUpload(t *testing.T) {
	router, m := setupMessageRouter()
	acceptedConversation(m)

	// Pro includes push and sharing but not attachments.
	m.userRepo.On("GetPlan", mock.Anything, int64(1)).Return("pro", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/attachments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesChronologicalOrder(t *testing.T) {
	router, m := setupMessageRouter()

	now := time.Now()
	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	// Unlimited history plans query with a zero cutoff.
	m.messageRepo.On("ListMessages", mock.Anything, "conv-1", 50, int64(0), time.Time{}).Return([]models.Message{
		{ID: 2, ConversationID: "conv-1", Body: "second", CreatedAt: now},
		{ID: 1, ConversationID: "conv-1", Body: "first", CreatedAt: now.Add(-time.Minute)},
	}, nil).Once()
	m.userRepo.On("GetPlan", mock.Anything, int64(1)).Return("enterprise", nil).Once()
	m.messageRepo.On("MarkDelivered", mock.Anything, "conv-1", int64(1)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, int64(1), resp.Messages[0].ID)
	require.Equal(t, int64(2), resp.Messages[1].ID)
	m.messageRepo.AssertExpectations(t)
}

func TestListMessagesHistoryWindowBoundsQuery(t *testing.T) {
	router, m := setupMessageRouter()

	now := time.Now()
	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	// Basic keeps 30 days of history, so the repository is queried with
	// a cutoff roughly 30 days back instead of trimming after the fetch.
	m.messageRepo.On("ListMessages", mock.Anything, "conv-1", 50, int64(0), mock.MatchedBy(func(since time.Time) bool {
		age := now.Sub(since)
		return age > 29*24*time.Hour && age < 31*24*time.Hour
	})).Return([]models.Message{
		{ID: 2, ConversationID: "conv-1", CreatedAt: now},
	}, nil).Once()
	m.userRepo.On("GetPlan", mock.Anything, int64(1)).Return("basic", nil).Once()
	m.messageRepo.On("MarkDelivered", mock.Anything, "conv-1", int64(1)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, int64(2), resp.Messages[0].ID)
	m.messageRepo.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.messageRepo.On("MarkRead", mock.Anything, "conv-1", int64(1)).Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 3, resp["updated"])
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.messageRepo.On("GetMessage", mock.Anything, int64(9)).
		Return(models.Message{ID: 9, ConversationID: "conv-1", SenderID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/conv-1/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.messageRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeleteMessageRemovesAttachmentBlob(t *testing.T) {
	router, m := setupMessageRouter()

	msg := models.Message{ID: 9, ConversationID: "conv-1", SenderID: 1, Type: models.MessageImage}
	msg.AttachmentURL.Valid = true
	msg.AttachmentURL.String = "/attachments/abc123"

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.messageRepo.On("GetMessage", mock.Anything, int64(9)).Return(msg, nil).Once()
	m.store.On("Delete", mock.Anything, "abc123").Return(nil).Once()
	m.messageRepo.On("SoftDelete", mock.Anything, int64(9)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/conv-1/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	m.store.AssertExpectations(t)
	m.messageRepo.AssertExpectations(t)
}

func TestDeleteMessageWrongConversation(t *testing.T) {
	router, m := setupMessageRouter()

	m.convRepo.On("GetConversation", mock.Anything, "conv-1").
		Return(models.Conversation{ID: "conv-1", UserA: 1, UserB: 2}, nil).Once()
	m.messageRepo.On("GetMessage", mock.Anything, int64(9)).
		Return(models.Message{ID: 9, ConversationID: "conv-2", SenderID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/conv-1/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.messageRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}
