package fcm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rockfish84/kakaotalk-server-backend/internal/platform/fcm"
	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockClient) SendEach(ctx context.Context, msgs []*messaging.Message) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, msgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.BatchResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(token string) dispatch.Request {
	return dispatch.Request{
		Token:    token,
		Payload:  dispatch.Payload{Type: "msg", Content: "hi"},
		Priority: dispatch.PriorityHigh,
	}
}

func TestFCMDispatcher_Send(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()

	t.Run("Happy Path - builds a high priority data message", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		mockClient.On("Send", ctx, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Token == "token-1" &&
				m.Data["type"] == "msg" &&
				m.Data["content"] == "hi" &&
				m.Data["emoticonRes"] == "" &&
				m.Android != nil && m.Android.Priority == "high" &&
				m.APNS != nil && m.APNS.Headers["apns-priority"] == "10"
		})).Return("projects/p/messages/1", nil)

		id, err := dispatcher.Send(ctx, request("token-1"))

		require.NoError(t, err)
		assert.Equal(t, "projects/p/messages/1", id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Rejection becomes a delivery error", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)
		mockClient.On("Send", ctx, mock.Anything).Return("", errors.New("network down"))

		_, err := dispatcher.Send(ctx, request("token-1"))

		var dErr *dispatch.DeliveryError
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, "network down", dErr.Message)
		assert.Empty(t, dErr.Code)
	})
}

func TestFCMDispatcher_SendBatch(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()

	t.Run("Maps responses in input order", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		mockClient.On("SendEach", ctx, mock.MatchedBy(func(msgs []*messaging.Message) bool {
			return len(msgs) == 2 && msgs[0].Token == "token-1" && msgs[1].Token == "token-2"
		})).Return(&messaging.BatchResponse{
			SuccessCount: 1,
			FailureCount: 1,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: false, Error: errors.New("Requested entity was not found.")},
			},
		}, nil)

		results, err := dispatcher.SendBatch(ctx, []dispatch.Request{request("token-1"), request("token-2")})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "msg-1", results[0].ID)
		assert.NoError(t, results[0].Err)
		assert.EqualError(t, results[1].Err, "Requested entity was not found.")
		mockClient.AssertExpectations(t)
	})

	t.Run("Batch rejection is provider-wide", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)
		mockClient.On("SendEach", ctx, mock.Anything).Return(nil, errors.New("invalid credentials"))

		_, err := dispatcher.SendBatch(ctx, []dispatch.Request{request("token-1")})

		var pErr *dispatch.ProviderWideError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, "fcm", pErr.Provider)
		assert.Equal(t, "invalid credentials", pErr.Message)
	})

	t.Run("Advertises the FCM batch limit", func(t *testing.T) {
		dispatcher := fcm.NewDispatcher(new(MockClient), logger)
		assert.Equal(t, 500, dispatcher.MaxBatchSize())
		assert.Equal(t, "fcm", dispatcher.Name())
	})
}
