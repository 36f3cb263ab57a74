package sender

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/lib/smtp"
	"github.com/magabrotheeeer/inspectra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestService_Handle(t *testing.T) {
	guestLink := []byte(`{"template":"guestChatLink","to":"ada@example.com","name":"Ada",` +
		`"data":{"chatLink":"https://inspectra.example/guest-chat/tok","propertyTitle":"Flat on Allen Avenue"}}`)

	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
		errorMessage  string
	}{
		{
			name: "success - guest chat link",
			body: guestLink,
			setupMocks: func(t *MockTransport) {
				mockClient := new(MockSMTPClient)
				mockWriter := new(MockSMTPWriter)

				t.On("GetSMTPUser").Return("noreply@inspectra.example")
				t.On("Connect").Return(mockClient, nil).Once()
				mockClient.On("Mail", "noreply@inspectra.example").Return(nil).Once()
				mockClient.On("Rcpt", "ada@example.com").Return(nil).Once()
				mockClient.On("Data").Return(mockWriter, nil).Once()
				mockWriter.On("Write", mock.MatchedBy(func(p []byte) bool {
					return strings.Contains(string(p), "https://inspectra.example/guest-chat/tok")
				})).Return(100, nil).Once()
				mockWriter.On("Close").Return(nil).Once()
				mockClient.On("Quit").Return(nil).Once()
				mockClient.On("Close").Return(nil).Once()
			},
		},
		{
			name:          "invalid JSON",
			body:          []byte(`invalid json`),
			setupMocks:    func(_ *MockTransport) {},
			expectedError: true,
			errorMessage:  "error unmarshalling message",
		},
		{
			name:          "unknown template",
			body:          []byte(`{"template":"passwordReset","to":"ada@example.com"}`),
			setupMocks:    func(_ *MockTransport) {},
			expectedError: true,
			errorMessage:  "unknown template",
		},
		{
			name: "SMTP connection error",
			body: guestLink,
			setupMocks: func(t *MockTransport) {
				t.On("GetSMTPUser").Return("noreply@inspectra.example")
				t.On("Connect").Return(nil, errors.New("connection error")).Once()
			},
			expectedError: true,
			errorMessage:  "connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewService(transport, sl.Discard())

			tt.setupMocks(transport)

			err := service.Handle(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}

func TestRender_SubExpired(t *testing.T) {
	subject, body, err := Render(models.Notification{
		Template: "subExpiredNotification",
		To:       "ada@example.com",
		Name:     "Ada",
		Data:     map[string]string{"plan": "Starter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your Inspectra subscription has expired", subject)
	assert.Contains(t, body, "Hello Ada,")
	assert.Contains(t, body, "moved to the Starter plan")
}

func TestRender_MissingDataRendersEmpty(t *testing.T) {
	_, body, err := Render(models.Notification{Template: "guestChatLink", To: "ada@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, body, "<no value>")
}
