package service

import (
	"context"
	"errors"
	"io"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_SendFailureIsLogged(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	n := NewNotificationService(mailer, repository.NewUserRepository(db))
	student := createUser(t, db, model.Student)

	deadline := testNow.Add(30 * 24 * time.Hour)
	n.NotifySuspension(&model.StudentSuspension{StudentID: student.ID, Reason: "Maximum module attempts exhausted", AppealDeadline: deadline})
	n.NotifyAppealDecision(&model.StudentSuspension{StudentID: student.ID, Reinstated: true, AdditionalAttemptsGranted: 2})
	// 收件人不存在时不发送
	n.NotifyAppealDecision(&model.StudentSuspension{StudentID: student.ID + 100})
	n.Wait()

	sent := mailer.Sent()
	require.Len(t, sent, 2)
	subjects := []string{sent[0].Subject, sent[1].Subject}
	assert.ElementsMatch(t, []string{"Course access suspended", "Your appeal has been reviewed"}, subjects)
	for _, m := range sent {
		assert.Equal(t, student.Email, m.ToAddress)
		if m.Subject == "Your appeal has been reviewed" {
			assert.Contains(t, m.Body, "2 additional attempt(s)")
		} else {
			assert.Contains(t, m.Body, deadline.Format("2006-01-02"))
		}
	}
}

func TestNewMailer(t *testing.T) {
	_, ok := NewMailer(&config.MailConfig{}).(LogMailer)
	assert.True(t, ok)
	_, ok = NewMailer(&config.MailConfig{SendgridAPIKey: "key"}).(*SendgridMailer)
	assert.True(t, ok)
}

func TestSendgridMailer(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody []byte
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	prev := sendgridHost
	sendgridHost = srv.URL
	defer func() { sendgridHost = prev }()

	m := NewSendgridMailer(&config.MailConfig{SendgridAPIKey: "sg-key", FromName: "LMS", FromAddress: "noreply@example.com"})
	err := m.Send(context.Background(), Mail{ToName: "Ada", ToAddress: "ada@example.com", Subject: "Hello", Body: "Body text"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Contains(t, string(gotBody), `"subject":"Hello"`)
	assert.Contains(t, string(gotBody), "ada@example.com")

	status = http.StatusUnauthorized
	err = m.Send(context.Background(), Mail{ToAddress: "ada@example.com", Subject: "Hello", Body: "x"})
	assert.Error(t, err)
}
