package service

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"net/http"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mail 一封纯文本邮件
type Mail struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer 通过 SendGrid v3 接口发信
type SendgridMailer struct {
	key  string
	from *sgmail.Email
}

func NewSendgridMailer(cfg *config.MailConfig) *SendgridMailer {
	return &SendgridMailer{
		key:  cfg.SendgridAPIKey,
		from: sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

func (m *SendgridMailer) Send(ctx context.Context, mail Mail) error {
	p := sgmail.NewPersonalization()
	p.Subject = mail.Subject
	p.AddTos(sgmail.NewEmail(mail.ToName, mail.ToAddress))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", mail.Body))

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.API(req)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer 未配置 SendGrid 时只写日志
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, m Mail) error {
	logger.Log.Info("Mail (log only)",
		zap.String("to", m.ToAddress),
		zap.String("subject", m.Subject))
	return nil
}

// NewMailer 有 API key 用 SendGrid，否则只写日志
func NewMailer(cfg *config.MailConfig) Mailer {
	if cfg.SendgridAPIKey == "" {
		return LogMailer{}
	}
	return NewSendgridMailer(cfg)
}

// NotificationService 异步发送通知，失败只记日志
type NotificationService struct {
	Mailer   Mailer
	UserRepo *repository.UserRepository
	Timeout  time.Duration
	wg       sync.WaitGroup
}

func NewNotificationService(mailer Mailer, userRepo *repository.UserRepository) *NotificationService {
	return &NotificationService{Mailer: mailer, UserRepo: userRepo, Timeout: 10 * time.Second}
}

// Wait 等待已发出的通知结束，用于退出和测试
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

func (n *NotificationService) dispatch(userID uint, subject string, body func(u *model.User) string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Error("Notification panic", zap.Any("panic", rec))
			}
		}()

		user, err := n.UserRepo.FindByID(userID)
		if err != nil {
			logger.Log.Warn("Notification recipient not found", zap.Uint("userId", userID), zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), n.Timeout)
		defer cancel()
		err = n.Mailer.Send(ctx, Mail{
			ToName:    user.Name,
			ToAddress: user.Email,
			Subject:   subject,
			Body:      body(user),
		})
		if err != nil {
			logger.Log.Error("Failed to send notification",
				zap.Uint("userId", userID),
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()
}

func (n *NotificationService) NotifyGrade(sub *model.AssignmentSubmission, a *model.Assignment, pct float64) {
	n.dispatch(sub.StudentID, "Your assignment has been graded", func(u *model.User) string {
		return fmt.Sprintf("Hi %s,\n\nYour submission for %q was graded: %.1f%%.\n\nFeedback:\n%s\n",
			u.Name, a.Title, pct, sub.Feedback)
	})
}

func (n *NotificationService) NotifySuspension(s *model.StudentSuspension) {
	n.dispatch(s.StudentID, "Course access suspended", func(u *model.User) string {
		return fmt.Sprintf("Hi %s,\n\n%s.\n\nYou may submit an appeal until %s.\n",
			u.Name, s.Reason, s.AppealDeadline.Format(util.DateFormat))
	})
}

func (n *NotificationService) NotifyAppealDecision(s *model.StudentSuspension) {
	n.dispatch(s.StudentID, "Your appeal has been reviewed", func(u *model.User) string {
		if s.Reinstated {
			return fmt.Sprintf("Hi %s,\n\nYour appeal was approved and %d additional attempt(s) were granted.\n",
				u.Name, s.AdditionalAttemptsGranted)
		}
		return fmt.Sprintf("Hi %s,\n\nYour appeal was denied.\n\n%s\n", u.Name, s.ReviewNotes)
	})
}
