// Package notify доставляет события записей участникам в Telegram.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/office_hours/internal/events"
	"github.com/Freeeeeet/office_hours/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть API бота, нужная для отправки сообщений
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup источник пользователей для поиска chat id
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Notifier читает очередь событий и рассылает сообщения
type Notifier struct {
	queue    events.Queue
	users    UserLookup
	sender   Sender
	location *time.Location
	logger   *zap.Logger
}

func NewNotifier(queue events.Queue, users UserLookup, sender Sender, location *time.Location, logger *zap.Logger) *Notifier {
	if location == nil {
		location = time.UTC
	}
	return &Notifier{
		queue:    queue,
		users:    users,
		sender:   sender,
		location: location,
		logger:   logger,
	}
}

// Run обрабатывает события до отмены ctx
func (n *Notifier) Run(ctx context.Context) error {
	ch, err := n.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume events: %w", err)
	}

	n.logger.Info("Notifier started")
	for event := range ch {
		n.Handle(ctx, event)
	}
	n.logger.Info("Notifier stopped")

	return nil
}

// Handle отправляет уведомления обоим участникам записи
func (n *Notifier) Handle(ctx context.Context, event events.Event) int {
	student, professor := n.lookup(ctx, event.StudentID), n.lookup(ctx, event.ProfessorID)

	var sent int
	switch event.Type {
	case events.TypeAppointmentBooked:
		if n.send(ctx, student, fmt.Sprintf("✅ Вы записаны к %s\n📅 %s", name(professor), n.window(event))) {
			sent++
		}
		if n.send(ctx, professor, fmt.Sprintf("🆕 Новая запись: %s\n📅 %s", name(student), n.window(event))) {
			sent++
		}
	case events.TypeAppointmentCancelled:
		if n.send(ctx, student, fmt.Sprintf("❌ %s отменил(а) запись\n📅 %s", name(professor), n.window(event))) {
			sent++
		}
		if n.send(ctx, professor, fmt.Sprintf("❌ Запись отменена: %s\n📅 %s\nОкно снова свободно", name(student), n.window(event))) {
			sent++
		}
	default:
		n.logger.Warn("Unknown event type", zap.String("type", string(event.Type)))
	}

	return sent
}

func (n *Notifier) lookup(ctx context.Context, id int64) *model.User {
	user, err := n.users.GetByID(ctx, id)
	if err != nil {
		n.logger.Error("Failed to load user for notification", zap.Int64("user_id", id), zap.Error(err))
		return nil
	}
	return user
}

func (n *Notifier) send(ctx context.Context, user *model.User, text string) bool {
	if user == nil || user.TelegramChatID == nil {
		return false
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.Int64("user_id", user.ID),
			zap.Int64("chat_id", *user.TelegramChatID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (n *Notifier) window(event events.Event) string {
	if event.StartTime.IsZero() {
		return fmt.Sprintf("окно #%d", event.AvailabilityID)
	}
	start := event.StartTime.In(n.location)
	end := event.EndTime.In(n.location)
	return fmt.Sprintf("%s–%s", start.Format("02.01.2006 15:04"), end.Format("15:04"))
}

func name(user *model.User) string {
	if user == nil {
		return "пользователь"
	}
	return user.Name
}
