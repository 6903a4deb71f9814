// Package messaging runs the paid message pipeline: authorize, price, debit,
// persist, summarize and broadcast, in that order and serialized per room.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"messaging-service/internal/apperr"
	"messaging-service/internal/ledger"
	"messaging-service/internal/lock"
	"messaging-service/internal/media"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/pricing"
	"messaging-service/internal/repositories"
)

const (
	MaxTextRunes     = 4000
	roomLockTimeout  = 10 * time.Second
	persistAttempts  = 2
	persistRetryWait = 50 * time.Millisecond
)

// Broadcaster delivers pipeline output to live connections.
type Broadcaster interface {
	BroadcastMessage(chatID int, msg models.Message)
	BroadcastRead(chatID int, readerID int, count int64)
	NotifyBalance(accountID int, balance int64)
}

// SendRequest is one inbound message. Media is accepted on image and audio
// kinds only; it is uploaded and its URL replaces Content.
type SendRequest struct {
	ChatID      int
	SenderID    int
	Kind        models.MessageKind
	Content     string
	Media       []byte
	ContentType string
}

// SendResult describes a persisted and broadcast message.
type SendResult struct {
	Message models.Message `json:"message"`
	Cost    int64          `json:"cost"`
	Exempt  bool           `json:"exempt"`
	Balance *int64         `json:"balance,omitempty"`
}

type Deps struct {
	Accounts    repositories.AccountRepository
	Chats       repositories.ChatRepository
	Messages    repositories.MessageRepository
	Pricing     *pricing.Table
	Ledger      *ledger.Ledger
	Media       media.Store
	Broadcaster Broadcaster
}

type Pipeline struct {
	accounts    repositories.AccountRepository
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	pricing     *pricing.Table
	ledger      *ledger.Ledger
	media       media.Store
	broadcaster Broadcaster
	rooms       *lock.KeyedLock
}

func NewPipeline(d Deps) *Pipeline {
	return &Pipeline{
		accounts:    d.Accounts,
		chats:       d.Chats,
		messages:    d.Messages,
		pricing:     d.Pricing,
		ledger:      d.Ledger,
		media:       d.Media,
		broadcaster: d.Broadcaster,
		rooms:       lock.NewKeyedLock(),
	}
}

// Authorize returns the chat when accountID is one of its participants.
func (p *Pipeline) Authorize(ctx context.Context, chatID, accountID int) (models.Chat, error) {
	chat, err := p.chats.GetChat(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, apperr.NotFound("chat not found")
	}
	if err != nil {
		return models.Chat{}, apperr.Unavailable("chat lookup failed", err)
	}
	if !chat.HasParticipant(accountID) {
		return models.Chat{}, apperr.Forbidden("not a participant of this chat")
	}
	return chat, nil
}

// Send runs the pipeline. The sender is charged only if the message is
// persisted; a persistence failure after the debit is refunded.
func (p *Pipeline) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "messaging.send",
		attribute.Int("chat.id", req.ChatID),
		attribute.Int("sender.id", req.SenderID),
		attribute.String("message.kind", string(req.Kind.Tag)),
	)
	defer span.End()

	res, err := p.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
		return SendResult{}, err
	}
	observability.ObserveMessageSent(string(res.Message.Kind), res.Exempt, started)
	return res, nil
}

func (p *Pipeline) send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := validate(&req); err != nil {
		return SendResult{}, err
	}
	chat, err := p.Authorize(ctx, req.ChatID, req.SenderID)
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{Exempt: chat.IsOperator(req.SenderID)}
	if !res.Exempt {
		if res.Cost, err = p.pricing.Cost(req.Kind); err != nil {
			return SendResult{}, err
		}
	}

	if len(req.Media) > 0 {
		if p.media == nil {
			return SendResult{}, apperr.FailedPrecondition("media uploads are not configured")
		}
		if err := p.checkFunds(ctx, req.SenderID, res.Cost); err != nil {
			return SendResult{}, err
		}
		url, err := p.media.StoreAndGetURL(ctx, req.Media, req.ContentType)
		if err != nil {
			if errors.Is(err, media.ErrPayloadTooLarge) || errors.Is(err, media.ErrEmptyPayload) {
				return SendResult{}, apperr.InvalidArg(err.Error())
			}
			return SendResult{}, apperr.Unavailable("media upload failed", err)
		}
		req.Content = url
	}

	if err := p.rooms.LockContext(ctx, req.ChatID, roomLockTimeout); err != nil {
		return SendResult{}, apperr.Unavailable("chat is busy, retry later", err)
	}
	defer p.rooms.Unlock(req.ChatID)

	var receipt ledger.Receipt
	if res.Cost > 0 {
		receipt, err = p.ledger.Debit(ctx, req.SenderID, res.Cost, models.ReasonMessage)
		if err != nil {
			return SendResult{}, err
		}
		balance := receipt.Balance
		res.Balance = &balance
	}

	msg, err := p.persist(ctx, repositories.NewMessage{
		ChatID:   req.ChatID,
		SenderID: req.SenderID,
		Kind:     req.Kind,
		Content:  req.Content,
		Cost:     res.Cost,
		DedupKey: uuid.NewString(),
	})
	if err != nil {
		return SendResult{}, p.compensate(ctx, req, res, receipt, err)
	}
	res.Message = msg

	if err := p.chats.UpdateLastMessage(ctx, chat.ID, req.Kind.Preview(req.Content), msg.CreatedAt); err != nil {
		log.Warn().Err(err).Int("chat_id", chat.ID).Int64("message_id", msg.ID).Msg("chat summary update failed")
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastMessage(chat.ID, msg)
		if res.Balance != nil {
			p.broadcaster.NotifyBalance(req.SenderID, *res.Balance)
		}
	}
	return res, nil
}

// checkFunds rejects a paid send up front so nothing is uploaded for a sender
// who cannot pay. Debit still enforces the balance under the account lock.
func (p *Pipeline) checkFunds(ctx context.Context, accountID int, cost int64) error {
	if cost <= 0 {
		return nil
	}
	balance, err := p.ledger.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	if balance < cost {
		observability.IncInsufficientFunds()
		return apperr.InsufficientFunds(cost, balance)
	}
	return nil
}

// persist retries failed inserts under one dedup key, so an insert that
// committed before reporting an error is not stored twice.
func (p *Pipeline) persist(ctx context.Context, in repositories.NewMessage) (models.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		msg, err := p.messages.CreateMessage(ctx, in)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Int("chat_id", in.ChatID).Int("attempt", attempt).Msg("message persist failed")
		if attempt < persistAttempts {
			time.Sleep(persistRetryWait)
		}
	}
	return models.Message{}, lastErr
}

// compensate refunds a charge whose message could not be stored.
func (p *Pipeline) compensate(ctx context.Context, req SendRequest, res SendResult, receipt ledger.Receipt, cause error) error {
	if res.Balance == nil {
		return apperr.Unavailable("message could not be stored", cause)
	}

	refundCtx := context.WithoutCancel(ctx)
	refund, err := p.ledger.Credit(refundCtx, req.SenderID, res.Cost, models.ReasonMessageRefund)
	if err != nil {
		log.Error().Err(err).AnErr("persist_error", cause).Int("account_id", req.SenderID).
			Int64("amount", res.Cost).Int64("transaction_id", receipt.TransactionID).
			Msg("refund after failed message persist did not commit")
		return apperr.Internal("message could not be stored and the refund failed", cause)
	}

	observability.IncRefund()
	log.Error().Err(cause).Int("account_id", req.SenderID).Int("chat_id", req.ChatID).
		Int64("amount", res.Cost).Int64("refund_transaction_id", refund.TransactionID).
		Msg("message persist failed, charge refunded")
	if p.broadcaster != nil {
		p.broadcaster.NotifyBalance(req.SenderID, refund.Balance)
	}
	return apperr.Unavailable("message could not be stored, charge refunded", cause)
}

func validate(req *SendRequest) error {
	if req.Kind.Tag == "" {
		req.Kind.Tag = models.KindText
	}
	if req.Kind.Tag == models.KindGift && req.Kind.Tier <= 0 {
		return apperr.InvalidArg("gift tier is required")
	}
	if req.Kind.Tag != models.KindGift {
		req.Kind.Tier = 0
	}
	req.Content = strings.TrimSpace(req.Content)
	if len(req.Media) > 0 && !req.Kind.IsMedia() {
		return apperr.InvalidArg(fmt.Sprintf("%s message cannot carry media", req.Kind.Tag))
	}

	switch {
	case req.Kind.IsMedia():
		if req.Content == "" && len(req.Media) == 0 {
			return apperr.InvalidArg(fmt.Sprintf("%s message needs media", req.Kind.Tag))
		}
	case req.Kind.Tag == models.KindGift:
	default:
		if req.Content == "" {
			return apperr.InvalidArg("content is required")
		}
		if utf8.RuneCountInString(req.Content) > MaxTextRunes {
			return apperr.InvalidArg(fmt.Sprintf("content exceeds %d characters", MaxTextRunes))
		}
	}
	return nil
}
