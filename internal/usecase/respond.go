// Package usecase implements the dedup-and-dispatch pipeline: every
// inbound message is claimed in the TTL cache before any slow work, so a
// retried delivery arriving while the upstream call is in flight is
// answered from the ledger instead of triggering a second call.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"wechat-bridge/internal/domain"
)

const dedupKeyPrefix = "MSGID_"

// DedupCache is the claim cache consumed by the pipeline.
type DedupCache interface {
	Get(key string) (time.Time, bool)
	Set(key string, observed time.Time, ttl time.Duration)
}

// Ledger is the conversation store consumed by the pipeline.
type Ledger interface {
	Append(ctx context.Context, messageID int64, userID, topicID, request, response string, elapsed time.Duration) error
	GetByMessageID(ctx context.Context, messageID int64) (string, error)
	GetRecent(ctx context.Context, userID, topicID string, limit int) ([]domain.ConversationTurn, error)
}

// Responder is the upstream chat-completion collaborator: ordered history
// plus a new utterance in, a single text reply out.
type Responder interface {
	Respond(ctx context.Context, history []domain.ConversationTurn, text string) (string, error)
}

// Service orchestrates one inbound message end to end.
type Service struct {
	cache        DedupCache
	ledger       Ledger
	llm          Responder
	dedupTTL     time.Duration
	historyLimit int
}

// NewService wires the pipeline. All collaborators are required; TTL and
// history limit fall back to the platform defaults when unset.
func NewService(cache DedupCache, ledger Ledger, llm Responder, dedupTTL time.Duration, historyLimit int) (*Service, error) {
	if cache == nil {
		return nil, errors.New("usecase: dedup cache must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("usecase: ledger must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if dedupTTL <= 0 {
		dedupTTL = 60 * time.Second
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Service{
		cache:        cache,
		ledger:       ledger,
		llm:          llm,
		dedupTTL:     dedupTTL,
		historyLimit: historyLimit,
	}, nil
}

// Respond handles one delivery. A cache hit means this message id has been
// claimed by an earlier delivery: the persisted response is replayed and
// the upstream collaborator is never invoked. On a miss the id is claimed
// before the history fetch, the upstream call, and the persist.
func (s *Service) Respond(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error) {
	if msg.Text == "" {
		return domain.Reply{}, newError(ErrorInvalidInput, "empty_content", nil)
	}

	key := dedupKeyPrefix + strconv.FormatInt(msg.MessageID, 10)

	if _, seen := s.cache.Get(key); seen {
		slog.Warn("duplicate delivery, replaying persisted response", "key", key)
		response, err := s.ledger.GetByMessageID(ctx, msg.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// First delivery still in flight; no persisted record to
				// replay yet. Surfaced as-is, the platform will retry.
				return domain.Reply{}, newError(ErrorNotFound, "duplicate_record_missing", err)
			}
			return domain.Reply{}, newError(ErrorStore, "duplicate_lookup_error", err)
		}
		return domain.NewReply(msg, response), nil
	}

	// Claim the message id before any slow work so retries arriving during
	// the upstream round-trip take the duplicate branch.
	s.cache.Set(key, time.Now(), s.dedupTTL)

	history, err := s.ledger.GetRecent(ctx, msg.UserID, msg.TopicID, s.historyLimit)
	if err != nil {
		return domain.Reply{}, newError(ErrorStore, "history_fetch_error", err)
	}

	start := time.Now()
	response, err := s.llm.Respond(ctx, history, msg.Text)
	if err != nil {
		return domain.Reply{}, newError(ErrorUpstream, "upstream_call_error", err)
	}
	elapsed := time.Since(start)

	if err := s.ledger.Append(ctx, msg.MessageID, msg.UserID, msg.TopicID, msg.Text, response, elapsed); err != nil {
		return domain.Reply{}, newError(ErrorStore, "persist_error", err)
	}

	return domain.NewReply(msg, response), nil
}
