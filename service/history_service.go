package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"regulaite-backend/models"
	"regulaite-backend/storage"

	"go.uber.org/zap"
)

const historyTimeLayout = "15:04"

// HistoryService persists one chat transcript per user
type HistoryService struct {
	store  storage.Storage
	now    func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

// HistoryServiceOption is a functional option for HistoryService
type HistoryServiceOption func(*HistoryService)

// HistoryWithClock sets the clock used to stamp new turns
func HistoryWithClock(now func() time.Time) HistoryServiceOption {
	return func(s *HistoryService) {
		s.now = now
	}
}

// HistoryWithLogger sets the logger
func HistoryWithLogger(logger *zap.Logger) HistoryServiceOption {
	return func(s *HistoryService) {
		s.logger = logger
	}
}

// NewHistoryService creates a new history service backed by store
func NewHistoryService(store storage.Storage, opts ...HistoryServiceOption) *HistoryService {
	s := &HistoryService{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func historyKey(username string) string {
	return storage.ObjectKey("chats", username+".json")
}

// Load returns the stored transcript, oldest first. A user without a
// transcript has an empty history.
func (s *HistoryService) Load(ctx context.Context, username string) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, username)
}

func (s *HistoryService) load(ctx context.Context, username string) ([]models.ConversationTurn, error) {
	rc, err := s.store.Get(ctx, historyKey(username))
	if errors.Is(err, storage.ErrNotFound) {
		return []models.ConversationTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rc.Close()

	var turns []models.ConversationTurn
	if err := json.NewDecoder(rc).Decode(&turns); err != nil {
		s.logger.Warn("Discarding unreadable chat history", zap.String("username", username), zap.Error(err))
		return []models.ConversationTurn{}, nil
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	return turns, nil
}

// Save replaces the stored transcript
func (s *HistoryService) Save(ctx context.Context, username string, turns []models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, username, turns)
}

func (s *HistoryService) save(ctx context.Context, username string, turns []models.ConversationTurn) error {
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.store.Put(ctx, historyKey(username), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Append adds turns to the stored transcript and returns the updated one.
// Turns without a timestamp are stamped with the current time.
func (s *HistoryService) Append(ctx context.Context, username string, turns ...models.ConversationTurn) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	stamp := s.now().Format(historyTimeLayout)
	for _, t := range turns {
		if t.Timestamp == "" {
			t.Timestamp = stamp
		}
		history = append(history, t)
	}
	if err := s.save(ctx, username, history); err != nil {
		return nil, err
	}
	return history, nil
}

// Clear deletes the stored transcript
func (s *HistoryService) Clear(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, historyKey(username)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// IsDuplicate reports whether query repeats the last turn when that turn is the user's
func IsDuplicate(history []models.ConversationTurn, query string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.IsUser() && strings.TrimSpace(last.Content) == strings.TrimSpace(query)
}
