// Package repotest is an in-memory implementation of the repository interfaces.
// It enforces the same uniqueness, not-null and cascade rules as the Postgres schema,
// and rolls back every change made inside a failed WithTx.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"warbler/internal/cache"
	"warbler/internal/model"
	"warbler/internal/repository"
)

const (
	defaultImageURL       = "/static/images/default-pic.svg"
	defaultHeaderImageURL = "/static/images/warbler-hero.svg"
)

type state struct {
	nextUserID    int64
	nextMessageID int64
	nextLikeID    int64

	users    map[int64]model.User
	messages map[int64]model.Message
	follows  []model.Follow // insertion order
	likes    []model.Like   // insertion order
}

func (s *state) clone() *state {
	c := &state{
		nextUserID:    s.nextUserID,
		nextMessageID: s.nextMessageID,
		nextLikeID:    s.nextLikeID,
		users:         make(map[int64]model.User, len(s.users)),
		messages:      make(map[int64]model.Message, len(s.messages)),
		follows:       append([]model.Follow(nil), s.follows...),
		likes:         append([]model.Like(nil), s.likes...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	return c
}

// Store holds users, messages, follows and likes in memory.
type Store struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.Mutex
	st   *state
	last time.Time
}

func NewStore() *Store {
	return &Store{st: &state{
		nextUserID:    1,
		nextMessageID: 1,
		nextLikeID:    1,
		users:         make(map[int64]model.User),
		messages:      make(map[int64]model.Message),
	}}
}

func (s *Store) Transactor() repository.Transactor      { return (*transactor)(s) }
func (s *Store) Users() repository.UserRepository       { return (*userRepo)(s) }
func (s *Store) Messages() repository.MessageRepository { return (*messageRepo)(s) }
func (s *Store) Follows() repository.FollowRepository   { return (*followRepo)(s) }
func (s *Store) Likes() repository.LikeRepository       { return (*likeRepo)(s) }

// now returns a strictly increasing timestamp so insertion order is also time order.
// Callers hold s.mu.
func (s *Store) now() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// SeedUser inserts u as is, keeping an explicit ID when set. The password must already be hashed.
func (s *Store) SeedUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.st.nextUserID
	}
	if u.ID >= s.st.nextUserID {
		s.st.nextUserID = u.ID + 1
	}
	if u.ImageURL == "" {
		u.ImageURL = defaultImageURL
	}
	if u.HeaderImageURL == "" {
		u.HeaderImageURL = defaultHeaderImageURL
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.st.users[u.ID] = u
	return u
}

// SeedMessage inserts m as is, keeping an explicit ID when set.
func (s *Store) SeedMessage(m model.Message) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		m.ID = s.st.nextMessageID
	}
	if m.ID >= s.st.nextMessageID {
		s.st.nextMessageID = m.ID + 1
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	m.Author = nil
	s.st.messages[m.ID] = m
	return m
}

// SeedFollow records that followerID follows followeeID.
func (s *Store) SeedFollow(followerID, followeeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.followExists(followerID, followeeID) {
		s.st.follows = append(s.st.follows, model.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: s.now()})
	}
}

// Counts reports the number of rows per table.
func (s *Store) Counts() (users, messages, follows, likes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.users), len(s.st.messages), len(s.st.follows), len(s.st.likes)
}

func (s *Store) followExists(followerID, followeeID int64) bool {
	for _, f := range s.st.follows {
		if f.FollowerID == followerID && f.FolloweeID == followeeID {
			return true
		}
	}
	return false
}

func (s *Store) withAuthor(m model.Message) model.Message {
	if u, ok := s.st.users[m.UserID]; ok {
		summary := u.Summary()
		summary.Bio = nil
		m.Author = &summary
	}
	return m
}

// =============================================================================
// Transactor
// =============================================================================

type transactor Store

// WithTx snapshots the state and restores it when fn fails. The tx handed to fn is nil.
func (t *transactor) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s := (*Store)(t)
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// Users
// =============================================================================

type userRepo Store

func (r *userRepo) checkIntegrity(u *model.User) error {
	s := (*Store)(r)
	switch {
	case u.Username == "":
		return &model.IntegrityError{Constraint: "users.username"}
	case u.Email == "":
		return &model.IntegrityError{Constraint: "users.email"}
	case u.Password == "":
		return &model.IntegrityError{Constraint: "users.password"}
	}
	for id, other := range s.st.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return &model.IntegrityError{Constraint: "users_username_key", Err: model.ErrUsernameTaken}
		}
		if other.Email == u.Email {
			return &model.IntegrityError{Constraint: "users_email_key", Err: model.ErrEmailTaken}
		}
	}
	return nil
}

func (r *userRepo) Create(ctx context.Context, tx *sqlx.Tx, u *model.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = 0
	if err := r.checkIntegrity(u); err != nil {
		return err
	}
	if u.ImageURL == "" {
		u.ImageURL = defaultImageURL
	}
	if u.HeaderImageURL == "" {
		u.HeaderImageURL = defaultHeaderImageURL
	}
	u.ID = s.st.nextUserID
	s.st.nextUserID++
	u.CreatedAt = s.now()
	s.st.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r *userRepo) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []model.UserSummary
	for _, u := range s.st.users {
		if strings.Contains(u.Username, query) {
			users = append(users, u.Summary())
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *userRepo) Update(ctx context.Context, tx *sqlx.Tx, u *model.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	updated := existing
	updated.Username = u.Username
	updated.Email = u.Email
	updated.ImageURL = u.ImageURL
	updated.HeaderImageURL = u.HeaderImageURL
	updated.Bio = u.Bio
	updated.Location = u.Location
	if err := r.checkIntegrity(&updated); err != nil {
		return err
	}
	s.st.users[u.ID] = updated
	return nil
}

func (r *userRepo) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.st.users, id)

	for mid, m := range s.st.messages {
		if m.UserID == id {
			delete(s.st.messages, mid)
		}
	}

	follows := s.st.follows[:0:0]
	for _, f := range s.st.follows {
		if f.FollowerID != id && f.FolloweeID != id {
			follows = append(follows, f)
		}
	}
	s.st.follows = follows

	likes := s.st.likes[:0:0]
	for _, l := range s.st.likes {
		if _, ok := s.st.messages[l.MessageID]; ok && l.UserID != id {
			likes = append(likes, l)
		}
	}
	s.st.likes = likes
	return nil
}

func (r *userRepo) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats model.UserStats
	for _, m := range s.st.messages {
		if m.UserID == id {
			stats.Messages++
		}
	}
	for _, f := range s.st.follows {
		if f.FollowerID == id {
			stats.Following++
		}
		if f.FolloweeID == id {
			stats.Followers++
		}
	}
	for _, l := range s.st.likes {
		if l.UserID == id {
			stats.Likes++
		}
	}
	return &stats, nil
}

// =============================================================================
// Messages
// =============================================================================

type messageRepo Store

func (r *messageRepo) Create(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[msg.UserID]; !ok {
		return model.ErrUserNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	msg.ID = s.st.nextMessageID
	s.st.nextMessageID++

	stored := *msg
	stored.Author = nil
	s.st.messages[msg.ID] = stored
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.st.messages[id]
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	m = s.withAuthor(m)
	return &m, nil
}

func (r *messageRepo) GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.st.messages[id]; ok {
			messages = append(messages, s.withAuthor(m))
		}
	}
	return messages, nil
}

func (r *messageRepo) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.messages[id]; !ok {
		return model.ErrMessageNotFound
	}
	delete(s.st.messages, id)

	likes := s.st.likes[:0:0]
	for _, l := range s.st.likes {
		if l.MessageID != id {
			likes = append(likes, l)
		}
	}
	s.st.likes = likes
	return nil
}

// newestFirst returns the messages matching keep, ordered by timestamp then id, newest first.
// Callers hold s.mu.
func (s *Store) newestFirst(keep func(m model.Message) bool, limit int) []model.Message {
	var out []model.Message
	for _, m := range s.st.messages {
		if keep(m) {
			out = append(out, s.withAuthor(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *messageRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newestFirst(func(m model.Message) bool { return m.UserID == userID }, limit), nil
}

func (r *messageRepo) Timeline(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newestFirst(func(m model.Message) bool {
		return m.UserID == userID || s.followExists(userID, m.UserID)
	}, limit), nil
}

func toScores(messages []model.Message) []cache.MessageScore {
	scores := make([]cache.MessageScore, len(messages))
	for i, m := range messages {
		scores[i] = cache.MessageScore{MessageID: m.ID, Timestamp: m.Timestamp.UnixMilli()}
	}
	return scores
}

func (r *messageRepo) GetTimelineScores(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error) {
	messages, err := r.Timeline(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return toScores(messages), nil
}

func (r *messageRepo) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error) {
	messages, err := r.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return toScores(messages), nil
}

// =============================================================================
// Follows
// =============================================================================

type followRepo Store

func (r *followRepo) Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[followerID]; !ok {
		return false, model.ErrUserNotFound
	}
	if _, ok := s.st.users[followeeID]; !ok {
		return false, model.ErrUserNotFound
	}
	if s.followExists(followerID, followeeID) {
		return false, nil
	}
	s.st.follows = append(s.st.follows, model.Follow{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: s.now()})
	return true, nil
}

func (r *followRepo) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.st.follows {
		if f.FollowerID == followerID && f.FolloweeID == followeeID {
			s.st.follows = append(s.st.follows[:i:i], s.st.follows[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFollowing
}

func (r *followRepo) Exists(ctx context.Context, followerID, followeeID int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followExists(followerID, followeeID), nil
}

// listUsers walks follows newest first and collects the user pick selects.
func (s *Store) listUsers(pick func(f model.Follow) (int64, bool)) []model.UserSummary {
	var users []model.UserSummary
	for i := len(s.st.follows) - 1; i >= 0; i-- {
		if id, ok := pick(s.st.follows[i]); ok {
			if u, found := s.st.users[id]; found {
				users = append(users, u.Summary())
			}
		}
	}
	return users
}

func (r *followRepo) GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listUsers(func(f model.Follow) (int64, bool) { return f.FollowerID, f.FolloweeID == userID }), nil
}

func (r *followRepo) GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listUsers(func(f model.Follow) (int64, bool) { return f.FolloweeID, f.FollowerID == userID }), nil
}

func (r *followRepo) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, f := range s.st.follows {
		if f.FolloweeID == userID {
			ids = append(ids, f.FollowerID)
		}
	}
	return ids, nil
}

func (r *followRepo) GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, f := range s.st.follows {
		if f.FollowerID == userID {
			ids = append(ids, f.FolloweeID)
		}
	}
	return ids, nil
}

func (r *followRepo) CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64]bool, len(followeeIDs))
	for _, id := range followeeIDs {
		result[id] = s.followExists(followerID, id)
	}
	return result, nil
}

// =============================================================================
// Likes
// =============================================================================

type likeRepo Store

func (r *likeRepo) Create(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[userID]; !ok {
		return model.ErrUserNotFound
	}
	if _, ok := s.st.messages[messageID]; !ok {
		return model.ErrMessageNotFound
	}
	for _, l := range s.st.likes {
		if l.UserID == userID && l.MessageID == messageID {
			return nil
		}
	}
	s.st.likes = append(s.st.likes, model.Like{ID: s.st.nextLikeID, UserID: userID, MessageID: messageID, CreatedAt: s.now()})
	s.st.nextLikeID++
	return nil
}

func (r *likeRepo) Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.st.likes {
		if l.UserID == userID && l.MessageID == messageID {
			s.st.likes = append(s.st.likes[:i:i], s.st.likes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *likeRepo) Exists(ctx context.Context, userID, messageID int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.st.likes {
		if l.UserID == userID && l.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *likeRepo) GetLikedMessageIDs(ctx context.Context, userID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, l := range s.st.likes {
		if l.UserID == userID {
			ids = append(ids, l.MessageID)
		}
	}
	return ids, nil
}

func (r *likeRepo) GetLikedMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var messages []model.Message
	for i := len(s.st.likes) - 1; i >= 0; i-- {
		l := s.st.likes[i]
		if l.UserID != userID {
			continue
		}
		if m, ok := s.st.messages[l.MessageID]; ok {
			messages = append(messages, s.withAuthor(m))
		}
	}
	return messages, nil
}

func (r *likeRepo) CountForMessage(ctx context.Context, messageID int64) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	for _, l := range s.st.likes {
		if l.MessageID == messageID {
			count++
		}
	}
	return count, nil
}
