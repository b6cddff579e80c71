package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/push"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func inlineDispatch(fn func()) { fn() }

// fakeStore backs all repository fakes with plain maps so service tests
// run against real data-shape semantics without a mongod.
type fakeStore struct {
	mu       sync.Mutex
	convs    map[primitive.ObjectID]*models.Conversation
	members  map[primitive.ObjectID]*models.ConversationMember
	messages map[primitive.ObjectID]*models.Message
	notifs   map[primitive.ObjectID]*models.Notification
	tokens   map[primitive.ObjectID]*models.PushToken
	users    map[primitive.ObjectID]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:    make(map[primitive.ObjectID]*models.Conversation),
		members:  make(map[primitive.ObjectID]*models.ConversationMember),
		messages: make(map[primitive.ObjectID]*models.Message),
		notifs:   make(map[primitive.ObjectID]*models.Notification),
		tokens:   make(map[primitive.ObjectID]*models.PushToken),
		users:    make(map[primitive.ObjectID]*models.User),
	}
}

func (s *fakeStore) addUser(u *models.User) *models.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = u
	return u
}

// --- conversations ---

type fakeConversationRepo struct{ s *fakeStore }

func (r *fakeConversationRepo) Insert(_ context.Context, c *models.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.Type == models.ConversationPrivate && c.PairKey != "" {
		for _, existing := range r.s.convs {
			if existing.Type == models.ConversationPrivate && !existing.IsDeleted && existing.PairKey == c.PairKey {
				return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
			}
		}
	}
	c.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.s.convs[c.ID] = &cp
	return nil
}

func (r *fakeConversationRepo) FindActive(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[id]
	if !ok || c.IsDeleted {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) FindActiveByIDs(_ context.Context, ids []primitive.ObjectID, typ models.ConversationType) ([]*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Conversation
	for _, id := range ids {
		c, ok := r.s.convs[id]
		if !ok || c.IsDeleted {
			continue
		}
		if typ != "" && c.Type != typ {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeConversationRepo) FindActivePrivateByPairKey(_ context.Context, pairKey string) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.convs {
		if c.Type == models.ConversationPrivate && !c.IsDeleted && c.PairKey == pairKey {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) SearchIDs(_ context.Context, search string, typ models.ConversationType) ([]primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []primitive.ObjectID
	for _, c := range r.s.convs {
		if c.IsDeleted {
			continue
		}
		if typ != "" && c.Type != typ {
			continue
		}
		if search != "" {
			needle := strings.ToLower(search)
			if !strings.Contains(strings.ToLower(c.Name), needle) &&
				!strings.Contains(strings.ToLower(c.OtherUserName), needle) {
				continue
			}
		}
		out = append(out, c.ID)
	}
	return out, nil
}

func (r *fakeConversationRepo) SetLastMessage(_ context.Context, id primitive.ObjectID, lm models.LastMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[id]
	if !ok {
		return nil
	}
	c.LastMessage = &lm
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeConversationRepo) UpdateOtherUser(_ context.Context, id, otherUserID primitive.ObjectID, name, avatar string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.convs[id]; ok {
		c.OtherUserID = otherUserID
		c.OtherUserName = name
		c.OtherUserAvatar = avatar
	}
	return nil
}

// --- members ---

type fakeMemberRepo struct{ s *fakeStore }

func (r *fakeMemberRepo) InsertMany(_ context.Context, members []*models.ConversationMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, m := range members {
		m.ID = primitive.NewObjectID()
		m.JoinedAt = now
		m.CreatedAt = now
		m.UpdatedAt = now
		cp := *m
		r.s.members[m.ID] = &cp
	}
	return nil
}

func (r *fakeMemberRepo) find(conversationID, userID primitive.ObjectID) *models.ConversationMember {
	for _, m := range r.s.members {
		if m.ConversationID == conversationID && m.UserID == userID {
			return m
		}
	}
	return nil
}

func (r *fakeMemberRepo) Find(_ context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m := r.find(conversationID, userID); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeMemberRepo) FindOther(_ context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.ConversationID == conversationID && m.UserID != userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) ListByConversation(_ context.Context, conversationID primitive.ObjectID) ([]*models.ConversationMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ConversationMember
	for _, m := range r.s.members {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) ListOthers(_ context.Context, conversationIDs []primitive.ObjectID, excludeUserID primitive.ObjectID) ([]*models.ConversationMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	in := make(map[primitive.ObjectID]struct{}, len(conversationIDs))
	for _, id := range conversationIDs {
		in[id] = struct{}{}
	}
	var out []*models.ConversationMember
	for _, m := range r.s.members {
		if _, ok := in[m.ConversationID]; ok && m.UserID != excludeUserID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) ListByUser(_ context.Context, userID primitive.ObjectID, conversationIDs []primitive.ObjectID, page, limit int64) ([]*models.ConversationMember, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var filter map[primitive.ObjectID]struct{}
	if len(conversationIDs) > 0 {
		filter = make(map[primitive.ObjectID]struct{}, len(conversationIDs))
		for _, id := range conversationIDs {
			filter[id] = struct{}{}
		}
	}
	var all []*models.ConversationMember
	for _, m := range r.s.members {
		if m.UserID != userID {
			continue
		}
		if filter != nil {
			if _, ok := filter[m.ConversationID]; !ok {
				continue
			}
		}
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].IsPinned != all[j].IsPinned {
			return all[i].IsPinned
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *fakeMemberRepo) IncrementUnreadExcept(_ context.Context, conversationID, senderID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, m := range r.s.members {
		if m.ConversationID == conversationID && m.UserID != senderID {
			m.UnreadCount++
			m.UpdatedAt = now
		}
	}
	return nil
}

func (r *fakeMemberRepo) ResetUnread(_ context.Context, conversationID, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m := r.find(conversationID, userID); m != nil {
		m.UnreadCount = 0
		m.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *fakeMemberRepo) UpdateSettings(_ context.Context, conversationID, userID primitive.ObjectID, update models.MemberSettingsUpdate) (*models.ConversationMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.find(conversationID, userID)
	if m == nil {
		return nil, nil
	}
	if update.Nickname != nil {
		m.Nickname = *update.Nickname
	}
	if update.CustomBackground != nil {
		m.CustomBackground = *update.CustomBackground
	}
	if update.IsMuted != nil {
		m.IsMuted = *update.IsMuted
	}
	if update.IsPinned != nil {
		m.IsPinned = *update.IsPinned
	}
	if update.IsConversationBlocked != nil {
		m.IsConversationBlocked = *update.IsConversationBlocked
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

// --- messages ---

type fakeMessageRepo struct{ s *fakeStore }

func (r *fakeMessageRepo) Insert(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	r.s.messages[m.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) FindInConversation(_ context.Context, id, conversationID primitive.ObjectID) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.ConversationID != conversationID || m.IsDeleted {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) list(conversationID primitive.ObjectID, senderID *primitive.ObjectID, page, limit int64) ([]*models.Message, int64) {
	var all []*models.Message
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID || m.IsDeleted {
			continue
		}
		if senderID != nil && m.SenderID != *senderID {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= total {
		return nil, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total
}

func (r *fakeMessageRepo) List(_ context.Context, conversationID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs, total := r.list(conversationID, nil, page, limit)
	return msgs, total, nil
}

func (r *fakeMessageRepo) ListBySender(_ context.Context, conversationID, senderID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs, total := r.list(conversationID, &senderID, page, limit)
	return msgs, total, nil
}

func (r *fakeMessageRepo) SetReactions(_ context.Context, id primitive.ObjectID, reactions []models.Reaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		m.Reactions = reactions
		m.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// --- notifications ---

type fakeNotificationRepo struct{ s *fakeStore }

func (r *fakeNotificationRepo) Insert(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	cp := *n
	r.s.notifs[n.ID] = &cp
	return nil
}

func (r *fakeNotificationRepo) List(_ context.Context, userID primitive.ObjectID, page, limit int64, read *bool, typ string) ([]*models.Notification, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Notification
	for _, n := range r.s.notifs {
		if n.UserID != userID {
			continue
		}
		if read != nil && n.Read != *read {
			continue
		}
		if typ != "" && n.Type != typ {
			continue
		}
		cp := *n
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, n := range r.s.notifs {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID primitive.ObjectID) (*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifs[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	now := time.Now().UTC()
	n.Read = true
	n.ReadAt = &now
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var modified int64
	for _, n := range r.s.notifs {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			modified++
		}
	}
	return modified, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifs[id]
	if !ok || n.UserID != userID {
		return mongo.ErrNoDocuments
	}
	delete(r.s.notifs, id)
	return nil
}

func (r *fakeNotificationRepo) DeleteAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, n := range r.s.notifs {
		if n.UserID == userID && n.Read {
			delete(r.s.notifs, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- push tokens ---

type fakePushTokenRepo struct{ s *fakeStore }

func (r *fakePushTokenRepo) Upsert(_ context.Context, t *models.PushToken) (*models.PushToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, existing := range r.s.tokens {
		if existing.Token == t.Token {
			existing.UserID = t.UserID
			existing.Platform = t.Platform
			existing.DeviceID = t.DeviceID
			existing.DeviceName = t.DeviceName
			existing.Active = true
			existing.UpdatedAt = now
			cp := *existing
			return &cp, nil
		}
	}
	t.ID = primitive.NewObjectID()
	t.Active = true
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	r.s.tokens[t.ID] = &cp
	return &cp, nil
}

func (r *fakePushTokenRepo) ListActive(_ context.Context, userID primitive.ObjectID) ([]*models.PushToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PushToken
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.Active {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePushTokenRepo) Deactivate(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[id]; ok {
		t.Active = false
	}
	return nil
}

func (r *fakePushTokenRepo) DeactivateByToken(_ context.Context, token string, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.Token == token && t.UserID == userID {
			t.Active = false
		}
	}
	return nil
}

// --- users ---

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ports ---

type fakeTxnRunner struct{}

func (fakeTxnRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOracle struct {
	blocked map[string]bool
}

func newFakeOracle() *fakeOracle { return &fakeOracle{blocked: make(map[string]bool)} }

func (o *fakeOracle) block(a, b primitive.ObjectID) {
	o.blocked[models.PairKeyFor(a, b)] = true
}

func (o *fakeOracle) IsBlocked(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	return o.blocked[models.PairKeyFor(a, b)], nil
}

type emittedEvent struct {
	kind   string
	target string
	data   interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (b *recordingBroadcaster) record(kind, target string, data interface{}) {
	b.mu.Lock()
	b.events = append(b.events, emittedEvent{kind: kind, target: target, data: data})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) EmitNewMessage(conversationID string, m *models.Message, senderID string) {
	b.record("message:new", conversationID, m)
}

func (b *recordingBroadcaster) EmitReactionUpdated(conversationID string, ev ReactionEvent) {
	b.record("message:reaction", conversationID, ev)
}

func (b *recordingBroadcaster) EmitConversationListUpdated(userID string) {
	b.record("conversations:updated", userID, nil)
}

func (b *recordingBroadcaster) EmitNewNotification(userID string, n *models.Notification) {
	b.record("new_notification", userID, n)
}

func (b *recordingBroadcaster) EmitUnreadCountUpdate(userID string, count int64) {
	b.record("notifications:unread", userID, count)
}

func (b *recordingBroadcaster) byKind(kind string) []emittedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []emittedEvent
	for _, ev := range b.events {
		if ev.kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakePresence struct {
	active map[string]bool
}

func newFakePresence() *fakePresence { return &fakePresence{active: make(map[string]bool)} }

func (p *fakePresence) ActiveWithin(_ context.Context, userID string, _ time.Duration) (bool, error) {
	return p.active[userID], nil
}

type sentPush struct {
	token string
	title string
	body  string
	data  map[string]string
}

type recordingPushSender struct {
	mu       sync.Mutex
	sent     []sentPush
	failWith map[string]push.Result
}

func newRecordingPushSender() *recordingPushSender {
	return &recordingPushSender{failWith: make(map[string]push.Result)}
}

func (s *recordingPushSender) Send(_ context.Context, token, platform, title, body string, data map[string]string) (push.Result, error) {
	s.mu.Lock()
	s.sent = append(s.sent, sentPush{token: token, title: title, body: body, data: data})
	s.mu.Unlock()
	if r, ok := s.failWith[token]; ok {
		return r, nil
	}
	return push.ResultOK, nil
}

// env bundles a fully wired service stack over the fakes.
type env struct {
	store    *fakeStore
	convRepo *fakeConversationRepo
	memRepo  *fakeMemberRepo
	msgRepo  *fakeMessageRepo
	notRepo  *fakeNotificationRepo
	tokRepo  *fakePushTokenRepo
	userRepo *fakeUserRepo
	oracle   *fakeOracle
	bc       *recordingBroadcaster
	presence *fakePresence
	pusher   *recordingPushSender

	convs  *ConversationService
	msgs   *MessageService
	notifs *NotificationService
}

func newEnv() *env {
	store := newFakeStore()
	e := &env{
		store:    store,
		convRepo: &fakeConversationRepo{s: store},
		memRepo:  &fakeMemberRepo{s: store},
		msgRepo:  &fakeMessageRepo{s: store},
		notRepo:  &fakeNotificationRepo{s: store},
		tokRepo:  &fakePushTokenRepo{s: store},
		userRepo: &fakeUserRepo{s: store},
		oracle:   newFakeOracle(),
		bc:       &recordingBroadcaster{},
		presence: newFakePresence(),
		pusher:   newRecordingPushSender(),
	}
	lg := testLogger()
	e.notifs = NewNotificationService(e.notRepo, e.tokRepo, e.presence, e.pusher, e.bc, lg)
	e.convs = NewConversationService(e.convRepo, e.memRepo, e.userRepo, e.oracle, fakeTxnRunner{}, lg)
	e.msgs = NewMessageService(e.convRepo, e.memRepo, e.msgRepo, e.userRepo, e.oracle, fakeTxnRunner{}, e.bc, e.notifs, nil, lg)
	e.msgs.SetDispatch(inlineDispatch)
	return e
}
