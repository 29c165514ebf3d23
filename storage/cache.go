package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

type backend interface {
	domain.TodoStorage
	domain.IdentityStorage
	PublishEvents(ctx context.Context, events []domain.TodoEvent) error
}

// Cache wraps a backend with Redis-backed caching of owner collections and
// user lookups. Todo writes invalidate the owner's collection. Redis failures
// fall back to the backend.
type Cache struct {
	backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{backend: base, redis: client, ttl: ttl}
}

// ListTodos serves the owner's whole collection from cache when possible. The
// cached collection is returned for filtered queries too; callers re-apply the
// filter in memory.
func (c *Cache) ListTodos(ctx context.Context, ownerID string, filter domain.TodoFilter) ([]domain.Todo, error) {
	gen, ok := c.generation(ctx, ownerID)
	if !ok {
		return c.backend.ListTodos(ctx, ownerID, filter)
	}
	key := todosCacheKey(ownerID, gen)
	var todos []domain.Todo
	if c.load(ctx, key, &todos) {
		return todos, nil
	}
	if !unfiltered(filter) {
		return c.backend.ListTodos(ctx, ownerID, filter)
	}

	todos, err := c.backend.ListTodos(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	// A write racing this read bumps the generation, so the stale collection
	// lands under a key nobody reads.
	c.store(ctx, key, todos)
	return todos, nil
}

func (c *Cache) InsertTodo(ctx context.Context, t domain.Todo) error {
	err := c.backend.InsertTodo(ctx, t)
	c.evictTodos(ctx, t.CreatedBy)
	return err
}

func (c *Cache) ReplaceTodo(ctx context.Context, t domain.Todo, etag string) error {
	err := c.backend.ReplaceTodo(ctx, t, etag)
	c.evictTodos(ctx, t.CreatedBy)
	return err
}

func (c *Cache) DeleteTodo(ctx context.Context, ownerID, id string) error {
	err := c.backend.DeleteTodo(ctx, ownerID, id)
	c.evictTodos(ctx, ownerID)
	return err
}

// generation returns the current collection generation of an owner.
func (c *Cache) generation(ctx context.Context, ownerID string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, todosGenKey(ownerID)).Result()
	switch {
	case err == redis.Nil:
		return "0", true
	case err != nil:
		log.WithError(err).Debug("cache generation read failed")
		return "", false
	}
	return gen, true
}

// evictTodos moves the owner to a new generation, orphaning cached
// collections. The generation outlives any collection stored under it.
func (c *Cache) evictTodos(ctx context.Context, ownerID string) {
	if c.redis == nil {
		return
	}
	key := todosGenKey(ownerID)
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.Expire(ctx, key, 2*c.ttl+time.Minute)
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("owner", ownerID).Warn("todo cache eviction failed")
	}
}

func (c *Cache) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if c.load(ctx, userCacheKey(id), &u) {
		return &u, nil
	}
	user, err := c.backend.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userCacheKey(id), user)
	return user, nil
}

// FindUsersByIDs reads cached users in one round trip and fetches the rest.
func (c *Cache) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if c.redis == nil || len(ids) == 0 {
		return c.backend.FindUsersByIDs(ctx, ids)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userCacheKey(id)
	}
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		log.WithError(err).Debug("user cache read failed")
		return c.backend.FindUsersByIDs(ctx, ids)
	}

	users := make([]domain.User, 0, len(ids))
	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		var u domain.User
		if !ok || sonic.UnmarshalString(s, &u) != nil {
			missing = append(missing, ids[i])
			continue
		}
		users = append(users, u)
	}
	if len(missing) == 0 {
		return users, nil
	}

	fetched, err := c.backend.FindUsersByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i := range fetched {
		c.store(ctx, userCacheKey(fetched[i].ID), fetched[i])
	}
	return append(users, fetched...), nil
}

func (c *Cache) load(ctx context.Context, key string, v any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Debug("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func unfiltered(f domain.TodoFilter) bool {
	return f.Priority == nil && f.Completed == nil && len(f.Tags) == 0 && f.MentionedUser == ""
}

func todosCacheKey(ownerID, gen string) string {
	return "todos:" + ownerID + ":" + gen
}

func todosGenKey(ownerID string) string {
	return "todos-gen:" + ownerID
}

func userCacheKey(id string) string {
	return "user:" + id
}
