package drivers

import "github.com/creastat/chatcontext/session"

// NewStore creates a session.Store of the given type.
// For Redis, requires WithRedisClient option.
func NewStore(storeType session.StoreType, opts ...StoreOption) (session.Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case session.StoreTypeMemory:
		return NewInMemoryStore(), nil

	case session.StoreTypeRedis:
		if config.redisClient == nil {
			return nil, session.ErrInvalidConfig
		}
		store := NewRedisStore(config.redisClient, config.redisTTL)
		if config.keyPrefix != "" {
			store.prefix = config.keyPrefix
		}
		return store, nil

	default:
		return nil, session.ErrInvalidStoreType
	}
}
