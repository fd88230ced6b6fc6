package cache

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "market-dashboard/internal/errors"
	"market-dashboard/internal/logging"
)

// RedisConfig holds connection settings for a Redis-compatible server (Valkey).
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	DialTimeout       time.Duration
	ReconnectInterval time.Duration
}

// RedisStore is a Store over go-redis that keeps serving, as a pass-through,
// while the server is down. It owns an explicit connection state and a
// background loop that re-dials until the server answers.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
	cfg    RedisConfig

	mu        sync.RWMutex
	state     ConnState
	listeners []func(StateChange)
	failures  int // consecutive failed dials since last CONNECTED

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisStore creates the store and starts dialing in the background. It
// never blocks on the network; until the first ping succeeds it behaves as
// an always-miss store.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) *RedisStore {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}

	s := &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.DialTimeout,
			MaxRetries:   -1,
		}),
		logger: logger.With().Str("component", "cache").Str("addr", cfg.Addr).Logger(),
		cfg:    cfg,
		state:  StateDisconnected,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.connectLoop()
	return s
}

// OnStateChange registers a listener for connection transitions. Listeners
// run synchronously on the goroutine that caused the transition.
func (s *RedisStore) OnStateChange(fn func(StateChange)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State reports the current connection state.
func (s *RedisStore) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *RedisStore) connected() bool {
	return s.State() == StateConnected
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.connected() {
		return nil, false
	}
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.observe(err)
		}
		return nil, false
	}
	return b, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 || !s.connected() {
		return
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.observe(err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 || !s.connected() {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.observe(err)
	}
}

// Flush issues FLUSHDB on the selected database.
func (s *RedisStore) Flush(ctx context.Context) error {
	if !s.connected() {
		return apperrors.ErrCacheUnavailable
	}
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		s.observe(err)
		return apperrors.Wrap(apperrors.ErrCacheUnavailable, err.Error())
	}
	return nil
}

// Close stops the reconnect loop and releases the client.
func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.client.Close()
		s.setState(StateDisconnected, nil)
	})
	return err
}

// observe drops the store to DISCONNECTED when err means the server is gone.
// Caller-side cancellation is not a connection failure.
func (s *RedisStore) observe(err error) {
	if !isConnectionError(err) {
		return
	}
	if s.setState(StateDisconnected, err) {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (s *RedisStore) connectLoop() {
	defer close(s.done)

	s.dial()

	ticker := time.NewTicker(s.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.kick:
			// A drop was just observed; wait one interval before re-dialing.
			select {
			case <-s.stop:
				return
			case <-time.After(s.cfg.ReconnectInterval):
			}
		}
		if !s.connected() {
			s.dial()
		}
	}
}

func (s *RedisStore) dial() {
	s.setState(StateConnecting, nil)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	err := s.client.Ping(ctx).Err()
	cancel()

	if err != nil {
		s.setState(StateDisconnected, err)
		return
	}
	s.setState(StateConnected, nil)
}

// setState applies a transition and reports whether one happened.
func (s *RedisStore) setState(to ConnState, cause error) bool {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return false
	}
	s.state = to
	retrying := false
	switch to {
	case StateConnected:
		s.failures = 0
	case StateDisconnected:
		if from == StateConnecting {
			s.failures++
			retrying = s.failures > 1
		}
	}
	listeners := make([]func(StateChange), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	change := StateChange{From: from, To: to, Err: cause, At: time.Now()}
	s.logTransition(change, retrying)
	for _, fn := range listeners {
		fn(change)
	}
	return true
}

// Repeated failed re-dials stay at debug so an outage produces one warning.
func (s *RedisStore) logTransition(c StateChange, retrying bool) {
	if c.To == StateConnecting || retrying {
		s.logger.Debug().
			Str("event", "state_change").
			Str("from", string(c.From)).
			Str("to", string(c.To)).
			AnErr("cause", c.Err).
			Msg("cache dial")
		return
	}
	logging.LogStateChange(s.logger, "cache", string(c.From), string(c.To), c.Err)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
