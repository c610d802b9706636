package authstate

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("authstate.already_started")

const defaultSideEffectTimeout = 15 * time.Second

// Options configures a Publisher.
type Options struct {
	Bridge            SessionBridge
	Provisioner       Provisioner
	Logger            *zap.Logger
	SideEffectTimeout time.Duration
}

// Publisher tracks the current identity, publishes every notification, and
// drives the session bridge and profile provisioning on genuine transitions.
type Publisher struct {
	bridge      SessionBridge
	provisioner Provisioner
	logger      *zap.Logger
	timeout     time.Duration

	lifetime context.Context
	cancel   context.CancelFunc
	effects  sync.WaitGroup

	mutex            sync.Mutex
	phase            Phase
	state            State
	previousID       string
	sequence         uint64
	latestTransition uint64
	provider         IdentityProvider
	unsubscribe      func()
	subscribers      map[uint64]chan State
	nextSubscriberID uint64
	closed           bool
}

// NewPublisher builds an unstarted publisher whose snapshot reports loading.
func NewPublisher(options Options) *Publisher {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := options.SideEffectTimeout
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Publisher{
		bridge:      options.Bridge,
		provisioner: options.Provisioner,
		logger:      logger,
		timeout:     timeout,
		lifetime:    lifetime,
		cancel:      cancel,
		phase:       PhaseUninitialized,
		state:       State{Loading: true},
		subscribers: make(map[uint64]chan State),
	}
}

// Start subscribes once to provider. The provider may deliver its first
// notification before Start returns.
func (publisher *Publisher) Start(provider IdentityProvider) error {
	publisher.mutex.Lock()
	if publisher.phase != PhaseUninitialized || publisher.closed {
		publisher.mutex.Unlock()
		return ErrAlreadyStarted
	}
	publisher.phase = PhaseLoading
	publisher.provider = provider
	publisher.mutex.Unlock()

	unsubscribe := provider.Subscribe(publisher.handleNotification)

	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed {
		unsubscribe()
		return nil
	}
	publisher.unsubscribe = unsubscribe
	return nil
}

// Snapshot returns the latest published state.
func (publisher *Publisher) Snapshot() State {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return publisher.state
}

// Phase reports the lifecycle position.
func (publisher *Publisher) Phase() Phase {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return publisher.phase
}

// Subscribe returns a channel that always holds the most recent state not yet
// read; intermediate states may be skipped by slow readers. The current state
// is delivered immediately.
func (publisher *Publisher) Subscribe() (<-chan State, func()) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	channel := make(chan State, 1)
	if publisher.closed {
		close(channel)
		return channel, func() {}
	}
	subscriberID := publisher.nextSubscriberID
	publisher.nextSubscriberID++
	publisher.subscribers[subscriberID] = channel
	channel <- publisher.state

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			publisher.mutex.Lock()
			defer publisher.mutex.Unlock()
			if existing, ok := publisher.subscribers[subscriberID]; ok {
				delete(publisher.subscribers, subscriberID)
				close(existing)
			}
		})
	}
}

// Close stops listening, cancels in-flight side effects, and closes every subscription.
func (publisher *Publisher) Close() {
	publisher.mutex.Lock()
	if publisher.closed {
		publisher.mutex.Unlock()
		return
	}
	publisher.closed = true
	unsubscribe := publisher.unsubscribe
	publisher.unsubscribe = nil
	for subscriberID, channel := range publisher.subscribers {
		delete(publisher.subscribers, subscriberID)
		close(channel)
	}
	publisher.mutex.Unlock()

	publisher.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until every dispatched side effect has finished.
func (publisher *Publisher) Wait() {
	publisher.effects.Wait()
}

func (publisher *Publisher) handleNotification(identity *Identity) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed {
		return
	}

	publisher.sequence++
	sequence := publisher.sequence

	var published *Identity
	nextID := ""
	if identity != nil {
		copied := *identity
		published = &copied
		nextID = copied.ID
	}
	transition := nextID != publisher.previousID
	publisher.previousID = nextID

	publisher.state = State{
		Identity:        published,
		Loading:         false,
		IsAuthenticated: published != nil,
		Sequence:        sequence,
	}
	if published != nil {
		publisher.phase = PhaseSignedIn
	} else {
		publisher.phase = PhaseSignedOut
	}
	publisher.broadcastLocked()

	if !transition {
		publisher.logger.Debug("identity refreshed without transition", zap.Uint64("sequence", sequence))
		return
	}
	publisher.latestTransition = sequence
	publisher.effects.Add(1)
	go publisher.synchronise(sequence, published)
}

func (publisher *Publisher) broadcastLocked() {
	for _, channel := range publisher.subscribers {
		select {
		case channel <- publisher.state:
		default:
			select {
			case <-channel:
			default:
			}
			channel <- publisher.state
		}
	}
}

func (publisher *Publisher) synchronise(sequence uint64, identity *Identity) {
	defer publisher.effects.Done()
	ctx, cancel := context.WithTimeout(publisher.lifetime, publisher.timeout)
	defer cancel()

	if identity == nil {
		publisher.clearSession(ctx, sequence)
		return
	}
	if publisher.provisioner != nil {
		if provisionErr := publisher.provisioner.EnsureProfile(ctx, *identity); provisionErr != nil {
			publisher.logger.Warn("profile provisioning failed",
				zap.String("code", "authstate.profile_provision_failure"),
				zap.String("user_id", identity.ID),
				zap.Error(provisionErr),
			)
		}
	}
	publisher.establishSession(ctx, sequence, identity)
}

func (publisher *Publisher) establishSession(ctx context.Context, sequence uint64, identity *Identity) {
	if publisher.bridge == nil {
		return
	}
	publisher.mutex.Lock()
	provider := publisher.provider
	publisher.mutex.Unlock()
	credential, tokenErr := provider.IDToken(ctx)
	if tokenErr != nil {
		publisher.logger.Warn("credential unavailable for session establishment",
			zap.String("code", "authstate.credential_unavailable"),
			zap.String("user_id", identity.ID),
			zap.Error(tokenErr),
		)
		return
	}
	cookie, establishErr := publisher.bridge.Establish(ctx, credential)
	if establishErr != nil {
		publisher.logger.Warn("session establishment failed",
			zap.String("code", "authstate.session_establish_failure"),
			zap.String("user_id", identity.ID),
			zap.Error(establishErr),
		)
		return
	}
	publisher.applyIfLatest(sequence, cookie, "establish")
}

func (publisher *Publisher) clearSession(ctx context.Context, sequence uint64) {
	if publisher.bridge == nil {
		return
	}
	cookie, clearErr := publisher.bridge.Clear(ctx)
	if clearErr != nil {
		publisher.logger.Warn("session clear failed",
			zap.String("code", "authstate.session_clear_failure"),
			zap.Error(clearErr),
		)
		return
	}
	publisher.applyIfLatest(sequence, cookie, "clear")
}

// applyIfLatest drops results superseded by a later transition. Refresh-only
// notifications never supersede, since they dispatch no side effect of their own.
func (publisher *Publisher) applyIfLatest(sequence uint64, cookie *http.Cookie, operation string) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed || sequence != publisher.latestTransition {
		publisher.logger.Debug("discarding stale session result",
			zap.String("operation", operation),
			zap.Uint64("sequence", sequence),
			zap.Uint64("latest", publisher.latestTransition),
		)
		return
	}
	publisher.bridge.ApplySessionCookie(cookie)
}
