package track

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/balance"
	"github.com/fortunto2/super-turbo-sub006/internal/chat"
	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/superduper"
	"github.com/fortunto2/super-turbo-sub006/internal/transport"
)

// Provider is the slice of the generation API the tracker drives.
type Provider interface {
	GenerateImage(ctx context.Context, req superduper.ImageRequest) (*superduper.GenerateResult, error)
	GenerateVideo(ctx context.Context, req superduper.VideoRequest) (*superduper.GenerateResult, error)
	Project(ctx context.Context, projectID string) (*superduper.ProjectStatus, error)
}

// TranscriptPatcher reflects generation lifecycle into the chat transcript.
type TranscriptPatcher interface {
	WritePlaceholder(ctx context.Context, chatID, userID string, payload domain.ArtifactPayload) (string, error)
	ApplyCompletion(ctx context.Context, chatID string, c chat.Completion) error
}

// BalanceService charges and refunds generation credits. Multiplier labels
// scale the base cost of the operation.
type BalanceService interface {
	Deduct(ctx context.Context, userID string, op domain.OperationType, multipliers []string, reason string) (int, error)
	Refund(ctx context.Context, userID string, amount int, reason string) error
}

// PollConfig tunes the fallback poller that covers for dropped streams.
type PollConfig struct {
	Delay       time.Duration // grace before the first status check
	Interval    time.Duration // spacing between checks
	MaxAttempts int
	WallClock   time.Duration // hard cap on the whole poll, delay included
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Delay <= 0 {
		c.Delay = 10 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	if c.WallClock <= 0 {
		c.WallClock = 65 * time.Second
	}
	return c
}

// Generation is the externally visible state of a chat's active generation.
type Generation struct {
	Status    domain.JobStatus    `json:"status"`
	Kind      domain.ArtifactKind `json:"kind"`
	ProjectID string              `json:"projectId,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
	FileID    string              `json:"fileId,omitempty"`
	Prompt    string              `json:"prompt,omitempty"`
	URL       string              `json:"url,omitempty"`
	Error     string              `json:"error,omitempty"`
	Progress  int                 `json:"progress"`
	StartedAt time.Time           `json:"startedAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type chatState struct {
	Generation

	userID     string
	cost       int
	channel    string
	store      *Store
	cancelPoll context.CancelFunc
}

// Manager drives one generation per chat: it charges the user, submits the
// job, subscribes to the provider's event stream, and backstops the stream
// with a bounded status poll. Completion is first-writer-wins: whichever of
// the stream handler and the poller reports first settles the job, the other
// becomes a no-op.
type Manager struct {
	images   *Store
	videos   *Store
	provider Provider
	patcher  TranscriptPatcher
	balances BalanceService
	cfg      PollConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	chats map[string]*chatState
	wg    sync.WaitGroup
}

// NewManager wires a Manager. images and videos are the per-domain connection
// stores; each generation subscribes on the store matching its kind.
func NewManager(images, videos *Store, provider Provider, patcher TranscriptPatcher, balances BalanceService, cfg PollConfig, logger zerolog.Logger) *Manager {
	return &Manager{
		images:   images,
		videos:   videos,
		provider: provider,
		patcher:  patcher,
		balances: balances,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		chats:    make(map[string]*chatState),
	}
}

// GenerateImage charges the user, submits the prompt, and starts tracking the
// resulting project. A provider failure refunds the charge and is reported
// through the returned state rather than an error; errors signal balance or
// persistence problems.
func (m *Manager) GenerateImage(ctx context.Context, chatID, userID string, req superduper.ImageRequest) (*Generation, error) {
	op := domain.OperationTextToImage
	if req.SourceImageURL != "" {
		op = domain.OperationImageToImage
	}
	multipliers := balance.Multipliers(req.Quality, 0)
	return m.generate(ctx, chatID, userID, domain.ArtifactKindImage, op, multipliers, req.Prompt, func(ctx context.Context) (*superduper.GenerateResult, error) {
		req.ChatID = chatID
		return m.provider.GenerateImage(ctx, req)
	})
}

// GenerateVideo is the video counterpart of GenerateImage.
func (m *Manager) GenerateVideo(ctx context.Context, chatID, userID string, req superduper.VideoRequest) (*Generation, error) {
	op := domain.OperationTextToVideo
	if req.SourceImageURL != "" {
		op = domain.OperationImageToVideo
	}
	multipliers := balance.Multipliers(req.Quality, req.DurationSeconds)
	return m.generate(ctx, chatID, userID, domain.ArtifactKindVideo, op, multipliers, req.Prompt, func(ctx context.Context) (*superduper.GenerateResult, error) {
		req.ChatID = chatID
		return m.provider.GenerateVideo(ctx, req)
	})
}

func (m *Manager) generate(ctx context.Context, chatID, userID string, kind domain.ArtifactKind, op domain.OperationType, multipliers []string, prompt string, submit func(context.Context) (*superduper.GenerateResult, error)) (*Generation, error) {
	m.mu.Lock()
	if st := m.chats[chatID]; st != nil && !st.Status.Terminal() {
		m.mu.Unlock()
		return nil, domain.ErrDuplicateOperation
	}
	m.mu.Unlock()

	cost, err := m.balances.Deduct(ctx, userID, op, multipliers, "generation "+chatID)
	if err != nil {
		return nil, err
	}

	res, err := submit(ctx)
	if err != nil || !res.Success {
		if refundErr := m.balances.Refund(ctx, userID, cost, "failed generation "+chatID); refundErr != nil {
			m.logger.Error().Err(refundErr).Str("user_id", userID).Int("amount", cost).Msg("track: refund after provider failure failed")
		}
		msg := "generation request failed"
		if err != nil {
			m.logger.Warn().Err(err).Str("chat_id", chatID).Msg("track: provider rejected generation")
		} else if res.Error != "" {
			msg = res.Error
		}
		st := m.setState(chatID, func(st *chatState) {
			st.Status = domain.JobStatusFailed
			st.Kind = kind
			st.Prompt = prompt
			st.Error = msg
		})
		return st, nil
	}

	now := time.Now()
	payload := domain.ArtifactPayload{
		Status:    string(domain.JobStatusPending),
		Kind:      kind,
		ProjectID: res.ProjectID,
		RequestID: res.RequestID,
		FileID:    res.FileID,
		Prompt:    prompt,
		Timestamp: now.UnixMilli(),
	}
	if _, err := m.patcher.WritePlaceholder(ctx, chatID, userID, payload); err != nil {
		// Tracking still proceeds; the completion will synthesize a message.
		m.logger.Error().Err(err).Str("chat_id", chatID).Msg("track: placeholder write failed")
	}

	st := m.setState(chatID, func(st *chatState) {
		st.Status = domain.JobStatusProcessing
		st.Kind = kind
		st.ProjectID = res.ProjectID
		st.RequestID = res.RequestID
		st.FileID = res.FileID
		st.Prompt = prompt
		st.StartedAt = now
		st.userID = userID
		st.cost = cost
	})

	if err := m.StartTracking(ctx, chatID, kind, res.ProjectID, res.RequestID); err != nil {
		m.logger.Warn().Err(err).Str("project_id", res.ProjectID).Msg("track: stream subscribe failed, poller only")
	}
	return st, nil
}

// StartTracking subscribes to the project's event stream and arms the poll
// fallback. It is also used on its own to resume tracking a generation
// submitted elsewhere.
func (m *Manager) StartTracking(ctx context.Context, chatID string, kind domain.ArtifactKind, projectID, requestID string) error {
	store := m.storeFor(kind)
	channel := "project." + projectID

	m.mu.Lock()
	st := m.chats[chatID]
	if st == nil {
		st = &chatState{}
		st.Status = domain.JobStatusProcessing
		st.Kind = kind
		st.ProjectID = projectID
		st.RequestID = requestID
		st.StartedAt = time.Now()
		m.chats[chatID] = st
	}
	st.channel = channel
	st.store = store
	if st.cancelPoll != nil {
		st.cancelPoll()
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	st.cancelPoll = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(pollCtx, chatID, projectID)

	handlers := []Handler{
		m.progressHandler(chatID, projectID),
		store.CompletionHandler(channel, projectID, kind, func(res Result) {
			m.complete(chatID, res)
		}),
	}
	_, err := store.Connect(ctx, channel, handlers...)
	return err
}

// ForceCheck asks the provider for the project status right now, outside the
// poll schedule, and settles the generation if it already finished.
func (m *Manager) ForceCheck(ctx context.Context, chatID string) (*Generation, error) {
	m.mu.Lock()
	st := m.chats[chatID]
	if st == nil {
		m.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	projectID := st.ProjectID
	terminal := st.Status.Terminal()
	m.mu.Unlock()

	if !terminal && projectID != "" {
		if err := m.checkProject(ctx, chatID, projectID); err != nil {
			return nil, err
		}
	}
	return m.State(chatID), nil
}

// State returns a snapshot of the chat's generation, or nil when none exists.
func (m *Manager) State(chatID string) *Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.chats[chatID]
	if st == nil {
		return nil
	}
	snapshot := st.Generation
	return &snapshot
}

// Reset tears down the chat's tracking synchronously and forgets its state.
// Cleanup runs before the map entry is dropped so a racing event cannot
// resurrect the old generation.
func (m *Manager) Reset(chatID string) {
	m.mu.Lock()
	st := m.chats[chatID]
	delete(m.chats, chatID)
	m.mu.Unlock()
	if st == nil {
		return
	}
	if st.cancelPoll != nil {
		st.cancelPoll()
	}
	if st.store != nil && st.channel != "" {
		st.store.Cleanup(st.channel)
	}
}

// ManagerDebugInfo aggregates both stores' registries and the chat states.
type ManagerDebugInfo struct {
	Images DebugInfo             `json:"images"`
	Videos DebugInfo             `json:"videos"`
	Chats  map[string]Generation `json:"chats"`
}

// DebugInfo snapshots the manager for the debug endpoint.
func (m *Manager) DebugInfo() ManagerDebugInfo {
	m.mu.Lock()
	chats := make(map[string]Generation, len(m.chats))
	for id, st := range m.chats {
		chats[id] = st.Generation
	}
	m.mu.Unlock()
	return ManagerDebugInfo{
		Images: m.images.DebugInfo(),
		Videos: m.videos.DebugInfo(),
		Chats:  chats,
	}
}

// Shutdown cancels every poll loop, closes all stream connections, and waits
// for the pollers to drain.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, st := range m.chats {
		if st.cancelPoll != nil {
			st.cancelPoll()
		}
	}
	m.mu.Unlock()
	m.images.ForceCleanup()
	m.videos.ForceCleanup()
	m.wg.Wait()
}

func (m *Manager) storeFor(kind domain.ArtifactKind) *Store {
	if kind == domain.ArtifactKindVideo {
		return m.videos
	}
	return m.images
}

func (m *Manager) setState(chatID string, mutate func(*chatState)) *Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.chats[chatID]
	if st == nil {
		st = &chatState{}
		st.StartedAt = time.Now()
		m.chats[chatID] = st
	}
	mutate(st)
	st.UpdatedAt = time.Now()
	snapshot := st.Generation
	return &snapshot
}

func (m *Manager) progressHandler(chatID, projectID string) Handler {
	return func(ev transport.Event) {
		if ev.ProjectID != "" && ev.ProjectID != projectID {
			return
		}
		switch ev.Type {
		case transport.EventTypeProgress:
			m.setState(chatID, func(st *chatState) {
				if st.Status.Terminal() {
					return
				}
				if ev.Progress > st.Progress {
					st.Progress = ev.Progress
				}
			})
		case transport.EventTypeError:
			m.fail(chatID, ev.Error)
		}
	}
}

// complete settles the generation once. Later calls for the same chat find a
// terminal state and return immediately.
func (m *Manager) complete(chatID string, res Result) {
	m.mu.Lock()
	st := m.chats[chatID]
	if st == nil || st.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	st.Status = domain.JobStatusCompleted
	st.Progress = 100
	st.URL = res.URL
	st.Error = ""
	st.UpdatedAt = time.Now()
	cancel := st.cancelPoll
	st.cancelPoll = nil
	store := st.store
	channel := st.channel
	prompt := st.Prompt
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if store != nil && channel != "" {
		store.Cleanup(channel)
	}

	// The caller's request context is long gone by the time a stream or poll
	// completion lands, so the transcript patch runs on its own context.
	ctx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	err := m.patcher.ApplyCompletion(ctx, chatID, chat.Completion{
		ProjectID:    res.ProjectID,
		RequestID:    res.RequestID,
		Kind:         res.Kind,
		URL:          res.URL,
		ThumbnailURL: res.ThumbnailURL,
		Prompt:       prompt,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("chat_id", chatID).Str("project_id", res.ProjectID).Msg("track: transcript patch failed")
	}
	m.logger.Info().Str("chat_id", chatID).Str("project_id", res.ProjectID).Str("url", res.URL).Msg("track: generation completed")
}

func (m *Manager) fail(chatID, reason string) {
	m.mu.Lock()
	st := m.chats[chatID]
	if st == nil || st.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	st.Status = domain.JobStatusFailed
	st.Error = reason
	st.UpdatedAt = time.Now()
	cancel := st.cancelPoll
	st.cancelPoll = nil
	store := st.store
	channel := st.channel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if store != nil && channel != "" {
		store.Cleanup(channel)
	}
	m.logger.Warn().Str("chat_id", chatID).Str("reason", reason).Msg("track: generation failed")
}

// pollLoop backstops the event stream. After an initial delay it asks the
// provider for the project status on a fixed interval, bounded both by an
// attempt count and a wall-clock cap. The loop stops the moment the
// generation settles through any path. Exhausting the budget only retires
// the poller; the stream subscription stays registered and can still settle
// the job, so only a provider-reported failure or a Reset marks it failed.
func (m *Manager) pollLoop(ctx context.Context, chatID, projectID string) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.WallClock)
	defer cancel()

	delay := time.NewTimer(m.cfg.Delay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if done := m.pollOnce(ctx, chatID, projectID, attempt); done {
			return
		}
		if attempt == m.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	m.logger.Debug().Str("chat_id", chatID).Str("project_id", projectID).Msg("track: poll budget exhausted, waiting on stream")
}

// pollOnce reports true when the poll has nothing more to do.
func (m *Manager) pollOnce(ctx context.Context, chatID, projectID string, attempt int) bool {
	m.mu.Lock()
	st := m.chats[chatID]
	terminal := st == nil || st.Status.Terminal()
	m.mu.Unlock()
	if terminal {
		return true
	}

	if err := m.checkProject(ctx, chatID, projectID); err != nil {
		m.logger.Debug().Err(err).Str("project_id", projectID).Int("attempt", attempt).Msg("track: poll check failed")
	}

	m.mu.Lock()
	st = m.chats[chatID]
	terminal = st == nil || st.Status.Terminal()
	m.mu.Unlock()
	return terminal
}

func (m *Manager) checkProject(ctx context.Context, chatID, projectID string) error {
	status, err := m.provider.Project(ctx, projectID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	st := m.chats[chatID]
	if st == nil {
		m.mu.Unlock()
		return nil
	}
	kind := st.Kind
	requestID := st.RequestID
	m.mu.Unlock()

	if url, thumbnail := status.CompletedURL(); url != "" {
		m.complete(chatID, Result{
			ProjectID:    projectID,
			RequestID:    requestID,
			Kind:         kind,
			URL:          url,
			ThumbnailURL: thumbnail,
		})
		return nil
	}
	if status.Failed() {
		m.fail(chatID, "provider reported failure")
	}
	return nil
}
