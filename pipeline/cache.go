package pipeline

import (
	"context"
	"sync"

	"github.com/nijaru/clipzaar/models"
)

// CachedTranscript is what a run needs to skip acquisition and transcription.
type CachedTranscript struct {
	VideoID         string
	Title           string
	DurationSeconds int
	Transcript      models.Transcript
}

type TranscriptCache interface {
	Get(ctx context.Context, videoID string) (CachedTranscript, bool, error)
	Put(ctx context.Context, entry CachedTranscript) error
}

// videoLock serializes runs for one video. refs counts holders and waiters
// so the entry can be dropped once nobody needs it.
type videoLock struct {
	sem  chan struct{}
	refs int
}

// lockVideo waits for the per-video lock or for ctx to end. The returned
// release func is safe to call more than once.
func (p *Pipeline) lockVideo(ctx context.Context, videoID string) (func(), error) {
	p.locksMu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*videoLock)
	}
	lock, ok := p.locks[videoID]
	if !ok {
		lock = &videoLock{sem: make(chan struct{}, 1)}
		p.locks[videoID] = lock
	}
	lock.refs++
	p.locksMu.Unlock()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		p.dropLock(videoID, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.sem
			p.dropLock(videoID, lock)
		})
	}, nil
}

func (p *Pipeline) dropLock(videoID string, lock *videoLock) {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, videoID)
	}
}

func (p *Pipeline) heldLocks() int {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	return len(p.locks)
}

func (p *Pipeline) lookup(ctx context.Context, videoID string) (CachedTranscript, bool) {
	cached, ok, err := p.cache.Get(ctx, videoID)
	if err != nil {
		p.logger.WithError(err).WithField("videoID", videoID).Warn("Failed to read transcript cache")
		return CachedTranscript{}, false
	}
	if !ok || cached.Transcript.Text == "" {
		return CachedTranscript{}, false
	}
	return cached, true
}

func (p *Pipeline) store(ctx context.Context, entry CachedTranscript) {
	if err := p.cache.Put(ctx, entry); err != nil {
		p.logger.WithError(err).WithField("videoID", entry.VideoID).Warn("Failed to save transcript to cache")
	}
}
