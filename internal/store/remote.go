package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// cachedTask mirrors one remote task record plus the Sync Controller's
// dirty flag (spec §4.3 "on unreachable remote, the cache stores
// dirty=true").
type cachedTask struct {
	Task  Task `json:"task"`
	Dirty bool `json:"dirty"`
}

type remoteCache struct {
	Tasks map[string]cachedTask `json:"tasks"`
}

// Remote is the HTTP-tracker backend with a local cache that mirrors
// Local (spec §4.3). Credentials are loaded from a .env file via
// joho/godotenv the way the teacher's config layer reads environment
// overrides; requests retry on 429/5xx with cenkalti/backoff/v4.
type Remote struct {
	Client       *resty.Client
	BaseURL      string
	CachePath    string
	RequiredTags []string
	BatchSize    int
	BatchPause   time.Duration

	mu    sync.Mutex
	cache *remoteCache
}

// NewRemote builds a Remote backend. envFile, if non-empty, is loaded
// with godotenv before reading AGENTCTL_REMOTE_TOKEN.
func NewRemote(baseURL, cachePath, envFile string, requiredTags []string) *Remote {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	if token := os.Getenv("AGENTCTL_REMOTE_TOKEN"); token != "" {
		client.SetAuthToken(token)
	}
	return &Remote{
		Client:       client,
		BaseURL:      baseURL,
		CachePath:    cachePath,
		RequiredTags: requiredTags,
		BatchSize:    25,
		BatchPause:   2 * time.Second,
	}
}

func (r *Remote) Capabilities() map[Capability]bool {
	return map[Capability]bool{
		CapListTasks:            true,
		CapWriteTask:            true,
		CapWriteTasks:           true,
		CapExport:               true,
		CapGetTaskDoc:           true,
		CapSetTaskDoc:           true,
		CapTouchTaskDocMetadata: false,
		CapNormalize:            false,
		CapSync:                true,
	}
}

func (r *Remote) loadCacheLocked() (*remoteCache, error) {
	if r.cache != nil {
		return r.cache, nil
	}
	data, err := os.ReadFile(r.CachePath)
	if os.IsNotExist(err) {
		r.cache = &remoteCache{Tasks: map[string]cachedTask{}}
		return r.cache, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindState, err, "read remote cache %s", r.CachePath)
	}
	var c remoteCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errs.Wrap(errs.KindIntegrity, err, "parse remote cache %s", r.CachePath)
	}
	if c.Tasks == nil {
		c.Tasks = map[string]cachedTask{}
	}
	r.cache = &c
	return r.cache, nil
}

func (r *Remote) saveCacheLocked() error {
	data, err := json.MarshalIndent(r.cache, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "marshal remote cache")
	}
	return atomicWrite(r.CachePath, append(data, '\n'))
}

// withRetry wraps fn with exponential backoff, retrying on 429/5xx and
// transport errors, bounded by maxElapsed (spec §4.8 "retried on
// 429/5xx with exponential backoff (bounded attempts)").
func withRetry(ctx context.Context, maxElapsed time.Duration, fn func() (*resty.Response, error)) (*resty.Response, error) {
	b := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsed),
	), ctx)

	var resp *resty.Response
	op := func() error {
		r, err := fn()
		resp = r
		if err != nil {
			return err
		}
		if r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500 {
			return fmt.Errorf("remote returned %d", r.StatusCode())
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return resp, errs.Wrap(errs.KindRemote, err, "remote tracker request failed")
	}
	return resp, nil
}

// fetchRemoteTasks performs the raw GET against the tracker with no
// cache merge applied; err is non-nil (or resp nil) on any transport or
// retry-exhaustion failure.
func (r *Remote) fetchRemoteTasks(ctx context.Context) ([]Task, error) {
	var remoteTasks []Task
	resp, err := withRetry(ctx, 30*time.Second, func() (*resty.Response, error) {
		return r.Client.R().SetContext(ctx).SetResult(&remoteTasks).Get("/tasks")
	})
	if err != nil || resp == nil {
		if err == nil {
			err = errs.Wrap(errs.KindRemote, fmt.Errorf("empty response"), "fetch remote tasks")
		}
		return nil, err
	}
	return remoteTasks, nil
}

// FetchRemoteTasks exposes the raw tracker fetch (no cache merge, no
// dirty-preservation) for the Sync Controller's pull, which needs to
// compare the untouched remote state against the local cache per task.
func (r *Remote) FetchRemoteTasks(ctx context.Context) ([]Task, error) {
	return r.fetchRemoteTasks(ctx)
}

// CachedTasks returns every task currently in the local cache, dirty or
// not, sorted by id (the Sync Controller's local-side comparison set).
func (r *Remote) CachedTasks(ctx context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, err := r.loadCacheLocked()
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(cache.Tasks))
	for _, ct := range cache.Tasks {
		tasks = append(tasks, ct.Task)
	}
	return byIDAsc(tasks), nil
}

// SetCachedTask overwrites one cache entry directly, used by the Sync
// Controller's pull when the `prefer-remote` conflict strategy
// overwrites a dirty local entry with the remote copy.
func (r *Remote) SetCachedTask(ctx context.Context, t Task, dirty bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, err := r.loadCacheLocked()
	if err != nil {
		return err
	}
	cache.Tasks[t.ID] = cachedTask{Task: t, Dirty: dirty}
	return r.saveCacheLocked()
}

// ListTasks fetches the remote task list, falling back to the cache on
// failure (spec §4.8 "network failures degrade to cache-only behavior
// in read paths").
func (r *Remote) ListTasks(ctx context.Context) ([]Task, error) {
	remoteTasks, err := r.fetchRemoteTasks(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, cerr := r.loadCacheLocked()
	if cerr != nil {
		return nil, cerr
	}

	if err != nil {
		tasks := make([]Task, 0, len(cache.Tasks))
		for _, ct := range cache.Tasks {
			tasks = append(tasks, ct.Task)
		}
		return byIDAsc(tasks), nil
	}

	for _, t := range remoteTasks {
		if existing, ok := cache.Tasks[t.ID]; !ok || !existing.Dirty {
			cache.Tasks[t.ID] = cachedTask{Task: t, Dirty: false}
		}
	}
	if err := r.saveCacheLocked(); err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(cache.Tasks))
	for _, ct := range cache.Tasks {
		tasks = append(tasks, ct.Task)
	}
	return byIDAsc(tasks), nil
}

// WriteTask upserts one task remotely, marking the cache dirty on failure.
func (r *Remote) WriteTask(ctx context.Context, t Task) error {
	return r.WriteTasks(ctx, []Task{t})
}

// WriteTasks writes tasks to the remote tracker in batches of
// r.BatchSize, pausing r.BatchPause between batches (spec §4.3 "writes
// to remote are idempotent per-record and may be batched").
func (r *Remote) WriteTasks(ctx context.Context, tasks []Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache, err := r.loadCacheLocked()
	if err != nil {
		return err
	}

	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = len(tasks)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	for i := 0; i < len(tasks); i += batchSize {
		end := i + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		for _, t := range tasks[i:end] {
			if err := t.Validate(r.RequiredTags); err != nil {
				return err
			}
			_, putErr := withRetry(ctx, 15*time.Second, func() (*resty.Response, error) {
				return r.Client.R().SetContext(ctx).SetBody(t).Put("/tasks/" + t.ID)
			})
			cache.Tasks[t.ID] = cachedTask{Task: t, Dirty: putErr != nil}
		}
		if end < len(tasks) && r.BatchPause > 0 {
			select {
			case <-time.After(r.BatchPause):
			case <-ctx.Done():
				_ = r.saveCacheLocked()
				return ctx.Err()
			}
		}
	}

	return r.saveCacheLocked()
}

// DirtyTasks returns the cached tasks whose dirty flag is set (the
// Sync Controller's push preview, spec §4.8).
func (r *Remote) DirtyTasks(ctx context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, err := r.loadCacheLocked()
	if err != nil {
		return nil, err
	}
	var dirty []Task
	for _, ct := range cache.Tasks {
		if ct.Dirty {
			dirty = append(dirty, ct.Task)
		}
	}
	return byIDAsc(dirty), nil
}

// GetTaskDoc/SetTaskDoc operate on the cached task's Doc field; a true
// remote tracker would expose a dedicated endpoint, but this pack's
// tracker contract (spec §6) models docs as part of the task record.
func (r *Remote) GetTaskDoc(ctx context.Context, id string) (string, error) {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return "", errs.Wrap(errs.KindInput, errs.ErrTaskNotFound, "task %s", id)
	}
	return tasks[idx].Doc, nil
}

func (r *Remote) SetTaskDoc(ctx context.Context, id, by, text string) error {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return errs.Wrap(errs.KindInput, errs.ErrTaskNotFound, "task %s", id)
	}
	t := tasks[idx]
	t.Doc = text
	t.touchDocMetadata(by, time.Now())
	return r.WriteTask(ctx, t)
}

func (r *Remote) TouchTaskDocMetadata(ctx context.Context, id, by string) error {
	return requireCapability(r.Capabilities(), CapTouchTaskDocMetadata)
}

func (r *Remote) NormalizeTasks(ctx context.Context) error {
	return requireCapability(r.Capabilities(), CapNormalize)
}

// ExportTasksJSON exports the cached mirror (spec §4.3).
func (r *Remote) ExportTasksJSON(ctx context.Context, path string) error {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return err
	}
	meta, err := BuildMeta(tasks)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(Document{Tasks: tasks, Meta: meta}, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "marshal export")
	}
	return atomicWrite(path, append(data, '\n'))
}

func (r *Remote) GenerateTaskID(ctx context.Context, length, attempts int) (string, error) {
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	exists := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		exists[t.ID] = true
	}
	return taskid.GenerateUnique(length, attempts, func(id string) bool { return exists[id] })
}
