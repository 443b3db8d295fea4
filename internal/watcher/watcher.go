// Package watcher follows a tenant inbox directory with fsnotify and reports debounced file changes.
//
// The inbox layout is <root>/<tenant>/..., so every file event resolves to the tenant named by
// the first path segment under root. Files placed directly in root are ignored.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/tenantrag/internal/store"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Callback receives the tenant owning a changed file and the file path.
type Callback func(tenantID, path string)

// Watcher watches the tenant inbox root and invokes callbacks on file changes.
type Watcher struct {
	root        string
	extensions  []string
	recursive   bool
	onIndex     Callback
	onRemove    Callback
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	tenants     map[string][]string // tenant -> watched directories
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before onIndex fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for the inbox root. extensions filter which files are reported
// (empty means all). When recursive is false only files directly inside a tenant directory count.
func NewWatcher(root string, extensions []string, recursive bool, onIndex, onRemove Callback, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        filepath.Clean(root),
		extensions:  extensions,
		recursive:   recursive,
		onIndex:     onIndex,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		tenants:     make(map[string][]string),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Root returns the inbox root.
func (w *Watcher) Root() string { return w.root }

// Start creates the root if needed, watches it and every tenant directory under it, and
// processes events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.root); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting",
		zap.String("root", w.root),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))

	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tenantID := e.Name()
		if !validTenantDir(tenantID) {
			w.logger.Debug("watcher skipping directory", zap.String("name", tenantID))
			continue
		}
		if err := w.addTenantLocked(tenantID); err != nil {
			_ = watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	tenantID, rel, ok := w.resolve(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event",
		zap.String("op", ev.Op.String()),
		zap.String("tenant_id", tenantID),
		zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(tenantID, path, rel == "")
			return
		}
		if rel == "" || !w.depthAllowed(rel) {
			return
		}
		if matchExtension(path, w.extensions) {
			w.debounceIndex(tenantID, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if rel == "" {
			w.forgetTenant(tenantID)
			return
		}
		if w.depthAllowed(rel) && matchExtension(path, w.extensions) && w.onRemove != nil {
			w.onRemove(tenantID, path)
		}
	}
}

// resolve maps path to its tenant and the path relative to the tenant directory. rel is
// empty for the tenant directory itself.
func (w *Watcher) resolve(path string) (tenantID, rel string, ok bool) {
	r, err := filepath.Rel(w.root, path)
	if err != nil || r == "." || !inDir(w.root, path) {
		return "", "", false
	}
	parts := strings.SplitN(filepath.ToSlash(r), "/", 2)
	if !validTenantDir(parts[0]) {
		return "", "", false
	}
	if len(parts) == 1 {
		return parts[0], "", true
	}
	return parts[0], parts[1], true
}

// depthAllowed reports whether a file at rel (relative to its tenant directory) is in scope.
func (w *Watcher) depthAllowed(rel string) bool {
	if w.recursive {
		return true
	}
	return !strings.Contains(rel, "/")
}

// handleNewDirectory watches a directory that appeared under the root and indexes its files.
func (w *Watcher) handleNewDirectory(tenantID, dirPath string, isTenantRoot bool) {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if !isTenantRoot && !w.recursive {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(tenantID, dirPath); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dirPath), zap.Error(err))
	}
	w.mu.Unlock()
	w.logger.Debug("watcher handling new directory", zap.String("tenant_id", tenantID), zap.String("path", dirPath))
	w.syncDirectory(tenantID, dirPath)
}

func (w *Watcher) addTenantLocked(tenantID string) error {
	return w.addTreeLocked(tenantID, filepath.Join(w.root, tenantID))
}

func (w *Watcher) addTreeLocked(tenantID, dir string) error {
	if !w.recursive {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.tenants[tenantID] = append(w.tenants[tenantID], dir)
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.tenants[tenantID] = append(w.tenants[tenantID], path)
		return nil
	})
}

func (w *Watcher) forgetTenant(tenantID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		for _, p := range w.tenants[tenantID] {
			_ = w.watcher.Remove(p)
		}
	}
	delete(w.tenants, tenantID)
	w.logger.Debug("watcher tenant directory removed", zap.String("tenant_id", tenantID))
}

func validTenantDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return store.ValidateTenantID(name) == nil
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIndex(tenantID, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher indexing file (debounced)", zap.String("tenant_id", tenantID), zap.String("path", path))
		if w.onIndex != nil {
			w.onIndex(tenantID, path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) syncDirectory(tenantID, dir string) {
	if w.onIndex == nil {
		return
	}
	base := filepath.Join(w.root, tenantID)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || !w.recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil || !w.depthAllowed(filepath.ToSlash(rel)) {
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.logger.Debug("watcher sync indexing file", zap.String("tenant_id", tenantID), zap.String("path", path))
			w.onIndex(tenantID, path)
		}
		return nil
	})
}

// Tenants returns the tenant directories currently watched, sorted.
func (w *Watcher) Tenants() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tenants))
	for t := range w.tenants {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SyncExistingFiles reports every matching file already present in a tenant directory.
// Call it after Start to index files that arrived while the watcher was down.
func (w *Watcher) SyncExistingFiles() {
	tenants := w.Tenants()
	w.logger.Debug("watcher syncing existing files", zap.Strings("tenants", tenants))
	for _, t := range tenants {
		w.syncDirectory(t, filepath.Join(w.root, t))
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
