package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/idx-hub/idx-hub/internal/cache"
	"github.com/idx-hub/idx-hub/internal/logging"
	"github.com/idx-hub/idx-hub/internal/registry"
)

// DefaultConcurrency 是未配置时同时进行的下载数。
const DefaultConcurrency = 4

// Options 控制 Orchestrator 的依赖与并发度。
type Options struct {
	Client *http.Client
	Logger *logrus.Logger
	// MaxConcurrent<=0 时使用 DefaultConcurrency。
	MaxConcurrent int
	// Progress 非空时为每个下载绘制字节进度条。
	Progress io.Writer
}

// Orchestrator 负责“完整性检查 → 并发下载 → 校验 → 落盘”流程。
type Orchestrator struct {
	client   *http.Client
	logger   *logrus.Logger
	limit    int
	progress io.Writer

	mu    sync.Mutex
	locks map[string]*dirLock
}

// dirLock 串行化同一缓存目录上的 Ensure/Verify，避免 Sweep 删除其他调用的临时文件。
type dirLock struct {
	mu   sync.Mutex
	refs int
}

// Result 汇总一次 Ensure 调用的结果。
type Result struct {
	RunID    string
	Skipped  bool
	Fetched  []string
	Statuses map[string]cache.Status
	Bytes    int64
	Took     time.Duration
}

// New 构造 Orchestrator，缺省的 client/logger 会被补齐。
func New(opts Options) *Orchestrator {
	client := opts.Client
	if client == nil {
		client = NewClient(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Orchestrator{
		client:   client,
		logger:   logger,
		limit:    limit,
		progress: opts.Progress,
		locks:    make(map[string]*dirLock),
	}
}

func (o *Orchestrator) lockDir(dir string) func() {
	o.mu.Lock()
	lock := o.locks[dir]
	if lock == nil {
		lock = &dirLock{}
		o.locks[dir] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		o.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(o.locks, dir)
		}
		o.mu.Unlock()
	}
}

// Check 返回每个描述在缓存中的状态，以及是否全部就绪（目录存在且无 Missing）。
func Check(store *cache.Store, files []registry.Descriptor) (map[string]cache.Status, bool) {
	statuses := make(map[string]cache.Status, len(files))
	complete := store.DirectoryExists()
	for _, d := range files {
		st := store.Status(d.Name, d.Stem())
		statuses[d.Name] = st
		if !st.Cached() {
			complete = false
		}
	}
	return statuses, complete
}

// Ensure 保证 files 中每个描述都已缓存。已完整时不发起任何网络请求；否则创建目录，
// 并发下载缺失文件，逐个校验 SHA-256 后再写入。任一失败会取消其余下载并返回该错误。
func (o *Orchestrator) Ensure(ctx context.Context, store *cache.Store, files []registry.Descriptor) (*Result, error) {
	unlock := o.lockDir(store.Dir())
	defer unlock()

	started := time.Now()
	result := &Result{RunID: uuid.NewString()}

	statuses, complete := Check(store, files)
	result.Statuses = statuses
	if complete {
		result.Skipped = true
		result.Took = time.Since(started)
		o.logger.WithFields(logrus.Fields{
			"action":    "ensure",
			"run_id":    result.RunID,
			"cache_dir": store.Dir(),
			"files":     len(files),
		}).Debug("cache complete, skipping fetch")
		return result, nil
	}

	if err := store.EnsureDirectory(); err != nil {
		return nil, err
	}
	if removed, err := store.Sweep(); err != nil {
		return nil, err
	} else if len(removed) > 0 {
		o.logger.WithFields(logrus.Fields{
			"action":    "sweep",
			"run_id":    result.RunID,
			"cache_dir": store.Dir(),
			"removed":   removed,
		}).Warn("removed stale partial downloads")
	}

	missing := make([]registry.Descriptor, 0, len(files))
	for _, d := range files {
		if !statuses[d.Name].Cached() {
			missing = append(missing, d)
		}
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.limit)
	for _, d := range missing {
		eg.Go(func() error {
			n, err := o.fetchOne(egCtx, store, d, result.RunID)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Fetched = append(result.Fetched, d.Name)
			result.Statuses[d.Name] = cache.CachedRaw
			result.Bytes += n
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "ensure",
			"run_id":    result.RunID,
			"cache_dir": store.Dir(),
		}).Error("fetch failed")
		return nil, err
	}

	result.Took = time.Since(started)
	o.logger.WithFields(logrus.Fields{
		"action":    "ensure",
		"run_id":    result.RunID,
		"cache_dir": store.Dir(),
		"fetched":   len(result.Fetched),
		"size":      humanize.Bytes(uint64(result.Bytes)),
		"took":      result.Took.String(),
	}).Info("fetch complete")
	return result, nil
}

// fetchOne 下载单个描述到内存、校验摘要，校验通过后才写入缓存。
func (o *Orchestrator) fetchOne(ctx context.Context, store *cache.Store, d registry.Descriptor, runID string) (int64, error) {
	started := time.Now()
	url := d.URL()
	fields := logging.FileFields(store.Name(), d.Name, cache.Missing.String())
	fields["run_id"] = runID
	fields["url"] = url
	o.logger.WithFields(fields).Info("downloading file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	var (
		buf    bytes.Buffer
		hasher = sha256.New()
		sinks  = []io.Writer{&buf, hasher}
	)
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if o.progress != nil {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetWriter(o.progress),
			progressbar.OptionSetDescription(d.Name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		sinks = append(sinks, bar)
	}
	if _, err := io.Copy(io.MultiWriter(sinks...), resp.Body); err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !sameHash(d.SHA256, actual) {
		fields["expected"] = d.NormalizedHash()
		fields["actual"] = actual
		o.logger.WithFields(fields).Warn("sha256 mismatch, discarding payload")
		return 0, &IntegrityError{Name: d.Name, Expected: d.NormalizedHash(), Actual: actual}
	}

	n, err := store.WriteFile(ctx, d.Name, &buf)
	if err != nil {
		return 0, fmt.Errorf("persist %s: %w", d.Name, err)
	}

	fields["status"] = cache.CachedRaw.String()
	fields["size"] = humanize.Bytes(uint64(n))
	fields["took"] = time.Since(started).String()
	o.logger.WithFields(fields).Info("download verified")
	return n, nil
}

// VerifyReport 列出 Verify 的逐文件结论。
type VerifyReport struct {
	Verified []string
	// Corrupt 为摘要不匹配的原始归档。
	Corrupt []string
	// Unverifiable 仅有解压形态，无法对照归档摘要。
	Unverifiable []string
	Missing      []string
	// Removed 为 repair 模式下删除的损坏文件。
	Removed []string
}

// OK 表示没有损坏或缺失的文件。
func (r VerifyReport) OK() bool {
	return len(r.Corrupt) == 0 && len(r.Missing) == 0
}

// Verify 重新计算已缓存原始归档的摘要。repair 为 true 时删除损坏文件，
// 使下一次 Ensure 将其视为缺失并重新下载。
func (o *Orchestrator) Verify(ctx context.Context, store *cache.Store, files []registry.Descriptor, repair bool) (VerifyReport, error) {
	unlock := o.lockDir(store.Dir())
	defer unlock()

	var report VerifyReport
	for _, d := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch store.Status(d.Name, d.Stem()) {
		case cache.Missing:
			report.Missing = append(report.Missing, d.Name)
			continue
		case cache.CachedDecoded:
			report.Unverifiable = append(report.Unverifiable, d.Name)
			continue
		}

		f, err := store.Open(d.Name)
		if err != nil {
			return report, err
		}
		actual, err := digest(f)
		f.Close()
		if err != nil {
			return report, &cache.IOError{Op: "read", Path: store.ResolvePath(d.Name), Err: err}
		}
		if sameHash(d.SHA256, actual) {
			report.Verified = append(report.Verified, d.Name)
			continue
		}

		report.Corrupt = append(report.Corrupt, d.Name)
		fields := logging.FileFields(store.Name(), d.Name, cache.CachedRaw.String())
		fields["expected"] = d.NormalizedHash()
		fields["actual"] = actual
		o.logger.WithFields(fields).Warn("cached file failed verification")
		if repair {
			if err := store.RemoveFile(d.Name); err != nil && !errors.Is(err, cache.ErrNotFound) {
				return report, err
			}
			report.Removed = append(report.Removed, d.Name)
		}
	}
	return report, nil
}
