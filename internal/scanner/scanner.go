package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/cache"
	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/engine"
	"github.com/drupal-spider/DrupalSecurity/internal/plugin"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/tokenizer"
)

// Scanner discovers artifacts under a path and lints them in parallel
type Scanner struct {
	config *config.Config
	logger *zap.Logger
	engine *engine.Engine
	cache  *cache.ResultCache
	remote plugin.Linter
	fs     afs.Service
}

// Option configures a Scanner
type Option func(*Scanner)

// WithCache enables the result cache
func WithCache(c *cache.ResultCache) Option {
	return func(s *Scanner) {
		s.cache = c
	}
}

// WithPlugin delegates linting to an out-of-process plugin
func WithPlugin(l plugin.Linter) Option {
	return func(s *Scanner) {
		s.remote = l
	}
}

// New creates a new scanner instance
func New(cfg *config.Config, logger *zap.Logger, eng *engine.Engine, opts ...Option) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		config: cfg,
		logger: logger,
		engine: eng,
		fs:     afs.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanResult represents the result of a scan
type ScanResult struct {
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	Statistics   *ScanStatistics   `json:"statistics"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Duration     time.Duration     `json:"duration"`
	ScannedFiles []string          `json:"scanned_files"`
	SkippedFiles []string          `json:"skipped_files"`
}

// ScanStatistics contains scan statistics
type ScanStatistics struct {
	FilesScanned   int            `json:"files_scanned"`
	FilesSkipped   int            `json:"files_skipped"`
	FilesFailed    int            `json:"files_failed"`
	LinesScanned   int            `json:"lines_scanned"`
	FindingsCount  int            `json:"findings_count"`
	CacheHits      int            `json:"cache_hits"`
	BySeverity     map[string]int `json:"by_severity"`
	ByCode         map[string]int `json:"by_code"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Workers        int            `json:"workers"`
}

// FileJob represents a file to be linted
type FileJob struct {
	Path    string
	Content []byte
}

type fileResult struct {
	path        string
	diagnostics []diag.Diagnostic
	cached      bool
	err         error
}

// Scan walks the configured path and lints every artifact found
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	startTime := time.Now()

	workers := s.config.Parallel
	if workers <= 0 {
		workers = 1
	}

	s.logger.Info("Starting scan",
		zap.String("path", s.config.ScanPath),
		zap.Int("workers", workers),
		zap.Int("rules", len(s.engine.Rules())))

	result := &ScanResult{
		Diagnostics:  make([]diag.Diagnostic, 0),
		StartTime:    startTime,
		ScannedFiles: make([]string, 0),
		SkippedFiles: make([]string, 0),
		Statistics: &ScanStatistics{
			BySeverity: make(map[string]int),
			ByCode:     make(map[string]int),
			Workers:    workers,
		},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileJobs := make(chan *FileJob, workers*2)
	results := make(chan *fileResult, workers*10)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, fileJobs, results)
	}

	var mu sync.Mutex
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go s.resultCollector(&collectorWg, &mu, results, result)

	walkErr := s.walkDirectory(ctx, fileJobs, &mu, result)

	close(fileJobs)
	wg.Wait()

	close(results)
	collectorWg.Wait()

	// workers finish in any order; report files in path order, each file's
	// diagnostics in emission order
	sort.SliceStable(result.Diagnostics, func(i, j int) bool {
		return result.Diagnostics[i].File < result.Diagnostics[j].File
	})
	sort.Strings(result.ScannedFiles)
	sort.Strings(result.SkippedFiles)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Statistics.ProcessingTime = result.Duration
	result.Statistics.FindingsCount = len(result.Diagnostics)

	s.logger.Info("Scan completed",
		zap.Int("findings", len(result.Diagnostics)),
		zap.Int("files_scanned", result.Statistics.FilesScanned),
		zap.Int("cache_hits", result.Statistics.CacheHits),
		zap.Duration("duration", result.Duration))

	if walkErr != nil {
		if ctx.Err() != nil {
			return result, walkErr
		}
		s.logger.Warn("Directory walk completed with warnings", zap.Error(walkErr))
	}

	return result, nil
}

// ScanFile lints one artifact, consulting the cache when enabled. The
// second return reports a cache hit.
func (s *Scanner) ScanFile(ctx context.Context, path string, content []byte) ([]diag.Diagnostic, bool, error) {
	if s.cache != nil {
		if diagnostics, ok := s.cache.Get(ctx, path, content); ok {
			return diagnostics, true, nil
		}
	}

	var diagnostics []diag.Diagnostic
	if s.remote != nil {
		resp, err := s.remote.Lint(plugin.LintRequest{Path: path, Contents: content})
		if err != nil {
			return nil, false, fmt.Errorf("plugin failed to lint %s: %w", path, err)
		}
		diagnostics = resp.Diagnostics
	} else {
		stream, err := tokenizer.Tokenize(ctx, path, content)
		if err != nil {
			return nil, false, fmt.Errorf("failed to tokenize %s: %w", path, err)
		}
		diagnostics = s.engine.Run(types.NewFile(path, content, stream))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, path, content, diagnostics); err != nil {
			s.logger.Warn("Failed to cache result", zap.String("file", path), zap.Error(err))
		}
	}
	return diagnostics, false, nil
}

// worker processes file jobs in parallel
func (s *Scanner) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *FileJob, results chan<- *fileResult) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.logger.Debug("Processing file", zap.String("file", job.Path))
			diagnostics, cached, err := s.ScanFile(ctx, job.Path, job.Content)
			select {
			case results <- &fileResult{path: job.Path, diagnostics: diagnostics, cached: cached, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// resultCollector collects per-file results from workers
func (s *Scanner) resultCollector(wg *sync.WaitGroup, mu *sync.Mutex, results <-chan *fileResult, result *ScanResult) {
	defer wg.Done()

	for res := range results {
		mu.Lock()
		if res.err != nil {
			s.logger.Warn("Failed to lint file", zap.String("file", res.path), zap.Error(res.err))
			result.Statistics.FilesFailed++
			mu.Unlock()
			continue
		}
		if res.cached {
			result.Statistics.CacheHits++
		}
		for _, d := range res.diagnostics {
			result.Diagnostics = append(result.Diagnostics, d)
			result.Statistics.BySeverity[d.Severity.String()]++
			result.Statistics.ByCode[d.Source()]++
		}
		mu.Unlock()
	}
}

// walkDirectory walks the scan path and sends files for processing
func (s *Scanner) walkDirectory(ctx context.Context, jobs chan<- *FileJob, mu *sync.Mutex, result *ScanResult) error {
	root := s.config.ScanPath
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to access scan path: %w", err)
	}
	if !info.IsDir() {
		content, err := os.ReadFile(root)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		return s.submit(ctx, jobs, mu, result, root, content)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve scan path: %w", err)
	}

	var gitignore *ignore.GitIgnore
	if s.config.Rules.RespectGitignore {
		gitignore = loadGitignore(absRoot)
	}

	var processedFiles int
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		fullPath := filepath.Join(filepath.FromSlash(url.Path(url.Join(baseURL, parent))), info.Name())
		rel, err := filepath.Rel(absRoot, fullPath)
		if err != nil {
			return true, nil
		}
		display := filepath.Join(root, rel)

		if info.IsDir() {
			if s.shouldIgnoreDir(rel) || (gitignore != nil && gitignore.MatchesPath(rel+"/")) {
				return false, nil
			}
			return true, nil
		}

		if s.config.MaxFiles > 0 && processedFiles >= s.config.MaxFiles {
			return true, nil
		}

		if !s.shouldProcessFile(rel) || (gitignore != nil && gitignore.MatchesPath(rel)) {
			s.recordSkipped(mu, result, display)
			return true, nil
		}

		var content []byte
		if reader != nil {
			content, err = io.ReadAll(reader)
		} else {
			content, err = s.fs.DownloadWithURL(ctx, fullPath)
		}
		if err != nil {
			s.logger.Warn("Failed to read file", zap.String("file", display), zap.Error(err))
			s.recordSkipped(mu, result, display)
			return true, nil
		}

		processedFiles++
		if s.config.MaxFiles > 0 && processedFiles == s.config.MaxFiles {
			s.logger.Info("Reached maximum file limit, stopping scan",
				zap.Int("max_files", s.config.MaxFiles))
		}
		if err := s.submit(ctx, jobs, mu, result, display, content); err != nil {
			return false, err
		}
		return true, nil
	}

	return s.fs.Walk(ctx, absRoot, visitor)
}

// Accepts reports whether a scan of the configured path would lint path.
// It applies the same excluded and allowed dirs, extensions, ignore
// patterns and .gitignore rules as the walk.
func (s *Scanner) Accepts(path string) bool {
	root := s.config.ScanPath
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if rel == "." {
		return s.shouldProcessFile(filepath.Base(absPath))
	}

	var gitignore *ignore.GitIgnore
	if s.config.Rules.RespectGitignore {
		gitignore = loadGitignore(absRoot)
	}
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		if s.shouldIgnoreDir(dir) || (gitignore != nil && gitignore.MatchesPath(dir+"/")) {
			return false
		}
	}
	return s.shouldProcessFile(rel) && (gitignore == nil || !gitignore.MatchesPath(rel))
}

func (s *Scanner) submit(ctx context.Context, jobs chan<- *FileJob, mu *sync.Mutex, result *ScanResult, path string, content []byte) error {
	select {
	case jobs <- &FileJob{Path: path, Content: content}:
	case <-ctx.Done():
		return ctx.Err()
	}
	mu.Lock()
	result.ScannedFiles = append(result.ScannedFiles, path)
	result.Statistics.FilesScanned++
	result.Statistics.LinesScanned += countLines(content)
	mu.Unlock()
	return nil
}

func (s *Scanner) recordSkipped(mu *sync.Mutex, result *ScanResult, path string) {
	mu.Lock()
	result.SkippedFiles = append(result.SkippedFiles, path)
	result.Statistics.FilesSkipped++
	mu.Unlock()
}

// shouldIgnoreDir checks if a directory, relative to the scan root, is excluded
func (s *Scanner) shouldIgnoreDir(rel string) bool {
	if rel == "." {
		return false
	}
	for _, excludedDir := range s.config.ExcludedDirs {
		if pathMatchesPattern(rel, excludedDir) {
			return true
		}
	}
	for _, excludedDir := range s.config.Rules.ExcludedDirs {
		if pathMatchesPattern(rel, excludedDir) {
			return true
		}
	}
	return false
}

// shouldProcessFile checks extension, allowed dirs and ignore patterns for
// a file relative to the scan root
func (s *Scanner) shouldProcessFile(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	matched := false
	for _, allowedExt := range s.config.Rules.FileExtensions {
		if ext == strings.ToLower(allowedExt) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if len(s.config.AllowedDirs) > 0 {
		allowed := false
		for _, allowedDir := range s.config.AllowedDirs {
			if pathMatchesPattern(filepath.Dir(rel), allowedDir) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	base := filepath.Base(rel)
	for _, pattern := range s.config.Rules.IgnorePatterns {
		if strings.Contains(pattern, "*") {
			if ok, _ := filepath.Match(pattern, base); ok {
				return false
			}
			continue
		}
		if strings.Contains(rel, pattern) {
			return false
		}
	}
	return true
}

// pathMatchesPattern checks if a path matches a directory pattern
func pathMatchesPattern(path, pattern string) bool {
	normalizedPath := filepath.Clean(path)
	normalizedPattern := filepath.Clean(pattern)

	if filepath.IsAbs(normalizedPattern) {
		return strings.HasPrefix(normalizedPath, normalizedPattern)
	}

	// 1. Direct prefix match on whole components
	if normalizedPath == normalizedPattern ||
		strings.HasPrefix(normalizedPath, normalizedPattern+string(filepath.Separator)) {
		return true
	}

	// 2. Any run of path components equals the pattern components
	pathParts := strings.Split(normalizedPath, string(filepath.Separator))
	patternParts := strings.Split(normalizedPattern, string(filepath.Separator))
	for i := 0; i+len(patternParts) <= len(pathParts); i++ {
		match := true
		for j, patternPart := range patternParts {
			if pathParts[i+j] != patternPart {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	// 3. Wildcard matching (simple glob support)
	if strings.Contains(normalizedPattern, "*") {
		if matched, _ := filepath.Match(normalizedPattern, normalizedPath); matched {
			return true
		}
		for _, part := range pathParts {
			if matched, _ := filepath.Match(normalizedPattern, part); matched {
				return true
			}
		}
	}

	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
