// ABOUTME: Scan engine that periodically rescans a Terraform corpus for serve mode.
// ABOUTME: Coordinates document sources, the pattern scanner, and image vulnerability sources.

package engine

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfeddern/TerraSentry/internal/cache"
	"github.com/jfeddern/TerraSentry/internal/knowledge"
	"github.com/jfeddern/TerraSentry/internal/scanner"
	"github.com/jfeddern/TerraSentry/internal/types"
	"github.com/sirupsen/logrus"
)

// DocumentSource abstracts where Terraform documents come from (local directory, mock corpus)
type DocumentSource interface {
	Name() string
	Discover(ctx context.Context) ([]types.Document, error)
}

// ImageSource abstracts registries that hold scan results for images referenced by Terraform
type ImageSource interface {
	Name() string
	GetImageVulnerabilities(ctx context.Context, imageURI string) (*types.ImageVulnerability, error)
	ParseImageURI(imageURI string) (repository, tag string, err error)
	IsRegistryImage(imageURI string) bool
}

// Completer is the single capability needed from an LLM: prompt in, text out
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

const maxConcurrentImageLookups = 10

// Engine keeps the latest scan snapshot of a Terraform corpus up to date
type Engine struct {
	documentSource DocumentSource
	imageSource    ImageSource
	table          knowledge.Table
	invalid        int
	cache          *cache.Cache[*types.ImageVulnerability]
	config         *Config
	logger         *logrus.Logger

	mutex              sync.RWMutex
	snapshot           *types.Snapshot
	lastCollectionTime time.Time
}

// NewEngine creates a new scan engine. imageSource may be nil.
func NewEngine(documentSource DocumentSource, imageSource ImageSource, table knowledge.Table, config *Config, logger *logrus.Logger) *Engine {
	return &Engine{
		documentSource: documentSource,
		imageSource:    imageSource,
		table:          table,
		invalid:        len(knowledge.Validate(table)),
		cache:          cache.New[*types.ImageVulnerability](30*time.Minute, logger),
		config:         config,
		logger:         logger,
		snapshot:       &types.Snapshot{Images: map[string]*types.ImageVulnerability{}},
	}
}

// Start collects once and then on every ScanInterval until ctx is cancelled
func (e *Engine) Start(ctx context.Context) {
	logger := e.logger.WithField("component", "scan_engine")

	go e.cache.StartCleanup(ctx, 10*time.Minute)

	if err := e.Collect(ctx); err != nil {
		logger.WithError(err).Error("Initial scan failed")
	}

	ticker := time.NewTicker(e.config.ScanInterval)
	defer ticker.Stop()

	logger.WithField("interval", e.config.ScanInterval).Info("Starting periodic Terraform scanning")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scan engine stopping")
			return
		case <-ticker.C:
			if err := e.Collect(ctx); err != nil {
				logger.WithError(err).Error("Scan failed")
			}
		}
	}
}

// Collect runs one full collection cycle and swaps in the new snapshot
func (e *Engine) Collect(ctx context.Context) error {
	logger := e.logger.WithField("operation", "collect")
	startTime := time.Now()

	docs, err := e.documentSource.Discover(ctx)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"source":         e.documentSource.Name(),
		"document_count": len(docs),
	}).Info("Discovered Terraform documents")

	reports := scanner.ScanDocuments(e.table.Patterns, docs)
	images := e.collectImages(ctx, docs)

	snapshot := &types.Snapshot{
		RunID:           uuid.NewString(),
		Provider:        e.table.Provider,
		PatternCount:    len(e.table.Patterns),
		InvalidPatterns: e.invalid,
		Documents:       reports,
		Images:          images,
		CollectedAt:     time.Now(),
	}

	e.mutex.Lock()
	e.snapshot = snapshot
	e.lastCollectionTime = snapshot.CollectedAt
	e.mutex.Unlock()

	combined := snapshot.Combined()
	logger.WithFields(logrus.Fields{
		"run_id":          snapshot.RunID,
		"duration":        time.Since(startTime),
		"documents":       len(reports),
		"findings":        combined.Total(),
		"images_resolved": len(images),
	}).Info("Scan completed")

	return nil
}

func (e *Engine) collectImages(ctx context.Context, docs []types.Document) map[string]*types.ImageVulnerability {
	result := make(map[string]*types.ImageVulnerability)
	if e.imageSource == nil {
		return result
	}

	logger := e.logger.WithField("image_source", e.imageSource.Name())

	var uris []string
	for _, uri := range ExtractImageURIs(docs) {
		if e.imageSource.IsRegistryImage(uri) {
			uris = append(uris, uri)
		}
	}

	semaphore := make(chan struct{}, maxConcurrentImageLookups)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, uri := range uris {
		wg.Add(1)
		go func(imageURI string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			vuln, err := e.getImageVulnerability(ctx, imageURI)
			if err != nil {
				logger.WithError(err).WithField("image", imageURI).Error("Failed to get image vulnerability data")
				return
			}

			mu.Lock()
			result[imageURI] = vuln
			mu.Unlock()
		}(uri)
	}

	wg.Wait()
	return result
}

func (e *Engine) getImageVulnerability(ctx context.Context, imageURI string) (*types.ImageVulnerability, error) {
	if cached, ok := e.cache.Get(imageURI); ok {
		return cached, nil
	}

	vuln, err := e.imageSource.GetImageVulnerabilities(ctx, imageURI)
	if err != nil {
		return nil, err
	}

	e.cache.Set(imageURI, vuln)
	return vuln, nil
}

// GetSnapshot returns a copy of the latest snapshot and its collection time
func (e *Engine) GetSnapshot() (*types.Snapshot, time.Time) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	snap := *e.snapshot
	snap.Documents = append([]types.DocumentReport(nil), e.snapshot.Documents...)
	snap.Images = make(map[string]*types.ImageVulnerability, len(e.snapshot.Images))
	for k, v := range e.snapshot.Images {
		snap.Images[k] = v
	}

	return &snap, e.lastCollectionTime
}

var ecrImagePattern = regexp.MustCompile(`\b[0-9]{12}\.dkr\.ecr\.[a-z0-9-]+\.amazonaws\.com/[A-Za-z0-9._/-]+:[A-Za-z0-9._-]+`)

// ExtractImageURIs returns the distinct ECR image URIs referenced by the documents, in first-seen order
func ExtractImageURIs(docs []types.Document) []string {
	seen := make(map[string]bool)
	var uris []string
	for _, doc := range docs {
		for _, uri := range ecrImagePattern.FindAllString(doc.Content, -1) {
			if !seen[uri] {
				seen[uri] = true
				uris = append(uris, uri)
			}
		}
	}
	return uris
}
