package internal

import (
	"context"
	"io"
	"net/url"

	"sjsage522/estateworker/config"
	"sjsage522/estateworker/helpers"
	"sjsage522/estateworker/internal/crawler"
	"sjsage522/estateworker/logger"
	"sjsage522/estateworker/services/assets"
	"sjsage522/estateworker/services/blob"
	"sjsage522/estateworker/services/cache"
	"sjsage522/estateworker/services/metrics"
	"sjsage522/estateworker/services/proxy"
	"sjsage522/estateworker/services/queue"
	"sjsage522/estateworker/services/store"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Metrics *metrics.Metrics
	Cache   cache.CacheService
	Proxy   proxy.ProxyManager
	Sink    store.Sink
	Blob    blob.Store
	Queue   queue.Queue
	Browser crawler.Browser
	Images  assets.Fetcher

	logger  *logger.Logger
	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// NewDependencies connects every backend the configured mode needs. On error
// the ones already opened are closed.
func NewDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (deps *Dependencies, err error) {
	d := &Dependencies{
		Metrics: metrics.New(),
		logger:  log.ForComponent("dependencies"),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			d.logger.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, continuing without it")
		} else {
			d.Cache = mc
			d.logger.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	var px *proxy.ProxyInfo
	pm := proxy.NewProxyManager(cfg.ProxyURLs, cfg.ProxyListURL, log)
	d.Proxy = pm
	if pm.Enabled() {
		if err := pm.UpdateProxies(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to test proxies")
		}
		if best, err := pm.GetFastestProxy(); err == nil {
			px = best
			d.logger.Info().Str("proxy", best.ServerURL()).Dur("latency", best.Latency).Msg("Using proxy")
		} else {
			d.logger.Warn().Err(err).Msg("No working proxy, connecting directly")
		}
	}

	if cfg.Mode == "worker" {
		if err := d.openWorkerStores(ctx, cfg, log); err != nil {
			return nil, err
		}
		var proxyURL *url.URL
		if px != nil {
			proxyURL = px.URL()
		}
		d.Images = assets.NewHTTPFetcher(helpers.NewHTTPClient(cfg.NavigationTimeout, proxyURL), cfg.ImageRate)
	}

	if err := d.openQueue(ctx, cfg, log); err != nil {
		return nil, err
	}

	browser, err := crawler.NewBrowser(ctx, cfg, px, log)
	if err != nil {
		return nil, err
	}
	d.Browser = browser
	d.add("browser", browser)

	return d, nil
}

func (d *Dependencies) openWorkerStores(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	switch cfg.RecordSink {
	case config.SinkPostgres:
		sink, err := store.NewPostgresSink(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		d.Sink = sink
	default:
		sink, err := store.NewJSONFileSink(cfg.OutputDir, log)
		if err != nil {
			return err
		}
		d.Sink = sink
	}
	d.add("sink", d.Sink)

	switch cfg.StorageBackend {
	case config.StorageBlob:
		s3, err := blob.NewS3Store(ctx, blob.S3Options{
			Endpoint:  cfg.BlobEndpoint,
			Region:    cfg.BlobRegion,
			Bucket:    cfg.BlobBucket,
			AccessKey: cfg.BlobAccessKey,
			SecretKey: cfg.BlobSecretKey,
			UseSSL:    cfg.BlobUseSSL,
		}, log)
		if err != nil {
			return err
		}
		d.Blob = s3
	default:
		local, err := blob.NewLocalStore(cfg.OutputDir)
		if err != nil {
			return err
		}
		d.Blob = local
	}
	return nil
}

func (d *Dependencies) openQueue(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	switch cfg.QueueBackend {
	case config.QueueRabbitMQ:
		q, err := queue.NewRabbitQueue(queue.RabbitOptions{
			URL:           cfg.RabbitURL,
			Queue:         cfg.RabbitQueue,
			Visibility:    cfg.VisibilityTimeout,
			Block:         cfg.ReceiveWait,
			MaxDeliveries: cfg.MaxDeliveries,
			Dedup:         d.Cache,
			DedupWindow:   cfg.QueueDedupWindow,
		}, log)
		if err != nil {
			return err
		}
		d.Queue = q
	default:
		q, err := queue.NewRedisQueue(ctx, queue.RedisOptions{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			Stream:        cfg.QueueStream,
			Group:         cfg.QueueGroup,
			DedupWindow:   cfg.QueueDedupWindow,
			Visibility:    cfg.VisibilityTimeout,
			Block:         cfg.ReceiveWait,
			MaxDeliveries: cfg.MaxDeliveries,
		}, log)
		if err != nil {
			return err
		}
		d.Queue = q
	}
	d.add("queue", d.Queue)
	d.logger.Info().Str("backend", cfg.QueueBackend).Msg("Connected to queue")
	return nil
}

func (d *Dependencies) add(name string, c io.Closer) {
	d.closers = append(d.closers, namedCloser{name: name, Closer: c})
}

// Close releases the dependencies in reverse order of creation, so the
// record sink is closed last.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.Close(); err != nil {
			d.logger.Warn().Err(err).Str("dependency", c.name).Msg("Failed to close")
			continue
		}
		d.logger.Debug().Str("dependency", c.name).Msg("Closed")
	}
	d.closers = nil
}
