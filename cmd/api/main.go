package main

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-procurement-workflow/internal/aws"
	"github.com/imrishuroy/go-procurement-workflow/internal/catalog"
	"github.com/imrishuroy/go-procurement-workflow/internal/config"
	"github.com/imrishuroy/go-procurement-workflow/internal/extraction"
	"github.com/imrishuroy/go-procurement-workflow/internal/handlers"
	"github.com/imrishuroy/go-procurement-workflow/internal/idempotency"
	"github.com/imrishuroy/go-procurement-workflow/internal/metrics"
	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
	"github.com/imrishuroy/go-procurement-workflow/internal/requests"
)

func setupRouter(cfg handlers.HandlerConfig, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRequestRoutes(r, cfg)

	return r
}

// openStore selects the request store; the returned closer may be nil.
func openStore(ctx context.Context, cfg config.Config, clients *aws.Clients) (requests.Store, io.Closer, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		s, err := requests.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StorageMemory:
		return requests.NewMemoryStore(), nil, nil
	default:
		return requests.NewDynamoStore(clients.DynamoDB, cfg.RequestsTable), nil, nil
	}
}

func needsAWS(cfg config.Config) bool {
	return cfg.Storage == config.StorageDynamoDB || cfg.IdempotencyTable != "" || cfg.EventsQueueURL != ""
}

func main() {
	ctx := context.Background()
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var clients *aws.Clients
	if needsAWS(cfg) {
		clients, err = aws.LoadClients(ctx)
		if err != nil {
			log.Fatalf("failed to init aws clients: %v", err)
		}
	}

	store, closer, err := openStore(ctx, cfg, clients)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Storage, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load commodity catalog: %v", err)
	}
	table, err := cfg.TransitionTable()
	if err != nil {
		log.Fatalf("invalid transitions: %v", err)
	}

	m := metrics.New(nil)
	opts := []requests.Option{
		requests.WithClassifier(cat),
		requests.WithWorkflow(procurement.NewWorkflow(table)),
		requests.WithRecorder(m),
	}
	if cfg.EventsQueueURL != "" {
		opts = append(opts, requests.WithPublisher(
			requests.NewQueuePublisher(aws.NewPublisher(clients.SQS, cfg.EventsQueueURL))))
	}

	var keeper idempotency.Keeper = idempotency.NewMemoryKeeper(cfg.IdempotencyTTL)
	if cfg.IdempotencyTable != "" {
		keeper = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	hcfg := handlers.HandlerConfig{
		Service: requests.NewService(store, opts...),
		Keeper:  keeper,
		Catalog: cat,
	}
	if cfg.ExtractionURL != "" {
		hcfg.Extractor = extraction.NewClient(cfg.ExtractionURL)
	}

	r := setupRouter(hcfg, m)
	log.Printf("[api] storage=%s groups=%d extraction=%t events=%t",
		cfg.Storage, len(cat.Groups()), hcfg.Extractor != nil, cfg.EventsQueueURL != "")

	if cfg.RunLocal {
		log.Printf("running local server on %s", cfg.Addr)
		if err := r.Run(cfg.Addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
