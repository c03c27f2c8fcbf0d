package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodshare-api/config"
	"foodshare-api/database"
	"foodshare-api/events"
	"foodshare-api/handler"
	"foodshare-api/middleware"
	"foodshare-api/repository"
	"foodshare-api/router"
	"foodshare-api/service"
	"foodshare-api/storage"

	"github.com/gin-gonic/gin"
)

const imagePath = "/api/v1/images"

func main() {
	// 1. config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Firebase, when any collaborator needs it
	var fb *database.Firebase
	if cfg.NeedsFirebase() {
		var err error
		fb, err = database.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
		if err != nil {
			log.Fatalf("Could not initialize Firebase: %v", err)
		}
		if cfg.StoreBackend != config.StoreFirestore {
			defer fb.Close()
		}
		log.Println("Successfully connected to Firebase services!")
	}

	// 3. collaborators
	store, err := openStore(ctx, cfg, fb)
	if err != nil {
		log.Fatalf("Could not open %s store: %v", cfg.StoreBackend, err)
	}
	defer store.Close()

	images, closeImages, err := openImages(ctx, cfg, fb)
	if err != nil {
		log.Fatalf("Could not open %s image store: %v", cfg.ImageBackend, err)
	}
	defer closeImages()

	verifier := tokenVerifier(cfg, fb)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaBroker != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		log.Printf("[KAFKA] publishing workflow events to %s", cfg.KafkaTopic)
	}
	defer publisher.Close()

	// 4. services and handlers
	listings := service.NewListingService(store, cfg.DefaultRadiusKm, cfg.DiscoveryLimit)
	workflow := service.NewWorkflow(store, store, publisher)
	inbox := service.NewInbox(store, store, publisher)

	h := router.Handlers{
		Health:   &handler.HealthHandler{Store: store},
		Listings: &handler.ListingHandler{Listings: listings, Workflow: workflow, Fees: service.NewFees(cfg.PlatformFeePercent)},
		Requests: &handler.RequestHandler{Workflow: workflow, Inbox: inbox},
		Me:       &handler.MeHandler{Listings: listings, Inbox: inbox},
	}
	if images != nil {
		h.Images = &handler.ImageHandler{Images: images}
	}

	// 5. serve until SIGINT/SIGTERM
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(h, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server is running on port %s (store=%s, images=%s, auth=%s)",
			cfg.Port, cfg.StoreBackend, cfg.ImageBackend, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, fb *database.Firebase) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	case config.StoreMemory:
		log.Println("Warning: using the in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return repository.NewFirestoreStore(fb.Firestore), nil
	}
}

// openImages returns a nil store for IMAGE_BACKEND=none.
func openImages(ctx context.Context, cfg *config.Config, fb *database.Firebase) (storage.ImageStore, func(), error) {
	noop := func() {}
	switch cfg.ImageBackend {
	case config.ImagesFirebase:
		bucket, err := fb.Storage.DefaultBucket()
		if err != nil {
			return nil, noop, err
		}
		return storage.NewFirebaseImageStore(bucket, cfg.FirebaseStorageBucket), noop, nil
	case config.ImagesGridFS:
		client, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, noop, err
		}
		disconnect := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("[MONGO] disconnect: %v", err)
			}
		}
		images, err := storage.NewGridFSImageStore(client.Database(cfg.MongoDB), imagePath)
		if err != nil {
			disconnect()
			return nil, noop, err
		}
		return images, disconnect, nil
	default:
		return nil, noop, nil
	}
}

func tokenVerifier(cfg *config.Config, fb *database.Firebase) middleware.TokenVerifier {
	if cfg.AuthMode == config.AuthJWT {
		return &middleware.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	}
	return &middleware.FirebaseVerifier{Client: fb.Auth}
}
