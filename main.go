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

	"github.com/gin-gonic/gin"

	"vidyavichar/config"
	"vidyavichar/handlers"
	"vidyavichar/middleware"
	"vidyavichar/routes"
	"vidyavichar/services"
	"vidyavichar/store"
	"vidyavichar/store/memstore"
	"vidyavichar/store/mongostore"
	"vidyavichar/store/pgstore"
)

func main() {
	// Load configuration
	cfg := config.Load()

	st, sessions, cleanup := openStores(cfg)
	defer cleanup()

	// Initialize services
	authService := services.NewAuthService(st, sessions, cfg.JWTSecret, cfg.JWTTTL)
	classService := services.NewClassService(st, st)
	questionService := services.NewQuestionService(st, st,
		services.WithDedupeIgnoringDeleted(cfg.DedupeIgnoreDeleted))

	reconciler := services.NewReconciler(st, st)
	if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
		log.Fatal("Failed to start counter reconciler:", err)
	}
	defer reconciler.Stop()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	classHandler := handlers.NewClassHandler(classService)
	questionHandler := handlers.NewQuestionHandler(questionService)

	router := gin.Default()
	routes.SetupRoutes(router, authHandler, classHandler, questionHandler, authService)

	srv := &http.Server{
		Addr:    cfg.BindAddress + ":" + cfg.Port,
		Handler: middleware.CORS(cfg.CORSOrigins)(router),
	}

	go func() {
		log.Printf("Server starting on %s (store: %s)", srv.Addr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

// openStores connects the configured backend. The memory driver keeps
// sessions in process too; the others keep them in Redis.
func openStores(cfg *config.Config) (store.Store, services.SessionStore, func()) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Println("Using in-memory store; data is lost on restart")
		return memstore.New(), services.NewMemorySessionStore(), func() {}
	}

	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	sessions := services.NewRedisSessionStore(redisClient)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		st := pgstore.New(db)
		if err := st.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		return st, sessions, func() { _ = redisClient.Close() }

	case config.StoreDriverMongo:
		client, err := config.InitMongo(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		st := mongostore.New(client.Database(cfg.MongoDatabase))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := st.EnsureIndexes(ctx); err != nil {
			log.Fatal("Failed to create MongoDB indexes:", err)
		}
		return st, sessions, func() {
			_ = redisClient.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
	}

	log.Fatalf("Unknown STORE_DRIVER %q (want postgres, mongo or memory)", cfg.StoreDriver)
	return nil, nil, nil
}
