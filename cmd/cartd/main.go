package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ultra-white/keda/internal/server/cache"
	"github.com/ultra-white/keda/internal/server/consumer"
	serverhttp "github.com/ultra-white/keda/internal/server/http"
	"github.com/ultra-white/keda/internal/server/products"
	"github.com/ultra-white/keda/internal/server/repository"
	"github.com/ultra-white/keda/internal/server/service"
)

type Config struct {
	HTTPPort         string
	MongoURI         string
	MongoDBName      string
	MongoDialTimeout time.Duration
	RedisAddr        string
	RedisPassword    string
	KafkaBrokers     []string
	ProductsDBPath   string
	MigrationsPath   string
	RequestTimeout   time.Duration
	ShutdownTimeout  time.Duration
}

func loadConfig() *Config {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "cartdb"),
		MongoDialTimeout: 10 * time.Second,
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		ProductsDBPath:   getEnv("PRODUCTS_DB_PATH", "products.db"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "migrations"),
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	mongoDB, err := repository.ConnectMongo(ctx, repository.MongoConfig{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDBName,
		DialTimeout: cfg.MongoDialTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	repo := repository.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	productStore, err := products.NewStore(cfg.ProductsDBPath)
	if err != nil {
		log.Fatalf("Failed to open product store: %v", err)
	}
	defer productStore.Close()
	if err := productStore.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run product migrations: %v", err)
	}

	cartCache := cache.NewRedisCache(redisClient)
	cartService := service.NewCartService(repo, cartCache, productStore)

	// Checkout completions empty the buyer's cart.
	if len(cfg.KafkaBrokers) > 0 {
		checkoutConsumer := consumer.New(cartService, cfg.KafkaBrokers...)
		defer checkoutConsumer.Close()

		consumerCtx, cancelConsumer := context.WithCancel(ctx)
		defer cancelConsumer()
		go checkoutConsumer.Run(consumerCtx)
		log.Printf("Checkout consumer listening on %v", cfg.KafkaBrokers)
	}

	// Sessions live in Redis under session:<token>.
	resolveToken := func(ctx context.Context, token string) (string, error) {
		userID, err := redisClient.Get(ctx, "session:"+token).Result()
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("unknown session")
		}
		return userID, err
	}

	handler := serverhttp.NewCartHandler(cartService, cfg.RequestTimeout)
	router := serverhttp.NewRouter(handler, resolveToken, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "cart-storage"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Cart storage API starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down cart storage API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}
	log.Println("Cart storage API stopped")
}
