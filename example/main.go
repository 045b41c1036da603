package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/fetchstore"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockServer(":9999")
	time.Sleep(100 * time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// two failures then a success: with 2 retries the first sequence succeeds
	// on its third attempt
	store, err := fetchstore.New[[]post](ctx, "http://localhost:9999/posts",
		fetchstore.WithRetries(2),
		fetchstore.WithRetryDelay(500*time.Millisecond),
		fetchstore.WithTransform(func(posts []post) []post {
			if len(posts) > 3 {
				return posts[:3]
			}
			return posts
		}),
		fetchstore.WithErrorCallback(func(err error) {
			fmt.Printf("  ! attempt failed: %v\n", err)
		}),
		fetchstore.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer store.Abort()

	fmt.Println()
	fmt.Println("  fetchstore demo")
	fmt.Println("  GET http://localhost:9999/posts (fails twice before every success)")
	fmt.Println("  retries: 2, delay: 500ms, transform: first 3 posts")
	fmt.Println()

	unsubscribe := store.Subscribe(func(s fetchstore.State[[]post]) {
		switch {
		case s.Loading:
			fmt.Println("  … loading")
		case s.Error != nil:
			fmt.Printf("  ✗ error: %v\n", s.Error)
		default:
			fmt.Printf("  ✓ %d posts\n", len(*s.Results))
			for _, p := range *s.Results {
				fmt.Printf("      %d  %s\n", p.ID, p.Title)
			}
		}
	})
	defer unsubscribe()

	if _, err := store.Wait(ctx); err != nil {
		return
	}

	fmt.Println()
	fmt.Println("  refetching with a fresh retry budget…")
	store.Refetch()
	if _, err := store.Wait(ctx); err != nil {
		return
	}

	fmt.Println()
	fmt.Println("  refetching, then aborting mid-flight…")
	store.Refetch()
	time.Sleep(20 * time.Millisecond)
	store.Abort()
	<-store.Done()
	fmt.Printf("  phase: %s\n", store.Phase())
}
