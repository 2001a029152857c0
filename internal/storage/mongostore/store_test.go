package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

// Set FINTRACK_MONGO_TEST_URI to run the contract suite against a live server.
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("FINTRACK_MONGO_TEST_URI")
	if uri == "" {
		t.Skip("FINTRACK_MONGO_TEST_URI not set")
	}

	n := 0
	storagetest.Run(t, func(t *testing.T) storage.Store {
		n++
		db := fmt.Sprintf("fintrack_test_%d_%d", time.Now().UnixNano(), n)
		s, err := Connect(context.Background(), Config{URI: uri, Database: db})
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			_ = s.client.Database(db).Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}
