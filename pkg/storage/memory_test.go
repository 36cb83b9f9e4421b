package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	if c == nil {
		t.Fatal("NewMemoryCache() returned nil")
	}
	if c.Len() != 0 {
		t.Errorf("new cache should be empty, got %d entries", c.Len())
	}
}

func TestMemoryCache_Put_Get(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{
			name:    "valid entry",
			entry:   Entry{Key: "tips:abc123", Kind: "tips", Lines: []string{"Run the dishwasher at night."}},
			wantErr: false,
		},
		{
			name:    "empty key",
			entry:   Entry{Kind: "tips"},
			wantErr: true,
		},
		{
			name:    "key with spaces",
			entry:   Entry{Key: "bad key"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMemoryCache()

			err := c.Put(context.Background(), tt.entry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			got, found, err := c.Get(context.Background(), tt.entry.Key)
			if err != nil || !found {
				t.Fatalf("Get() = found %v, err %v", found, err)
			}
			if got.Kind != tt.entry.Kind || len(got.Lines) != len(tt.entry.Lines) {
				t.Errorf("Get() = %+v, want %+v", got, tt.entry)
			}
			if got.CreatedAt.IsZero() {
				t.Error("CreatedAt should be set on Put")
			}
		})
	}
}

func TestMemoryCache_Get_NotFound(t *testing.T) {
	c := NewMemoryCache()
	_, found, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected found=false")
	}
}

func TestMemoryCache_ContextCanceled(t *testing.T) {
	c := NewMemoryCache()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Put(ctx, Entry{Key: "k"}); err == nil {
		t.Error("Put with canceled context should fail")
	}
	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Get with canceled context should fail")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	_ = c.Put(context.Background(), Entry{Key: "k"})

	if !c.Delete("k") {
		t.Error("Delete should report an existing entry")
	}
	if c.Delete("k") {
		t.Error("second Delete should report nothing removed")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%5)
			for j := 0; j < 50; j++ {
				if err := c.Put(ctx, Entry{Key: key, Lines: []string{fmt.Sprint(j)}}); err != nil {
					t.Errorf("Put failed: %v", err)
				}
				if _, _, err := c.Get(ctx, key); err != nil {
					t.Errorf("Get failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
}

func TestMemoryCacheWithTTL_Expiration(t *testing.T) {
	c := NewMemoryCacheWithTTL(50*time.Millisecond, 10*time.Millisecond)
	defer c.Stop()

	if err := c.Put(context.Background(), Entry{Key: "k"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, found, _ := c.Get(context.Background(), "k"); !found {
		t.Fatal("entry should be present before TTL")
	}

	time.Sleep(150 * time.Millisecond)

	if _, found, _ := c.Get(context.Background(), "k"); found {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("cleanup should have removed the entry, Len() = %d", c.Len())
	}
}

func TestMemoryCacheWithTTL_StaleEntryHidden(t *testing.T) {
	c := NewMemoryCacheWithTTL(time.Minute, time.Hour)
	defer c.Stop()

	old := Entry{Key: "old", CreatedAt: time.Now().Add(-2 * time.Minute)}
	if err := c.Put(context.Background(), old); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, found, _ := c.Get(context.Background(), "old"); found {
		t.Error("entry older than TTL should not be returned")
	}
}

func TestMemoryCache_Stop(t *testing.T) {
	c := NewMemoryCacheWithTTL(time.Minute, time.Millisecond)
	c.Stop()
	c.Stop()

	NewMemoryCache().Stop()
}

func TestMemoryCacheWithTTL_PanicOnInvalidTTL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for zero TTL")
		}
	}()
	NewMemoryCacheWithTTL(0, time.Minute)
}
