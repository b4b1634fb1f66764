package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStorePutAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir(), "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	url, err := store.Put(ctx, "orders/abc/img-1.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if url != "http://localhost:8080/media/orders/abc/img-1.png" {
		t.Errorf("unexpected url: %s", url)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), "orders", "abc", "img-1.png"))
	if err != nil {
		t.Fatalf("blob not written: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("unexpected blob content: %s", data)
	}

	if err := store.Delete(ctx, "orders/abc/img-1.png"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "orders", "abc", "img-1.png")); !os.IsNotExist(err) {
		t.Error("blob still exists after delete")
	}
}

func TestFSStoreDeleteMissingIsNoop(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "http://localhost")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Delete(context.Background(), "orders/none/gone.png"); err != nil {
		t.Errorf("deleting a missing blob should not fail: %v", err)
	}
}

func TestFSStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "http://localhost")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := store.Put(context.Background(), "../outside.png", strings.NewReader("x")); err == nil {
		t.Error("expected an error for a path escaping the root")
	}
}
