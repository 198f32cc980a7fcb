package database

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	dbPath := "./test_" + time.Now().Format("20060102150405.000000000") + ".db"
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func TestDocumentRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	value := []byte(`{"campaigns":[{"id":"c1"}]}`)
	if err := db.PutDocument("shop1", "optimaio_cart", "campaigns", value); err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	got, err := db.GetDocument("shop1", "optimaio_cart", "campaigns")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Expected %s, got %s", value, got)
	}
}

func TestGetDocument_MissingIsNotAnError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := db.GetDocument("nobody", "optimaio_cart", "campaigns")
	if err != nil {
		t.Fatalf("Expected no error for missing document, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil value, got %s", got)
	}
}

func TestPutDocument_Upserts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.PutDocument("shop1", "ns", "k", []byte(`first`)); err != nil {
		t.Fatalf("Failed first put: %v", err)
	}
	if err := db.PutDocument("shop1", "ns", "k", []byte(`second`)); err != nil {
		t.Fatalf("Failed second put: %v", err)
	}

	got, err := db.GetDocument("shop1", "ns", "k")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Expected overwrite, got %s", got)
	}
}

func TestDocuments_IsolatedByShop(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.PutDocument("shop1", "ns", "k", []byte(`one`)); err != nil {
		t.Fatalf("Failed put: %v", err)
	}
	if err := db.PutDocument("shop2", "ns", "k", []byte(`two`)); err != nil {
		t.Fatalf("Failed put: %v", err)
	}

	got, _ := db.GetDocument("shop2", "ns", "k")
	if string(got) != "two" {
		t.Errorf("Expected shop2 document, got %s", got)
	}
}
