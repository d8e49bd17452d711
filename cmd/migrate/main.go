package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"doc-qa-be/internal/model"
	"doc-qa-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	dimension := 3072
	if v, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMENSION")); err == nil && v > 0 {
		dimension = v
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: Extensions (Things GORM AutoMigrate doesn't do)
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Models
	log.Println("Step 2: Running AutoMigrate...")

	if err := db.AutoMigrate(&model.Document{}, &model.DocumentChunk{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: Functions
	// match_chunks is the same function the Supabase backend calls over RPC,
	// so both backends rank chunks identically.
	log.Println("Step 3: Creating Functions...")

	matchChunksSQL := fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_chunks(query_embedding vector(%d), match_count int, filter_document_id uuid)
	 RETURNS TABLE (id uuid, chunk_text text, document_id uuid, similarity float)
	 LANGUAGE sql STABLE AS $$
	   SELECT dc.id, dc.chunk_text, dc.document_id,
	          1 - (dc.embedding <=> query_embedding) AS similarity
	   FROM document_chunks dc
	   WHERE dc.document_id = filter_document_id
	   ORDER BY dc.embedding <=> query_embedding
	   LIMIT match_count;
	 $$;`, dimension)

	if err := db.Exec(matchChunksSQL).Error; err != nil {
		log.Printf("Warn: Failed to create match_chunks function: %v", err)
	}

	log.Println("✅ Migration complete.")
}
