package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"auditflow-backend/config"
)

// Creates the claims pipeline schema: the policy corpus with its vector
// index, the claims table, and the append-only audit log.
func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Fatal("Failed to create vector extension:", err)
	}
	log.Println("vector extension ready")

	statements := []struct {
		name string
		sql  string
	}{
		{
			name: "policy_chunks table",
			sql: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS policy_chunks (
					id BIGSERIAL PRIMARY KEY,
					content TEXT NOT NULL,
					embedding vector(%d),
					region VARCHAR(8) NOT NULL CHECK (region IN ('SG', 'AU')),
					category VARCHAR(16) NOT NULL CHECK (category IN ('Home', 'Business', 'Motor')),
					policy_name VARCHAR(255) NOT NULL,
					section VARCHAR(255),
					subsection VARCHAR(255),
					page_number INTEGER,
					chunk_index INTEGER NOT NULL DEFAULT 0,
					metadata JSONB DEFAULT '{}',
					created_at TIMESTAMPTZ DEFAULT NOW(),
					updated_at TIMESTAMPTZ DEFAULT NOW(),
					UNIQUE (policy_name, section, chunk_index)
				)`, cfg.EmbeddingDim),
		},
		{
			name: "policy_chunks scope index",
			sql: `CREATE INDEX IF NOT EXISTS idx_policy_chunks_scope
				ON policy_chunks (region, category)`,
		},
		{
			name: "policy_chunks vector index",
			sql: fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_policy_chunks_embedding
				ON policy_chunks USING ivfflat (embedding vector_cosine_ops)
				WITH (lists = %d)`, cfg.IVFLists),
		},
		{
			name: "claims table",
			sql: `
				CREATE TABLE IF NOT EXISTS claims (
					id BIGSERIAL PRIMARY KEY,
					claim_id UUID UNIQUE NOT NULL,
					claim_text TEXT NOT NULL,
					region VARCHAR(8) CHECK (region IN ('SG', 'AU')),
					category VARCHAR(16) CHECK (category IN ('Home', 'Business', 'Motor')),
					router_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					reasoning_trace JSONB NOT NULL DEFAULT '[]',
					decision VARCHAR(32),
					decision_summary TEXT,
					report_path TEXT,
					failure_reason TEXT,
					created_at TIMESTAMPTZ DEFAULT NOW(),
					updated_at TIMESTAMPTZ DEFAULT NOW()
				)`,
		},
		{
			name: "claims status index",
			sql:  `CREATE INDEX IF NOT EXISTS idx_claims_status ON claims (status)`,
		},
		{
			name: "audit_logs table",
			sql: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					claim_id UUID NOT NULL,
					action VARCHAR(64) NOT NULL,
					service VARCHAR(32) NOT NULL,
					detail JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ DEFAULT NOW()
				)`,
		},
		{
			name: "audit_logs claim index",
			sql: `CREATE INDEX IF NOT EXISTS idx_audit_logs_claim
				ON audit_logs (claim_id, id)`,
		},
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			log.Fatalf("Failed to create %s: %v", stmt.name, err)
		}
		log.Printf("%s ready", stmt.name)
	}

	log.Println("Schema created successfully")
}
