package main

import (
	"context"
	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"auditflow-backend/config"
	"auditflow-backend/llm"
	"auditflow-backend/models"
	"auditflow-backend/repository"
)

type seedChunk struct {
	content    string
	section    string
	pageNumber int
	chunkIndex int
}

type seedPolicy struct {
	name     string
	region   models.Region
	category models.Category
	chunks   []seedChunk
}

// Seeds the policy corpus with the demo policies: MSIG Enhanced HomePlus
// (Singapore, Home) and Zurich Business Insurance (Australia, Business).
// Each chunk is embedded before insertion, so GEMINI_API_KEY must be set.
func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required to embed seed policies")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()

	geminiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	gemini := llm.NewGemini(geminiClient, llm.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		RequestTimeout: cfg.RequestTimeout,
	}, logger.Named("gemini"))

	chunkRepo := repository.NewPolicyChunkRepository(pool, cfg.EmbeddingDim)

	total := 0
	for _, policy := range seedPolicies() {
		log.Printf("Seeding %s (%s/%s), %d chunks", policy.name, policy.region, policy.category, len(policy.chunks))
		for _, chunk := range policy.chunks {
			embedding, err := gemini.Embed(ctx, chunk.content)
			if err != nil {
				log.Fatalf("Failed to embed chunk %d of %s: %v", chunk.chunkIndex, policy.name, err)
			}

			section := chunk.section
			pageNumber := chunk.pageNumber
			record := &models.PolicyChunk{
				Content:    chunk.content,
				Region:     policy.region,
				Category:   policy.category,
				PolicyName: policy.name,
				Section:    &section,
				PageNumber: &pageNumber,
				ChunkIndex: chunk.chunkIndex,
				Metadata:   map[string]interface{}{"source": "seed"},
			}
			if err := chunkRepo.Insert(ctx, record, embedding); err != nil {
				log.Fatalf("Failed to insert chunk %d of %s: %v", chunk.chunkIndex, policy.name, err)
			}
			total++
		}
	}

	log.Printf("Seeded %d policy chunks", total)
}

func seedPolicies() []seedPolicy {
	return []seedPolicy{
		{
			name:     "MSIG Enhanced HomePlus",
			region:   models.RegionSG,
			category: models.CategoryHome,
			chunks: []seedChunk{
				{
					content: `MSIG Enhanced HomePlus Policy - Section 1: Loss or Damage to Building and Contents

We will pay for loss or damage to the building and contents caused by:
1. Fire, lightning, explosion
2. Aircraft and other aerial devices
3. Impact by vehicles
4. Water damage from bursting, leaking or overflowing of water tanks, apparatus or pipes
5. Theft or attempted theft involving forcible and violent entry or exit
6. Riot, strike and malicious damage

This section covers sudden and accidental damage to your home and belongings.`,
					section:    "Section 1",
					pageNumber: 1,
					chunkIndex: 0,
				},
				{
					content: `Section 1.3: Water Damage Coverage

Cover includes damage caused by:
- Bursting of pipes within the insured premises
- Overflow from tanks, apparatus or pipes
- Water leakage from air-conditioning units
- Accidental discharge from fire sprinkler systems

This covers repair costs to affected areas including:
- Flooring (tiles, parquet, laminate)
- Walls and ceiling
- Electrical wiring if damaged
- Furniture and personal belongings

Maximum limit per occurrence: SGD 50,000
Deductible: SGD 500 per claim`,
					section:    "Section 1.3",
					pageNumber: 2,
					chunkIndex: 1,
				},
				{
					content: `Section 2: Personal Liability

We will pay all sums which you become legally liable to pay as damages for:
- Accidental bodily injury to any person
- Accidental damage to property belonging to others

Occurring during the period of insurance within Singapore and arising from:
- Your occupation of the insured premises
- Acts of your domestic servants

Maximum liability per occurrence: SGD 500,000`,
					section:    "Section 2",
					pageNumber: 3,
					chunkIndex: 2,
				},
				{
					content: `General Exclusions - MSIG Enhanced HomePlus

This policy does not cover:
1. Loss or damage caused by wear and tear, gradual deterioration, rust, mould or corrosion
2. Loss or damage caused by any process of cleaning, repairing, restoring or renovating
3. Loss or damage caused by insects, vermin or pests
4. Loss or damage caused by mechanical or electrical breakdown
5. Loss or damage caused by faulty workmanship or defective materials
6. Loss or damage caused by settling, shrinkage or expansion of buildings
7. Consequential loss of any kind including loss of use
8. Loss or damage whilst the premises are unoccupied for more than 60 consecutive days`,
					section:    "Exclusions",
					pageNumber: 4,
					chunkIndex: 3,
				},
				{
					content: `Claim Procedure - MSIG Singapore

To make a claim:
1. Report to us immediately, and in any event within 30 days
2. Report to the police within 24 hours if theft is involved
3. Provide all documentation including:
   - Completed claim form
   - Original receipts or valuations
   - Police report (if applicable)
   - Photos of damaged items

Do not dispose of damaged property until we have inspected it.

Claims hotline: 1800-888-8888 (24 hours)
Email: claims@msig.com.sg`,
					section:    "Claims",
					pageNumber: 5,
					chunkIndex: 4,
				},
			},
		},
		{
			name:     "Zurich Business Insurance",
			region:   models.RegionAU,
			category: models.CategoryBusiness,
			chunks: []seedChunk{
				{
					content: `Zurich Business Insurance - Section 2: Property Damage

We will cover physical loss or damage to insured property at the premises described in the schedule.

Insured property includes:
- Buildings owned by you
- Plant, machinery and equipment
- Stock and materials
- Office furniture and equipment
- Computer systems and data

Cover is provided on an agreed value or market value basis as stated in your schedule.`,
					section:    "Section 2",
					pageNumber: 1,
					chunkIndex: 0,
				},
				{
					content: `Section 2.4: Machinery Breakdown Coverage

Cover is provided for sudden and unforeseen physical damage to machinery caused by:
- Mechanical or electrical breakdown
- Short-circuiting, excessive electrical current
- Failure of safety devices
- Defects in materials or workmanship becoming apparent during the policy period

This includes:
- Repair or replacement costs
- Expediting expenses (overtime, express freight)
- Temporary hire of substitute machinery

Sub-limit: AUD 100,000 per item
Annual aggregate: AUD 500,000`,
					section:    "Section 2.4",
					pageNumber: 2,
					chunkIndex: 1,
				},
				{
					content: `Section 3: Business Interruption

We will pay for loss of gross profit resulting from interruption to your business caused by damage to property at your premises.

Cover includes:
- Reduction in turnover
- Increased cost of working
- Wages continuation (optional)

Indemnity period: 12 months (extendable to 24 or 36 months)

You must maintain adequate records of your business financial performance to support any claim.`,
					section:    "Section 3",
					pageNumber: 3,
					chunkIndex: 2,
				},
				{
					content: `Section 4: Public and Products Liability

We will pay all sums you become legally liable to pay for:
- Personal injury (including death, illness, disease)
- Property damage
- Advertising liability

Arising out of your business activities or your products.

Limit of liability: AUD 10,000,000 per occurrence
Annual aggregate: AUD 20,000,000

Includes defense costs up to the limit of liability.`,
					section:    "Section 4",
					pageNumber: 4,
					chunkIndex: 3,
				},
				{
					content: `General Exclusions - Zurich Business Insurance Australia

We do not cover loss or damage caused by or arising from:
1. War, invasion, hostilities, civil war, rebellion, revolution
2. Terrorism (terrorism cover available separately)
3. Nuclear reaction, radiation or contamination
4. Faulty workmanship, defective design, or failure to maintain equipment in proper working order
5. Gradual deterioration, wear and tear, rust, corrosion
6. Inherent vice or latent defect
7. Intentional acts by you or your employees
8. Pollution or contamination (unless sudden and accidental)
9. Cyber attack or data breach (cyber cover available separately)
10. Communicable disease or pandemic related closures`,
					section:    "General Exclusions",
					pageNumber: 5,
					chunkIndex: 4,
				},
				{
					content: `Making a Claim - Zurich Australia

In the event of a claim:
1. Notify us within 30 days of discovery
2. Take reasonable steps to mitigate further loss
3. Keep damaged property for inspection
4. Provide a detailed claim submission including:
   - Description of loss or damage
   - Cause and circumstances
   - Amount claimed with supporting evidence
   - Police report (if theft or malicious damage)

Claims line: 1800 611 116 (24/7)
Email: claims@zurich.com.au
Online: zurich.com.au/claims`,
					section:    "Claims",
					pageNumber: 6,
					chunkIndex: 5,
				},
			},
		},
	}
}
