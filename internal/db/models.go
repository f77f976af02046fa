package db

import (
	"encoding/json"
	"time"
)

// CollectionRun maps pulse.collection_runs — the ledger of one pipeline
// invocation.
type CollectionRun struct {
	RunID          int64           `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID        string          `gorm:"column:run_uuid;type:uuid;not null;unique"`
	TriggerSource  string          `gorm:"column:trigger_source;type:text;not null"`
	Platform       string          `gorm:"column:platform;type:text;not null"`
	KeywordBatch   json.RawMessage `gorm:"column:keyword_batch;type:jsonb"`
	StartedAt      time.Time       `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt     *time.Time      `gorm:"column:finished_at;type:timestamptz"`
	Status         string          `gorm:"column:status;type:text;not null;default:running"`
	NewCount       int             `gorm:"column:new_count;type:integer;not null;default:0"`
	DuplicateCount int             `gorm:"column:duplicate_count;type:integer;not null;default:0"`
	ErrorCount     int             `gorm:"column:error_count;type:integer;not null;default:0"`
	Errors         json.RawMessage `gorm:"column:errors;type:jsonb"`
	Metadata       json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (CollectionRun) TableName() string { return "pulse.collection_runs" }

// RawItem maps pulse.raw_items. Append-only crawler payload audit rows;
// never updated after insert, soft-deleted by the retention purge.
type RawItem struct {
	RawItemID   int64           `gorm:"column:raw_item_id;primaryKey;autoIncrement"`
	RunID       int64           `gorm:"column:run_id;type:bigint;not null;index"`
	Platform    string          `gorm:"column:platform;type:text;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	PayloadHash []byte          `gorm:"column:payload_hash;type:bytea;not null"`
	CollectedAt time.Time       `gorm:"column:collected_at;type:timestamptz;not null"`
	DeletedAt   *time.Time      `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawItem) TableName() string { return "pulse.raw_items" }

// Post maps pulse.posts — the canonical normalized record for both
// platforms. The (platform, platform_item_id) pair is the natural key;
// the unique index is the storage-level backstop behind the dedup gate.
type Post struct {
	PostID          int64           `gorm:"column:post_id;primaryKey;autoIncrement"`
	Platform        string          `gorm:"column:platform;type:text;not null;uniqueIndex:ux_posts_natural_key"`
	PlatformItemID  string          `gorm:"column:platform_item_id;type:text;not null;uniqueIndex:ux_posts_natural_key"`
	FeedID          *string         `gorm:"column:feed_id;type:text"`
	RawItemID       *int64          `gorm:"column:raw_item_id;type:bigint"`
	RunID           int64           `gorm:"column:run_id;type:bigint;not null"`
	Title           *string         `gorm:"column:title;type:text"`
	Content         string          `gorm:"column:content;type:text;not null"`
	URL             *string         `gorm:"column:url;type:text"`
	Author          *string         `gorm:"column:author;type:text"`
	Language        *string         `gorm:"column:language;type:text"`
	PostedAt        time.Time       `gorm:"column:posted_at;type:timestamptz;not null"`
	CollectedAt     time.Time       `gorm:"column:collected_at;type:timestamptz;not null"`
	Likes           *int64          `gorm:"column:likes;type:bigint"`
	Retweets        *int64          `gorm:"column:retweets;type:bigint"`
	Replies         *int64          `gorm:"column:replies;type:bigint"`
	Views           *int64          `gorm:"column:views;type:bigint"`
	KeywordSnapshot json.RawMessage `gorm:"column:keyword_snapshot;type:jsonb"`
	Category        *string         `gorm:"column:category;type:text"`
	Status          string          `gorm:"column:status;type:text;not null;index"`
	StatusChangedAt time.Time       `gorm:"column:status_changed_at;type:timestamptz;not null"`
	EnrichAttempts  int             `gorm:"column:enrich_attempts;type:integer;not null;default:0"`
	ModelContext    json.RawMessage `gorm:"column:model_context;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Post) TableName() string { return "pulse.posts" }

// EnrichmentResult maps pulse.enrichment_results. One row per post per
// model name/version, so re-scoring with a new model never overwrites
// history.
type EnrichmentResult struct {
	ResultID         int64      `gorm:"column:result_id;primaryKey;autoIncrement"`
	PostID           int64      `gorm:"column:post_id;type:bigint;not null;uniqueIndex:ux_enrichment_post_model"`
	ModelName        string     `gorm:"column:model_name;type:text;not null;uniqueIndex:ux_enrichment_post_model"`
	ModelVersion     string     `gorm:"column:model_version;type:text;not null;uniqueIndex:ux_enrichment_post_model"`
	SentimentLabel   *string    `gorm:"column:sentiment_label;type:text"`
	SentimentScore   *float64   `gorm:"column:sentiment_score;type:double precision"`
	Summary          *string    `gorm:"column:summary;type:text"`
	Reasoning        *string    `gorm:"column:reasoning;type:text"`
	Degraded         bool       `gorm:"column:degraded;type:boolean;not null;default:false"`
	LatencyMS        *int       `gorm:"column:latency_ms;type:integer"`
	PromptTokens     *int       `gorm:"column:prompt_tokens;type:integer"`
	CompletionTokens *int       `gorm:"column:completion_tokens;type:integer"`
	ProcessedAt      time.Time  `gorm:"column:processed_at;type:timestamptz;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (EnrichmentResult) TableName() string { return "pulse.enrichment_results" }

// EnrichmentFailure maps pulse.enrichment_failures — the failure ledger.
type EnrichmentFailure struct {
	FailureID     int64      `gorm:"column:failure_id;primaryKey;autoIncrement"`
	PostID        int64      `gorm:"column:post_id;type:bigint;not null;unique"`
	RetryCount    int        `gorm:"column:retry_count;type:integer;not null;default:0"`
	LastError     string     `gorm:"column:last_error;type:text;not null"`
	LastAttemptAt time.Time  `gorm:"column:last_attempt_at;type:timestamptz;not null"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at;type:timestamptz"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (EnrichmentFailure) TableName() string { return "pulse.enrichment_failures" }

func autoMigrateModels() []any {
	return []any{
		&CollectionRun{},
		&RawItem{},
		&Post{},
		&EnrichmentResult{},
		&EnrichmentFailure{},
	}
}
