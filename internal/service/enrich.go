package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const maxTags = 5

const summaryPromptTemplate = `Generate a concise summary and up to 5 relevant tags for the following content. Return a valid JSON object with "summary" and "tags" keys. Tags should be an array of strings.

Content:
---
%s
---
`

// SummaryResult is the decoded summarization output.
type SummaryResult struct {
	Summary string
	Tags    []string
}

// decodeSummary strictly decodes a model response into a SummaryResult.
// The response is untrusted: missing or mistyped fields are an error,
// excess tags are dropped.
func decodeSummary(raw []byte) (*SummaryResult, error) {
	var parsed struct {
		Summary *string   `json:"summary"`
		Tags    []*string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse summary response: %w", err)
	}

	if parsed.Summary == nil || *parsed.Summary == "" {
		return nil, fmt.Errorf("summary response missing summary field")
	}

	result := &SummaryResult{Summary: *parsed.Summary}
	for _, tag := range parsed.Tags {
		if tag == nil || *tag == "" {
			return nil, fmt.Errorf("summary response contains invalid tag")
		}
		result.Tags = append(result.Tags, *tag)
	}
	if len(result.Tags) > maxTags {
		result.Tags = result.Tags[:maxTags]
	}

	return result, nil
}

// EnrichService runs the AI enrichment pipeline for a single post:
// summary+tags, embedding, audio synthesis. Stages run sequentially and
// each persists its own output as soon as it completes, so a later
// failure never rolls back an earlier stage.
type EnrichService struct {
	posts     PostStore
	tags      TagStore
	vectors   VectorIndex
	chat      ChatModel
	embedder  Embedder
	speech    SpeechSynthesizer
	blobs     BlobStore
	txManager TransactionManager
	analytics Analytics
	logger    *slog.Logger
}

func NewEnrichService(
	posts PostStore,
	tags TagStore,
	vectors VectorIndex,
	chat ChatModel,
	embedder Embedder,
	speech SpeechSynthesizer,
	blobs BlobStore,
	txManager TransactionManager,
	analytics Analytics,
	logger *slog.Logger,
) *EnrichService {
	return &EnrichService{
		posts:     posts,
		tags:      tags,
		vectors:   vectors,
		chat:      chat,
		embedder:  embedder,
		speech:    speech,
		blobs:     blobs,
		txManager: txManager,
		analytics: analytics,
		logger:    logger,
	}
}

// Process enriches one post. A stage failure aborts the remaining stages;
// everything already persisted stands, and the post can be re-processed
// later by dispatching it again.
func (s *EnrichService) Process(ctx context.Context, postID int64) error {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}

	logger := s.logger.With("post_id", postID)

	// 1. Summary and tags.
	raw, err := s.chat.CompleteJSON(ctx, fmt.Sprintf(summaryPromptTemplate, post.Content))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	result, err := decodeSummary(raw)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	s.analytics.Record(ctx, "ai_processed", map[string]interface{}{
		"task_type": "summary_and_tags",
		"post_id":   postID,
	})
	logger.Info("summary generated", "tags", len(result.Tags))

	// 2. Embedding.
	vector, err := s.embedder.Embed(ctx, post.Content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	inserted, err := s.vectors.Upsert(ctx, postID, vector)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	if !inserted {
		logger.Warn("embedding upsert reported no new record")
	} else {
		s.analytics.Record(ctx, "ai_processed", map[string]interface{}{
			"task_type": "vectorize",
			"post_id":   postID,
		})
	}
	logger.Info("embedding stored", "dimensions", len(vector))

	// 3. Tag resolution and linking, atomically.
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tagIDs := make([]int64, 0, len(result.Tags))
		for _, name := range result.Tags {
			tag, err := s.tags.GetOrCreate(txCtx, name)
			if err != nil {
				return fmt.Errorf("resolve tag %q: %w", name, err)
			}
			tagIDs = append(tagIDs, tag.ID)
		}
		return s.tags.LinkToPost(txCtx, postID, tagIDs)
	})
	if err != nil {
		return fmt.Errorf("link tags: %w", err)
	}

	// 4. Persist the summary before attempting audio, so an audio failure
	// leaves the post summarized and tagged.
	if err := s.posts.SetSummary(ctx, postID, result.Summary); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	// 5. Audio synthesis.
	audio, err := s.speech.Synthesize(ctx, result.Summary)
	if err != nil {
		return fmt.Errorf("synthesize audio: %w", err)
	}
	path := fmt.Sprintf("podcasts/%d-%d.mp3", postID, time.Now().UnixMilli())
	ref, err := s.blobs.Put(ctx, path, audio, "audio/mpeg")
	if err != nil {
		return fmt.Errorf("store audio: %w", err)
	}
	if err := s.posts.SetPodcastPath(ctx, postID, ref); err != nil {
		return fmt.Errorf("persist podcast path: %w", err)
	}
	s.analytics.Record(ctx, "ai_processed", map[string]interface{}{
		"task_type": "podcast",
		"post_id":   postID,
	})
	logger.Info("podcast generated", "path", ref)

	return nil
}
