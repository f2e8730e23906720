package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const scaffoldPromptTemplate = `Based on the following content and the user's prompt, generate a code file. Return a valid JSON object with "fileName" and "code" keys.

Content:
---
%s
---

User Prompt:
---
%s
---
`

// ScaffoldResult is the decoded code-generation output.
type ScaffoldResult struct {
	FileName string
	Code     string
}

func decodeScaffold(raw []byte) (*ScaffoldResult, error) {
	var parsed struct {
		FileName *string `json:"fileName"`
		Code     *string `json:"code"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse scaffold response: %w", err)
	}

	if parsed.FileName == nil || *parsed.FileName == "" {
		return nil, fmt.Errorf("scaffold response missing fileName field")
	}
	if parsed.Code == nil || *parsed.Code == "" {
		return nil, fmt.Errorf("scaffold response missing code field")
	}

	return &ScaffoldResult{FileName: *parsed.FileName, Code: *parsed.Code}, nil
}

// ScaffoldService generates a code file for a post with an AI completion,
// bundles it into a zip archive and stores it as a blob on the post.
type ScaffoldService struct {
	posts     PostStore
	chat      ChatModel
	blobs     BlobStore
	analytics Analytics
	logger    *slog.Logger
}

func NewScaffoldService(
	posts PostStore,
	chat ChatModel,
	blobs BlobStore,
	analytics Analytics,
	logger *slog.Logger,
) *ScaffoldService {
	return &ScaffoldService{
		posts:     posts,
		chat:      chat,
		blobs:     blobs,
		analytics: analytics,
		logger:    logger,
	}
}

// Generate returns the public reference of the stored scaffold archive.
func (s *ScaffoldService) Generate(ctx context.Context, postID int64, prompt string) (string, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return "", fmt.Errorf("load post: %w", err)
	}

	raw, err := s.chat.CompleteJSON(ctx, fmt.Sprintf(scaffoldPromptTemplate, post.Content, prompt))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	result, err := decodeScaffold(raw)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	archive, err := buildZip(result.FileName, result.Code)
	if err != nil {
		return "", fmt.Errorf("build archive: %w", err)
	}

	path := fmt.Sprintf("scaffolds/%d-%d.zip", postID, time.Now().UnixMilli())
	ref, err := s.blobs.Put(ctx, path, archive, "application/zip")
	if err != nil {
		return "", fmt.Errorf("store archive: %w", err)
	}

	if err := s.posts.SetScaffoldPath(ctx, postID, ref); err != nil {
		return "", fmt.Errorf("persist scaffold path: %w", err)
	}

	s.analytics.Record(ctx, "scaffold_generated", map[string]interface{}{
		"post_id": postID,
	})
	s.logger.Info("scaffold generated", "post_id", postID, "file", result.FileName, "path", ref)

	return ref, nil
}

func buildZip(fileName, code string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create(fileName)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write([]byte(code)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
