package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/services"
)

const TaskPublishDocument = "document:publish"

type PublishPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// NewPublishTask enqueues a background publish run for large documents
// where the client did not open the SSE stream.
func NewPublishTask(documentID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(PublishPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskPublishDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	), nil
}

// NewClient builds the enqueue-side asynq client.
func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// TaskProcessor handles background pipeline runs.
type TaskProcessor struct {
	pipeline *services.PipelineService
}

func NewTaskProcessor(pipeline *services.PipelineService) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

// HandlePublishDocument drains the pipeline's event stream, logging stage
// transitions instead of relaying them to a client.
func (p *TaskProcessor) HandlePublishDocument(ctx context.Context, t *asynq.Task) error {
	var payload PublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	logger.Info("Background publish started", "document_id", payload.DocumentID)
	var last models.ProgressEvent
	for event := range p.pipeline.Publish(payload.DocumentID) {
		last = event
		logger.Info("Publish progress",
			"document_id", payload.DocumentID, "stage", event.Stage, "progress", event.Progress)
	}

	if last.Stage == models.StageError {
		logger.Error("Background publish failed",
			"document_id", payload.DocumentID, "error", last.Extra["error"])
		// Returning nil: pipeline failures are not transient enough to retry
		// blindly; the document stays draft and the client can re-publish.
	}
	return nil
}

// NewServer builds the worker-side asynq server and mux.
func NewServer(cfg *config.Config, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPublishDocument, processor.HandlePublishDocument)
	return srv, mux
}
