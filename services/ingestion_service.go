package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

// ExtensionURL marks documents ingested from a web page rather than an
// uploaded file. Their content is fetched at publish time.
const ExtensionURL = "url"

type ingestionStore interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocumentByExternalRef(ctx context.Context, ref string) (*models.Document, error)
}

type rawObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// IngestionService validates uploads and registers draft documents. Content
// is parsed later by the publish pipeline; ingestion only fingerprints,
// stores the raw bytes, and handles re-upload idempotency.
type IngestionService struct {
	store       ingestionStore
	objects     rawObjectStore
	maxFileSize int64
	allowed     map[string]bool
}

func NewIngestionService(store ingestionStore, objects rawObjectStore, maxFileSize int64, allowedTypes []string) *IngestionService {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &IngestionService{
		store:       store,
		objects:     objects,
		maxFileSize: maxFileSize,
		allowed:     allowed,
	}
}

// UploadResult is the ingestion response. ProcessingStatus is "duplicate"
// when the exact same content was already registered under the same ref.
type UploadResult struct {
	DocumentID       uuid.UUID `json:"document_id"`
	Duplicate        bool      `json:"duplicate"`
	Status           string    `json:"status"`
	ProcessingStatus string    `json:"processing_status,omitempty"`
}

// IngestFile validates, stores and registers one uploaded file. The file's
// name doubles as its external reference; title falls back to the filename
// without its extension.
func (s *IngestionService) IngestFile(ctx context.Context, filename, title string, data []byte) (*UploadResult, error) {
	if int64(len(data)) > s.maxFileSize {
		return nil, utils.NewError(utils.KindTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", s.maxFileSize))
	}
	if len(data) == 0 {
		return nil, utils.NewError(utils.KindBadInput, "file is empty")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.allowed[ext] {
		return nil, utils.NewError(utils.KindUnsupported,
			fmt.Sprintf("unsupported file type: %q", ext))
	}

	hash := utils.Fingerprint(data)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	existing, err := s.store.GetDocumentByExternalRef(ctx, filename)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.FileHash == hash {
		// Same ref, same bytes: idempotent re-upload.
		return &UploadResult{
			DocumentID:       existing.ID,
			Duplicate:        true,
			Status:           existing.Status,
			ProcessingStatus: "duplicate",
		}, nil
	}

	key := fmt.Sprintf("raw/%s_%s.%s", title, hash[:4], ext)
	if err := s.objects.Put(ctx, key, data, contentTypeFor(ext)); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          uuid.New(),
		ExternalRef: filename,
		Title:       title,
		Status:      models.StatusDraft,
		FileHash:    hash,
		StorageKey:  key,
		Extension:   ext,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	// Same ref with new bytes registers a fresh revision; the caller is
	// told a prior version exists.
	duplicate := existing != nil
	if duplicate {
		logger.Info("Registered new revision for existing reference",
			"external_ref", filename, "previous_id", existing.ID, "document_id", doc.ID)
	}

	return &UploadResult{DocumentID: doc.ID, Duplicate: duplicate, Status: doc.Status}, nil
}

// IngestURL registers a web page as a draft document. The page is fetched
// and parsed when the document is published, not here.
func (s *IngestionService) IngestURL(ctx context.Context, pageURL, title string) (*UploadResult, error) {
	pageURL = strings.TrimSpace(pageURL)
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, utils.NewError(utils.KindBadInput, "url must start with http:// or https://")
	}

	hash := utils.FingerprintString(pageURL)
	if title == "" {
		title = pageURL
	}

	existing, err := s.store.GetDocumentByExternalRef(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &UploadResult{
			DocumentID:       existing.ID,
			Duplicate:        true,
			Status:           existing.Status,
			ProcessingStatus: "duplicate",
		}, nil
	}

	doc := &models.Document{
		ID:          uuid.New(),
		ExternalRef: pageURL,
		Title:       title,
		Status:      models.StatusDraft,
		FileHash:    hash,
		Extension:   ExtensionURL,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return &UploadResult{DocumentID: doc.ID, Status: doc.Status}, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
