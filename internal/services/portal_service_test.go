package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/utils"
)

type fakePortalRepo struct {
	inserted  []*models.PortalMessage
	similar   []models.PortalMessage
	searchErr error
	searched  bool
}

func (f *fakePortalRepo) Insert(_ context.Context, m *models.PortalMessage) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakePortalRepo) LatestN(_ context.Context, patientID string, n int) ([]models.PortalMessage, error) {
	var out []models.PortalMessage
	for _, m := range f.inserted {
		if m.PatientID == patientID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakePortalRepo) SearchSimilar(_ context.Context, _ string, _ []float32, _ int) ([]models.PortalMessage, error) {
	f.searched = true
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.similar, nil
}

type fakeLatestRepo struct {
	latest *models.Consultation
}

func (f *fakeLatestRepo) Create(_ context.Context, _ *models.Consultation) error { return nil }
func (f *fakeLatestRepo) GetByID(_ context.Context, _ string) (*models.Consultation, error) {
	return nil, utils.ErrNotFound
}
func (f *fakeLatestRepo) ListByDoctor(_ context.Context, _ string, _ int) ([]models.Consultation, error) {
	return nil, nil
}
func (f *fakeLatestRepo) LatestByPatient(_ context.Context, _ string) (*models.Consultation, error) {
	if f.latest == nil {
		return nil, utils.ErrNotFound
	}
	return f.latest, nil
}

type fakeChatService struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeChatService) Reply(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeEmbeddingService struct {
	vec []float32
	err error
}

func (f *fakeEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func TestPortalSendMessageStoresEmbeddings(t *testing.T) {
	repo := &fakePortalRepo{}
	chat := &fakeChatService{reply: "Take your medication as prescribed."}
	embed := &fakeEmbeddingService{vec: []float32{0.1, 0.2, 0.3}}
	svc := NewPortalService(repo, &fakeLatestRepo{}, chat, embed, nil, nil)

	in, out, err := svc.SendMessage(context.Background(), "pat-1", "When should I take the pills?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("inserted %d messages, want 2", len(repo.inserted))
	}
	if in.Embedding == nil || out.Embedding == nil {
		t.Errorf("embeddings not stored: patient=%v assistant=%v", in.Embedding, out.Embedding)
	}
	if got := in.Embedding.Slice(); len(got) != 3 {
		t.Errorf("patient embedding dims = %d, want 3", len(got))
	}
}

func TestPortalSendMessageWithoutEmbedder(t *testing.T) {
	repo := &fakePortalRepo{}
	chat := &fakeChatService{reply: "ok"}
	svc := NewPortalService(repo, &fakeLatestRepo{}, chat, nil, nil, nil)

	in, out, err := svc.SendMessage(context.Background(), "pat-1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// No embedder means the column stays NULL; a zero-length vector would be
	// rejected by the dimension-typed column.
	if in.Embedding != nil || out.Embedding != nil {
		t.Errorf("embeddings should be nil without an embedder")
	}
	if repo.searched {
		t.Errorf("similarity recall should be skipped without a query vector")
	}
}

func TestPortalSendMessageEmbedFailureDegrades(t *testing.T) {
	repo := &fakePortalRepo{}
	chat := &fakeChatService{reply: "ok"}
	embed := &fakeEmbeddingService{err: errors.New("quota")}
	svc := NewPortalService(repo, &fakeLatestRepo{}, chat, embed, nil, nil)

	in, out, err := svc.SendMessage(context.Background(), "pat-1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if in.Embedding != nil || out.Embedding != nil {
		t.Errorf("failed embed must leave the vector unset, got patient=%v assistant=%v", in.Embedding, out.Embedding)
	}
}

func TestPortalSemanticRecallInPrompt(t *testing.T) {
	repo := &fakePortalRepo{similar: []models.PortalMessage{
		{Role: "patient", Content: "My headaches come back at night"},
		{Role: "assistant", Content: "Track when the pain starts"},
	}}
	chat := &fakeChatService{reply: "ok"}
	embed := &fakeEmbeddingService{vec: []float32{0.5, 0.5}}
	latest := &fakeLatestRepo{latest: &models.Consultation{Diagnosis: "Migraine"}}
	svc := NewPortalService(repo, latest, chat, embed, nil, nil)

	if _, _, err := svc.SendMessage(context.Background(), "pat-1", "The headache is back"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !repo.searched {
		t.Fatalf("similarity recall was not queried")
	}
	if !strings.Contains(chat.lastPrompt, "My headaches come back at night") {
		t.Errorf("prompt missing recalled message, got:\n%s", chat.lastPrompt)
	}
	if !strings.Contains(chat.lastPrompt, "Diagnosis: Migraine") {
		t.Errorf("prompt missing consultation context, got:\n%s", chat.lastPrompt)
	}
}

func TestPortalRecallFailureDegrades(t *testing.T) {
	repo := &fakePortalRepo{searchErr: errors.New("index offline")}
	chat := &fakeChatService{reply: "still fine"}
	embed := &fakeEmbeddingService{vec: []float32{0.5}}
	svc := NewPortalService(repo, &fakeLatestRepo{}, chat, embed, nil, nil)

	_, out, err := svc.SendMessage(context.Background(), "pat-1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if out.Content != "still fine" {
		t.Errorf("reply = %q, want model answer despite recall failure", out.Content)
	}
}

func TestPortalFallbackReply(t *testing.T) {
	repo := &fakePortalRepo{}
	chat := &fakeChatService{err: errors.New("model down")}
	svc := NewPortalService(repo, &fakeLatestRepo{}, chat, nil, nil, nil)

	_, out, err := svc.SendMessage(context.Background(), "pat-1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if out.Content != portalFallbackReply {
		t.Errorf("reply = %q, want deterministic fallback", out.Content)
	}
}
