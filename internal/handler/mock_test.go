package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/signbridge/internal/drafting"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/profile"
	"github.com/hitoshi/signbridge/internal/submission"
)

// --- モック定義 ---

type mockSessionService struct {
	putFn    func(ctx context.Context, identity *model.Identity) (string, error)
	getFn    func(ctx context.Context, token string) (*model.Identity, error)
	deleteFn func(ctx context.Context, token string) error
}

func (m *mockSessionService) Put(ctx context.Context, identity *model.Identity) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, identity)
	}
	if !identity.Valid() {
		return "", model.NewInvalidInputError("Missing user data")
	}
	return "token-1", nil
}

func (m *mockSessionService) Get(ctx context.Context, token string) (*model.Identity, error) {
	if m.getFn != nil {
		return m.getFn(ctx, token)
	}
	return nil, model.NewUnauthenticatedError()
}

func (m *mockSessionService) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

type mockProfileService struct {
	ensureProfileFn func(ctx context.Context, p *model.UserProfile) error
	getFn           func(ctx context.Context, userID string) (*model.UserProfile, error)
}

func (m *mockProfileService) EnsureProfile(ctx context.Context, p *model.UserProfile) error {
	if m.ensureProfileFn != nil {
		return m.ensureProfileFn(ctx, p)
	}
	return nil
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, model.NewNotFoundError("User profile not found")
}

func (m *mockProfileService) Links(p *model.UserProfile) profile.NavLinks {
	base := "https://app.wesignature.com"
	if p != nil && p.ParentURL != "" {
		base = p.ParentURL
	}
	return profile.NavLinks{Dashboard: base + "/dashboard", AI: "https://ai.example.com/"}
}

type mockSubmissionService struct {
	sendToSignatureFn func(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
	storeFileFn       func(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
	saveTemplateFn    func(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error)
}

func (m *mockSubmissionService) SendToSignature(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error) {
	if m.sendToSignatureFn != nil {
		return m.sendToSignatureFn(ctx, identity, up)
	}
	return "https://app.wesignature.com/document/edit/g-1", nil
}

func (m *mockSubmissionService) StoreFile(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error) {
	if m.storeFileFn != nil {
		return m.storeFileFn(ctx, identity, up)
	}
	return "https://app.wesignature.com/files/1", nil
}

func (m *mockSubmissionService) SaveTemplate(ctx context.Context, identity *model.Identity, up *submission.Upload) (string, error) {
	if m.saveTemplateFn != nil {
		return m.saveTemplateFn(ctx, identity, up)
	}
	return "https://app.wesignature.com/templates/1", nil
}

type mockContractService struct {
	listFn         func(ctx context.Context, userID string, page, limit int) (*model.ContractPage, error)
	redirectLinkFn func(userID string) (string, error)
}

func (m *mockContractService) List(ctx context.Context, userID string, page, limit int) (*model.ContractPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, page, limit)
	}
	return &model.ContractPage{Data: []model.Contract{}, CurrentPage: page}, nil
}

func (m *mockContractService) RedirectLink(userID string) (string, error) {
	if m.redirectLinkFn != nil {
		return m.redirectLinkFn(userID)
	}
	if userID == "" {
		return "", model.NewInvalidInputError("Missing user id")
	}
	return "https://ai.example.com/contracts/" + userID, nil
}

type mockDraftingService struct {
	draftFn func(ctx context.Context, req drafting.Request) (*drafting.Result, error)
}

func (m *mockDraftingService) Draft(ctx context.Context, req drafting.Request) (*drafting.Result, error) {
	if m.draftFn != nil {
		return m.draftFn(ctx, req)
	}
	return &drafting.Result{Response: "<p>x</p>", Summary: "s"}, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

// --- テストヘルパー ---

var testIdentity = &model.Identity{UserID: "user-123", APIKey: "key-1", Name: "Jane Doe", Email: "jane@x.com"}

// validSession はtokenが "valid-token" の場合のみtestIdentityを返すセッションサービス。
func validSession() *mockSessionService {
	return &mockSessionService{getFn: func(_ context.Context, token string) (*model.Identity, error) {
		if token == "valid-token" {
			return testIdentity, nil
		}
		return nil, model.NewUnauthenticatedError()
	}}
}

// decodeBody はレスポンスボディをmapとしてデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return body
}
