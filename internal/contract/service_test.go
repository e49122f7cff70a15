package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/repository"
)

// --- モック定義 ---

type mockContractRepo struct {
	countFn func(ctx context.Context, userID string) (int64, error)
	listFn  func(ctx context.Context, userID string, skip, limit int64) ([]model.Contract, error)
}

func (m *mockContractRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockContractRepo) ListByUserID(ctx context.Context, userID string, skip, limit int64) ([]model.Contract, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, skip, limit)
	}
	return nil, nil
}

var _ repository.ContractRepository = (*mockContractRepo)(nil)

// fakeStore は総件数totalの契約を持つリポジトリとして振る舞う。
func fakeStore(total int64) *mockContractRepo {
	return &mockContractRepo{
		countFn: func(context.Context, string) (int64, error) { return total, nil },
		listFn: func(_ context.Context, _ string, skip, limit int64) ([]model.Contract, error) {
			var out []model.Contract
			for i := skip; i < total && i < skip+limit; i++ {
				out = append(out, model.Contract{"filename": fmt.Sprintf("doc-%d.pdf", i)})
			}
			return out, nil
		},
	}
}

// --- テスト ---

func TestList_SecondPageOfTwentyFive(t *testing.T) {
	var gotSkip, gotLimit int64
	repo := fakeStore(25)
	inner := repo.listFn
	repo.listFn = func(ctx context.Context, userID string, skip, limit int64) ([]model.Contract, error) {
		gotSkip, gotLimit = skip, limit
		return inner(ctx, userID, skip, limit)
	}
	svc := NewService(repo, "https://app.example.com/contracts/")

	page, err := svc.List(context.Background(), "u-1", 2, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(page.Data) != 10 {
		t.Errorf("len(Data) = %d, want 10", len(page.Data))
	}
	if page.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2", page.CurrentPage)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
	if page.TotalDocuments != 25 {
		t.Errorf("TotalDocuments = %d, want 25", page.TotalDocuments)
	}
	if gotSkip != 10 || gotLimit != 10 {
		t.Errorf("skip/limit = %d/%d, want 10/10", gotSkip, gotLimit)
	}
	if page.Data[0]["filename"] != "doc-10.pdf" {
		t.Errorf("first record = %v, want doc-10.pdf", page.Data[0])
	}
}

func TestList_LastPartialPage(t *testing.T) {
	svc := NewService(fakeStore(25), "")

	page, err := svc.List(context.Background(), "u-1", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 5 {
		t.Errorf("len(Data) = %d, want 5", len(page.Data))
	}
}

func TestList_PageBeyondEnd_SkipsQuery(t *testing.T) {
	repo := fakeStore(5)
	repo.listFn = func(context.Context, string, int64, int64) ([]model.Contract, error) {
		t.Error("ListByUserID should not be called past the last page")
		return nil, nil
	}
	svc := NewService(repo, "")

	page, err := svc.List(context.Background(), "u-1", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Data == nil || len(page.Data) != 0 {
		t.Errorf("Data = %#v, want empty non-nil slice", page.Data)
	}
	if page.TotalPages != 1 || page.CurrentPage != 4 {
		t.Errorf("TotalPages/CurrentPage = %d/%d, want 1/4", page.TotalPages, page.CurrentPage)
	}
}

func TestList_NoRecords_IsEmptyPage(t *testing.T) {
	svc := NewService(fakeStore(0), "")

	page, err := svc.List(context.Background(), "u-1", 1, 10)
	if err != nil {
		t.Fatalf("zero records should not be an error, got %v", err)
	}
	if page.TotalPages != 0 || page.TotalDocuments != 0 || len(page.Data) != 0 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestList_ClampsArguments(t *testing.T) {
	var gotSkip, gotLimit int64
	repo := fakeStore(1000)
	repo.listFn = func(_ context.Context, _ string, skip, limit int64) ([]model.Contract, error) {
		gotSkip, gotLimit = skip, limit
		return nil, nil
	}
	svc := NewService(repo, "")

	page, err := svc.List(context.Background(), "u-1", 0, 500)
	if err != nil {
		t.Fatal(err)
	}
	if gotSkip != 0 || gotLimit != MaxLimit {
		t.Errorf("skip/limit = %d/%d, want 0/%d", gotSkip, gotLimit, MaxLimit)
	}
	if page.CurrentPage != 1 || page.TotalPages != 10 {
		t.Errorf("CurrentPage/TotalPages = %d/%d, want 1/10", page.CurrentPage, page.TotalPages)
	}
}

func TestList_MissingUserID_ReturnsInvalidInput(t *testing.T) {
	svc := NewService(fakeStore(1), "")

	_, err := svc.List(context.Background(), "  ", 1, 10)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != model.ErrKindInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestList_RepoError_IsWrapped(t *testing.T) {
	repoErr := errors.New("mongo down")
	svc := NewService(&mockContractRepo{
		countFn: func(context.Context, string) (int64, error) { return 0, repoErr },
	}, "")

	if _, err := svc.List(context.Background(), "u-1", 1, 10); !errors.Is(err, repoErr) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int
	}{
		{"", "", 1, 10},
		{"2", "10", 2, 10},
		{"abc", "x", 1, 10},
		{"-1", "0", 1, 10},
		{" 3 ", "25", 3, 25},
		{"1", "1000", 1, MaxLimit},
	}
	for _, tt := range tests {
		p, l := ParsePagination(tt.page, tt.limit)
		if p != tt.wantPage || l != tt.wantLimit {
			t.Errorf("ParsePagination(%q, %q) = %d, %d; want %d, %d", tt.page, tt.limit, p, l, tt.wantPage, tt.wantLimit)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{25, 10, 3}, {30, 10, 3}, {1, 10, 1}, {0, 10, 0}, {10, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.limit); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestRedirectLink(t *testing.T) {
	svc := NewService(nil, "https://app.example.com/contracts/")

	got, err := svc.RedirectLink("u-42")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://app.example.com/contracts/u-42" {
		t.Errorf("RedirectLink = %q", got)
	}

	if _, err := svc.RedirectLink(""); err == nil {
		t.Error("expected error for empty user id")
	}
}
