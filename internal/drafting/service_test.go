package drafting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/signbridge/internal/gemini"
	"github.com/hitoshi/signbridge/internal/model"
	"github.com/hitoshi/signbridge/internal/security"
)

// --- モック定義 ---

type mockGenerator struct {
	generateFn func(ctx context.Context, req gemini.Request) (string, error)
	requests   []gemini.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req gemini.Request) (string, error) {
	m.requests = append(m.requests, req)
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return "", nil
}

// contractThenSummary は1回目に契約書、2回目に要約を返す。
func contractThenSummary(contract, summary string, summaryErr error) func(context.Context, gemini.Request) (string, error) {
	calls := 0
	return func(context.Context, gemini.Request) (string, error) {
		calls++
		if calls == 1 {
			return contract, nil
		}
		return summary, summaryErr
	}
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(gen Generator) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	svc := NewService(gen, security.NewContractSanitizer(), slog.New(slog.NewJSONHandler(&buf, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, &buf
}

// --- テスト ---

func TestDraft_NewContract(t *testing.T) {
	gen := &mockGenerator{generateFn: contractThenSummary("<h1>NDA</h1><p>Terms</p>", "A mutual NDA.", nil)}
	svc, _ := newTestService(gen)

	res, err := svc.Draft(context.Background(), Request{Prompt: "Draft an NDA", Count: 3})
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	if res.Metadata.IsEdit {
		t.Error("expected new-contract mode")
	}
	if res.Metadata.ContractType != DefaultContractType {
		t.Errorf("ContractType = %q, want %q", res.Metadata.ContractType, DefaultContractType)
	}
	if !res.Metadata.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v", res.Metadata.GeneratedAt)
	}
	if len(res.Metadata.Parties) != 3 {
		t.Fatalf("Parties = %v, want 3 names", res.Metadata.Parties)
	}
	seen := map[string]bool{}
	for _, p := range res.Metadata.Parties {
		if seen[p] {
			t.Errorf("duplicate party name %q", p)
		}
		seen[p] = true
	}
	if res.Summary != "A mutual NDA." {
		t.Errorf("Summary = %q", res.Summary)
	}
	if !strings.Contains(res.Response, "<h1") || !strings.Contains(res.Response, "NDA") {
		t.Errorf("Response = %q", res.Response)
	}

	if len(gen.requests) != 2 {
		t.Fatalf("expected 2 generate calls, got %d", len(gen.requests))
	}
	contractReq, summaryReq := gen.requests[0], gen.requests[1]
	if contractReq.MaxOutputTokens != 8192 || summaryReq.MaxOutputTokens != 1024 {
		t.Errorf("max tokens = %d/%d, want 8192/1024", contractReq.MaxOutputTokens, summaryReq.MaxOutputTokens)
	}
	if contractReq.Temperature != 0.3 || contractReq.TopP != 0.8 || contractReq.TopK != 40 {
		t.Errorf("unexpected generation settings: %+v", contractReq)
	}
	for _, p := range res.Metadata.Parties {
		if !strings.Contains(contractReq.Prompt, "- "+p) {
			t.Errorf("instruction should list party %q", p)
		}
	}
}

func TestDraft_EditMode(t *testing.T) {
	gen := &mockGenerator{generateFn: contractThenSummary("<p>Updated</p>", "Updated.", nil)}
	svc, _ := newTestService(gen)

	res, err := svc.Draft(context.Background(), Request{
		Prompt:       "Extend the term to 3 years",
		ExistingText: "<p>Term: 1 year</p>",
		ContractType: "employment",
	})
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	if !res.Metadata.IsEdit {
		t.Error("expected edit mode")
	}
	if res.Metadata.Parties != nil {
		t.Errorf("edit mode should not invent parties, got %v", res.Metadata.Parties)
	}
	if !strings.Contains(gen.requests[0].Prompt, "<p>Term: 1 year</p>") {
		t.Error("edit instruction should include the existing contract")
	}
}

func TestDraft_ForceNewOverridesExistingText(t *testing.T) {
	for _, prompt := range []string{"FORCE NEW lease", "Please create full contract for a lease"} {
		t.Run(prompt, func(t *testing.T) {
			gen := &mockGenerator{generateFn: contractThenSummary("<p>x</p>", "s", nil)}
			svc, _ := newTestService(gen)

			res, err := svc.Draft(context.Background(), Request{Prompt: prompt, ExistingText: "<p>old</p>"})
			if err != nil {
				t.Fatalf("Draft returned error: %v", err)
			}
			if res.Metadata.IsEdit {
				t.Error("force-new prompt should create a new contract")
			}
			if len(res.Metadata.Parties) != MinParties {
				t.Errorf("Parties = %v, want %d", res.Metadata.Parties, MinParties)
			}
		})
	}
}

func TestDraft_SanitizesOutput(t *testing.T) {
	gen := &mockGenerator{generateFn: contractThenSummary(
		`<div style="font-family: Arial"><h1 onclick="x()">T</h1><script>alert(1)</script><iframe src="https://e.example"></iframe></div>`,
		"s", nil)}
	svc, _ := newTestService(gen)

	res, err := svc.Draft(context.Background(), Request{Prompt: "anything"})
	if err != nil {
		t.Fatalf("Draft returned error: %v", err)
	}
	for _, bad := range []string{"<script", "alert", "onclick", "<iframe"} {
		if strings.Contains(res.Response, bad) {
			t.Errorf("Response contains %q: %q", bad, res.Response)
		}
	}
	if !strings.Contains(res.Response, "<h1>T</h1>") {
		t.Errorf("heading should survive, got %q", res.Response)
	}
}

func TestDraft_SummaryFailure_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		err     error
	}{
		{"error", "", errors.New("quota exceeded")},
		{"blank", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{generateFn: contractThenSummary("<p>c</p>", tt.summary, tt.err)}
			svc, _ := newTestService(gen)

			res, err := svc.Draft(context.Background(), Request{Prompt: "p"})
			if err != nil {
				t.Fatalf("Draft returned error: %v", err)
			}
			if res.Summary != "Summary not available" {
				t.Errorf("Summary = %q", res.Summary)
			}
		})
	}
}

func TestDraft_Errors(t *testing.T) {
	tests := []struct {
		name     string
		gen      Generator
		prompt   string
		wantKind model.ErrorKind
		wantMsg  string
	}{
		{"blank prompt", &mockGenerator{}, "  ", model.ErrKindInvalidInput, "Prompt is required"},
		{"disabled", nil, "p", model.ErrKindUpstreamUnavailable, "Failed to reach gemini"},
		{"empty generation", &mockGenerator{generateFn: func(context.Context, gemini.Request) (string, error) {
			return "", gemini.ErrEmptyResponse
		}}, "p", model.ErrKindUpstreamError, "AI did not return any content"},
		{"blank generation", &mockGenerator{generateFn: func(context.Context, gemini.Request) (string, error) {
			return " \n", nil
		}}, "p", model.ErrKindUpstreamError, "AI did not return any content"},
		{"transport failure", &mockGenerator{generateFn: func(context.Context, gemini.Request) (string, error) {
			return "", errors.New("deadline exceeded")
		}}, "p", model.ErrKindUpstreamUnavailable, "Failed to reach gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(tt.gen)
			_, err := svc.Draft(context.Background(), Request{Prompt: tt.prompt})
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Message != tt.wantMsg {
				t.Errorf("got %s %q, want %s %q", apiErr.Kind, apiErr.Message, tt.wantKind, tt.wantMsg)
			}
		})
	}
}

func TestClampParties(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 2}, {-5, 2}, {1, 2}, {2, 2}, {7, 7}, {10, 10}, {11, 10}, {1000, 10},
	}
	for _, tt := range tests {
		if got := ClampParties(tt.in); got != tt.want {
			t.Errorf("ClampParties(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPartyNames_MaxIsDistinct(t *testing.T) {
	svc, _ := newTestService(&mockGenerator{})
	names := svc.partyNames(MaxParties)
	if len(names) != MaxParties {
		t.Fatalf("got %d names", len(names))
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate %q", n)
		}
		seen[n] = true
		if len(strings.Fields(n)) != 2 {
			t.Errorf("name %q should be first and last name", n)
		}
	}
}

func TestRequest_DecodesCount(t *testing.T) {
	tests := []struct {
		body string
		want PartyCount
	}{
		{`{"prompt":"p","count":4}`, 4},
		{`{"prompt":"p","count":"5"}`, 5},
		{`{"prompt":"p","count":"3.9"}`, 3},
		{`{"prompt":"p","count":"many"}`, 0},
		{`{"prompt":"p","count":null}`, 0},
		{`{"prompt":"p","count":-3}`, 0},
		{`{"prompt":"p","count":1e9}`, MaxParties},
		{`{"prompt":"p"}`, 0},
	}
	for _, tt := range tests {
		var req Request
		if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
			t.Errorf("Unmarshal(%s) returned error: %v", tt.body, err)
			continue
		}
		if req.Count != tt.want {
			t.Errorf("Unmarshal(%s).Count = %d, want %d", tt.body, req.Count, tt.want)
		}
	}
}
