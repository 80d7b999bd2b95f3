package studygen

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/buraktaskin-zmx/sprinai/internal/config"
	"github.com/buraktaskin-zmx/sprinai/internal/document"
	"github.com/buraktaskin-zmx/sprinai/internal/log"
	"github.com/buraktaskin-zmx/sprinai/internal/retrieval"
)

// ============================================================================
// Mocks
// ============================================================================

type mockRetriever struct {
	chunks    []document.Chunk
	err       error
	lastQuery retrieval.Query
}

func (m *mockRetriever) Retrieve(ctx context.Context, q retrieval.Query) ([]document.Chunk, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks, nil
}

// maskRecorder prefixes each chunk so tests can verify masked text, not
// raw text, reaches the analyzer prompt.
type maskRecorder struct {
	calls int
}

func (m *maskRecorder) Mask(chunks []document.Chunk) []document.Chunk {
	m.calls++
	out := make([]document.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = document.Chunk{Text: "MASKED " + c.Text, Tags: c.Tags}
	}
	return out
}

type textReply struct {
	out string
	err error
}

type mockModel struct {
	textQueue []textReply
	quizResp  QuizResponse
	quizErr   error
	cardsResp FlashCardResponse
	cardsErr  error
	onQuiz    func()

	textCalls    int
	quizCalls    int
	cardsCalls   int
	textPrompts  []string
	textProfiles []config.ProfileConfig
	quizPrompt   string
	quizProfile  config.ProfileConfig
}

func (m *mockModel) GenerateText(ctx context.Context, profile config.ProfileConfig, system, prompt string) (string, error) {
	m.textCalls++
	m.textPrompts = append(m.textPrompts, prompt)
	m.textProfiles = append(m.textProfiles, profile)
	if len(m.textQueue) == 0 {
		return "", errors.New("unscripted text call")
	}
	reply := m.textQueue[0]
	m.textQueue = m.textQueue[1:]
	return reply.out, reply.err
}

func (m *mockModel) GenerateQuiz(ctx context.Context, profile config.ProfileConfig, system, prompt string) (QuizResponse, error) {
	m.quizCalls++
	m.quizPrompt = prompt
	m.quizProfile = profile
	if m.onQuiz != nil {
		m.onQuiz()
	}
	return m.quizResp, m.quizErr
}

func (m *mockModel) GenerateFlashCards(ctx context.Context, profile config.ProfileConfig, system, prompt string) (FlashCardResponse, error) {
	m.cardsCalls++
	return m.cardsResp, m.cardsErr
}

// ============================================================================
// Fixtures
// ============================================================================

var testProfiles = Profiles{
	Primary:  config.ProfileConfig{Model: "primary-model", Temperature: 0.2, MaxOutputTokens: 2500, TopP: 0.9},
	Fallback: config.ProfileConfig{Model: "fallback-model", Temperature: 0.5, MaxOutputTokens: 1000, TopP: 0.8},
	Analyzer: config.ProfileConfig{Model: "analyzer-model", Temperature: 0.5, MaxOutputTokens: 1500, TopP: 0.9},
}

var groundedContent = strings.Repeat("The document explains cellular respiration and the role of mitochondria. ", 3)

func sampleChunks() []document.Chunk {
	return []document.Chunk{
		{Text: "mitochondria produce ATP", Tags: document.Tags{Username: "alice"}},
	}
}

func sampleQuiz(n int) QuizResponse {
	resp := QuizResponse{}
	for i := 0; i < n; i++ {
		resp.Questions = append(resp.Questions, QuizQuestion{
			Question: "What do mitochondria produce during cellular respiration in eukaryotic cells?",
			Options:  map[string]string{"A": "ATP", "B": "DNA", "C": "RNA", "D": "Glucose"},
			Answer:   "A",
		})
	}
	return resp
}

func newTestCascade(t *testing.T, retriever *mockRetriever, model *mockModel) *Cascade {
	t.Helper()
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatalf("failed to load prompts: %v", err)
	}
	return NewCascade(retriever, &maskRecorder{}, model, testProfiles, prompts, log.NewNop())
}

// ============================================================================
// Cascade transitions
// ============================================================================

func TestGeneratePrimarySuccess(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		quizResp:  sampleQuiz(5),
	}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if res.Degraded {
		t.Error("primary success must not be degraded")
	}
	if res.Note != "" {
		t.Errorf("note = %q, want empty", res.Note)
	}
	if len(res.Questions) != 5 {
		t.Errorf("questions = %d, want 5", len(res.Questions))
	}
	if model.quizCalls != 1 {
		t.Errorf("quiz calls = %d, want 1", model.quizCalls)
	}
	if model.quizProfile.Model != "primary-model" {
		t.Errorf("primary used profile %q", model.quizProfile.Model)
	}
	if retriever.lastQuery.Username != "alice" {
		t.Errorf("retrieval username = %q", retriever.lastQuery.Username)
	}
}

func TestGenerateMaskedContentReachesAnalyzer(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		quizResp:  sampleQuiz(1),
	}
	c := newTestCascade(t, retriever, model)

	c.Generate(context.Background(), Request{Username: "alice", Kind: KindQuiz})

	if len(model.textPrompts) == 0 {
		t.Fatal("analyzer was never called")
	}
	if !strings.Contains(model.textPrompts[0], "MASKED mitochondria produce ATP") {
		t.Errorf("analyzer prompt must contain masked chunk text:\n%s", model.textPrompts[0])
	}
	if model.textProfiles[0].Model != "analyzer-model" {
		t.Errorf("analysis used profile %q", model.textProfiles[0].Model)
	}
}

func TestGenerateNoChunksGoesToEmergency(t *testing.T) {
	retriever := &mockRetriever{}
	model := &mockModel{}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if !res.Degraded {
		t.Error("emergency result must be degraded")
	}
	if res.Note == "" {
		t.Error("emergency result must carry a note")
	}
	if len(res.Questions) != 3 {
		t.Errorf("questions = %d, want min(5,3)=3", len(res.Questions))
	}
	if model.textCalls != 0 || model.quizCalls != 0 {
		t.Error("no model call may happen without retrieved chunks")
	}
}

func TestGenerateAnalyzerRejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "too short", content: "short summary"},
		{name: "english marker", content: strings.Repeat("x ", 60) + "I don't know what this document is about"},
		{name: "localized marker", content: strings.Repeat("x ", 60) + "Bu sorunun cevabı dokümanda bulunmuyor"},
		{name: "not found marker", content: strings.Repeat("x ", 60) + "Document NOT FOUND in the index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &mockRetriever{chunks: sampleChunks()}
			model := &mockModel{textQueue: []textReply{{out: tt.content}}}
			c := newTestCascade(t, retriever, model)

			res := c.Generate(context.Background(), Request{Username: "alice", ItemCount: 2, Kind: KindQuiz})

			if !res.Degraded {
				t.Error("expected emergency result")
			}
			if len(res.Questions) != 2 {
				t.Errorf("questions = %d, want min(2,3)=2", len(res.Questions))
			}
			if model.quizCalls != 0 {
				t.Error("generation tiers must be skipped without grounding content")
			}
		})
	}
}

func TestGenerateFallbackAfterPrimaryFailure(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{
			{out: groundedContent},
			{out: `Here is your quiz: {"questions":[{"question":"What produces ATP inside the cell according to the text?","options":{"A":"Mitochondria","B":"Nucleus","C":"Ribosome","D":"Vacuole"},"answer":"A"}]} enjoy!`},
		},
		quizErr: errors.New("model overloaded"),
	}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if !res.Degraded {
		t.Error("fallback result must be degraded")
	}
	if res.Note != "generated via fallback" {
		t.Errorf("note = %q", res.Note)
	}
	if len(res.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(res.Questions))
	}
	if res.Questions[0].Answer != "A" {
		t.Errorf("answer = %q", res.Questions[0].Answer)
	}
	if model.textProfiles[1].Model != "fallback-model" {
		t.Errorf("fallback used profile %q", model.textProfiles[1].Model)
	}
}

func TestGenerateBothTiersFail(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{
			{out: groundedContent},
			{out: "sorry, I cannot produce JSON right now"},
		},
		quizErr: errors.New("model overloaded"),
	}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if !res.Degraded {
		t.Error("expected degraded emergency result")
	}
	if res.Note == "" {
		t.Error("expected non-empty note")
	}
	if len(res.Questions) != 3 {
		t.Errorf("questions = %d, want min(5,3)=3", len(res.Questions))
	}
}

func TestGeneratePrimaryEmptyTriggersFallback(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{
			{out: groundedContent},
			{out: `{"questions":[{"question":"Which organelle does the text credit with energy production in the cell?","options":{"A":"Mitochondria","B":"Golgi","C":"Lysosome","D":"Cytoskeleton"},"answer":"A"}]}`},
		},
		quizResp: QuizResponse{}, // schema-valid but empty
	}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", Kind: KindQuiz})

	if !res.Degraded {
		t.Error("empty primary output must degrade")
	}
	if len(res.Questions) != 1 {
		t.Errorf("questions = %d, want 1 from fallback", len(res.Questions))
	}
}

func TestGenerateFallbackTruncatesContent(t *testing.T) {
	longTail := "UNIQUETAILMARKER"
	content := strings.Repeat("a", 2000) + longTail
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{
			{out: content},
			{out: "not json"},
		},
		quizErr: errors.New("down"),
	}
	c := newTestCascade(t, retriever, model)

	c.Generate(context.Background(), Request{Username: "alice", Kind: KindQuiz})

	if len(model.textPrompts) != 2 {
		t.Fatalf("text calls = %d, want 2", len(model.textPrompts))
	}
	if strings.Contains(model.textPrompts[1], longTail) {
		t.Error("fallback prompt must truncate content beyond the character budget")
	}
}

func TestGenerateFlashCards(t *testing.T) {
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		cardsResp: FlashCardResponse{FlashCards: []FlashCard{
			{Front: "ATP", Back: "The energy currency produced by mitochondria"},
		}},
	}
	c := newTestCascade(t, retriever, model)

	res := c.Generate(context.Background(), Request{Username: "alice", Kind: KindFlashCard})

	if res.Degraded {
		t.Error("primary success must not be degraded")
	}
	if len(res.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(res.Cards))
	}
	if res.Cards[0].Front != "ATP" {
		t.Errorf("front = %q", res.Cards[0].Front)
	}
	if model.cardsCalls != 1 {
		t.Errorf("flashcard calls = %d, want 1", model.cardsCalls)
	}
}

func TestGenerateCancelledContextStopsAtTierBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		quizResp:  sampleQuiz(5),
	}
	c := newTestCascade(t, retriever, model)

	// The mock analyzer ignores ctx and succeeds; the boundary check
	// after analysis is what must stop the cascade.
	cancel()
	res := c.Generate(ctx, Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if !res.Degraded {
		t.Error("expected emergency result")
	}
	if model.quizCalls != 0 {
		t.Errorf("primary must not start after cancellation, quiz calls = %d", model.quizCalls)
	}
	if model.textCalls != 1 {
		t.Errorf("only the analyzer may have run, text calls = %d", model.textCalls)
	}
}

func TestGenerateCancelledBetweenPrimaryAndFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		quizErr:   context.Canceled,
	}
	model.onQuiz = cancel // cancellation arrives while the primary call is in flight
	c := newTestCascade(t, retriever, model)

	res := c.Generate(ctx, Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	if !res.Degraded {
		t.Error("expected emergency result")
	}
	if model.quizCalls != 1 {
		t.Errorf("quiz calls = %d, want 1", model.quizCalls)
	}
	if model.textCalls != 1 {
		t.Errorf("fallback must not run after cancellation, text calls = %d", model.textCalls)
	}
}

func TestGenerateLogsItemCount(t *testing.T) {
	var buf bytes.Buffer
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatalf("failed to load prompts: %v", err)
	}
	retriever := &mockRetriever{chunks: sampleChunks()}
	model := &mockModel{
		textQueue: []textReply{{out: groundedContent}},
		quizResp:  sampleQuiz(5),
	}
	c := NewCascade(retriever, &maskRecorder{}, model, testProfiles, prompts, log.NewWithWriter(&buf, log.Config{}))

	c.Generate(context.Background(), Request{Username: "alice", ItemCount: 5, Kind: KindQuiz})

	out := buf.String()
	if !strings.Contains(out, "generation finished") {
		t.Fatalf("missing completion log entry:\n%s", out)
	}
	if !strings.Contains(out, "items=5") {
		t.Errorf("completion log must report the item count:\n%s", out)
	}
}

func TestEmergencyDeterminism(t *testing.T) {
	c1 := newTestCascade(t, &mockRetriever{}, &mockModel{})
	c2 := newTestCascade(t, &mockRetriever{}, &mockModel{})

	req := Request{Username: "alice", ItemCount: 7, Kind: KindQuiz}
	a := c1.Generate(context.Background(), req)
	b := c2.Generate(context.Background(), req)

	if !reflect.DeepEqual(a, b) {
		t.Error("emergency output must be deterministic")
	}
}

func TestRequestDefaults(t *testing.T) {
	quiz := Request{Username: "alice", Kind: KindQuiz}.withDefaults()
	if quiz.ItemCount != DefaultQuizCount || quiz.Difficulty != DefaultDifficulty {
		t.Errorf("quiz defaults = %+v", quiz)
	}

	cards := Request{Username: "alice", Kind: KindFlashCard}.withDefaults()
	if cards.ItemCount != DefaultFlashCardCount {
		t.Errorf("flashcard defaults = %+v", cards)
	}
}

// ============================================================================
// JSON extraction
// ============================================================================

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "bare object", input: `{"a":1}`, want: `{"a":1}`, ok: true},
		{name: "surrounded by prose", input: `Sure! {"a":1} Hope that helps.`, want: `{"a":1}`, ok: true},
		{name: "nested braces", input: `x{"a":{"b":2}}y`, want: `{"a":{"b":2}}`, ok: true},
		{name: "no braces", input: "nothing here", ok: false},
		{name: "only open brace", input: "{oops", ok: false},
		{name: "reversed braces", input: "} {", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := strings.Repeat("ü", 10)
	got := truncate(s, 11)
	if !strings.HasSuffix(got, "ü") || len(got) != 10 {
		t.Errorf("truncate split a rune: %q (len %d)", got, len(got))
	}
	if truncate("short", 100) != "short" {
		t.Error("short strings must pass through unchanged")
	}
}
