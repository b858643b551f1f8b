package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/postforge/postforge/internal/agent"
	"github.com/postforge/postforge/internal/cache"
	"github.com/postforge/postforge/internal/models"
	"github.com/postforge/postforge/internal/store"
)

// fakeRecords is an in-memory store.Records with switchable failure modes.
type fakeRecords struct {
	posts    map[string]*models.Post
	settings map[string]*models.WebsiteSettings

	settingsReads int
	failStatus    bool
	statuses      []string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		posts:    make(map[string]*models.Post),
		settings: make(map[string]*models.WebsiteSettings),
	}
}

func (f *fakeRecords) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (f *fakeRecords) CreatePost(ctx context.Context, post *models.Post) error {
	f.posts[post.PostID] = post
	return nil
}

func (f *fakeRecords) UpdatePost(ctx context.Context, postID string, attrs map[string]any) error {
	post, ok := f.posts[postID]
	if !ok {
		return fmt.Errorf("post %s not found", postID)
	}
	for name, value := range attrs {
		switch name {
		case models.AttrPostStatus:
			if f.failStatus {
				return errors.New("status write refused")
			}
			post.PostStatus = value.(string)
			f.statuses = append(f.statuses, post.PostStatus)
		case models.AttrResearchArticleURI:
			post.ResearchArticleURI = value.(string)
		case models.AttrRefinedArticleURI:
			post.RefinedArticleURI = value.(string)
		case models.AttrImagePrompts:
			post.ImagePrompts = value.([]models.ImagePrompt)
		case models.AttrImageURIs:
			post.ImageURIs = value.([]string)
		case models.AttrMetadata:
			post.Metadata = value.(*models.Metadata)
		case models.AttrMarkdownURI:
			post.MarkdownURI = value.(string)
		default:
			return fmt.Errorf("unknown post attribute %q", name)
		}
	}
	post.UpdateTimestamp = time.Now().Unix()
	return nil
}

func (f *fakeRecords) GetWebsiteSettings(ctx context.Context, websiteID string) (*models.WebsiteSettings, error) {
	f.settingsReads++
	return f.settings[websiteID], nil
}

func (f *fakeRecords) PutWebsiteSettings(ctx context.Context, settings *models.WebsiteSettings) error {
	f.settings[settings.WebsiteID] = settings
	return nil
}

// fakeAgent replays canned chat responses in order.
type fakeAgent struct {
	responses []string
	calls     []agent.Invocation
	imageURL  string
	err       error
}

func (f *fakeAgent) Generate(ctx context.Context, inv agent.Invocation) (string, error) {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeAgent) GenerateImage(ctx context.Context, req agent.ImageRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.imageURL, nil
}

func testEnv(t *testing.T, records *fakeRecords, client *fakeAgent) *Env {
	t.Helper()
	blobs, err := store.NewFileBlobs(filepath.Join(t.TempDir(), "content"))
	if err != nil {
		t.Fatalf("NewFileBlobs: %v", err)
	}
	return &Env{
		Records: records,
		Blobs:   blobs,
		Agent:   client,
		Images:  store.NewImageFetcher(blobs, 5*time.Second),
	}
}

func seedPost(records *fakeRecords, post *models.Post) {
	records.posts[post.PostID] = post
	records.settings["W1"] = &models.WebsiteSettings{
		WebsiteID:       "W1",
		ToneOfVoice:     "casual",
		NumImagePrompts: 2,
	}
}

func wantKind(t *testing.T, err error, kind ErrKind) *StageError {
	t.Helper()
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a StageError", err)
	}
	if se.Kind != kind {
		t.Fatalf("Kind = %s, want %s (message %q)", se.Kind, kind, se.Message)
	}
	return se
}

func TestProcessMissingIdentifiers(t *testing.T) {
	records := newFakeRecords()
	orch := NewOrchestrator(testEnv(t, records, &fakeAgent{}))

	_, err := orch.Process(context.Background(), "", "W1", ResearchStage())
	wantKind(t, err, InvalidRequest)

	_, err = orch.Process(context.Background(), "P1", "", ResearchStage())
	wantKind(t, err, InvalidRequest)

	if len(records.statuses) != 0 {
		t.Errorf("status writes happened for rejected requests: %v", records.statuses)
	}
}

func TestProcessPostNotFound(t *testing.T) {
	records := newFakeRecords()
	orch := NewOrchestrator(testEnv(t, records, &fakeAgent{}))

	_, err := orch.Process(context.Background(), "absent", "W1", ResearchStage())
	wantKind(t, err, NotFound)
}

func TestProcessOwnershipMismatch(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"should never be used"}}
	orch := NewOrchestrator(testEnv(t, records, client))

	_, err := orch.Process(context.Background(), "P1", "W2", ResearchStage())
	wantKind(t, err, Forbidden)

	if len(client.calls) != 0 {
		t.Error("agent was invoked despite the ownership mismatch")
	}
	last := records.statuses[len(records.statuses)-1]
	if last != "RESEARCH_FAILED" {
		t.Errorf("final status = %q, want RESEARCH_FAILED", last)
	}
}

func TestResearchStageEndToEnd(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "Go Pipelines"})
	client := &fakeAgent{responses: []string{"A thorough research draft."}}
	env := testEnv(t, records, client)
	orch := NewOrchestrator(env)

	result, err := orch.Process(context.Background(), "P1", "W1", ResearchStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.OutputKey != models.AttrResearchArticleURI {
		t.Errorf("OutputKey = %q", result.OutputKey)
	}

	post := records.posts["P1"]
	if post.ResearchArticleURI == "" {
		t.Fatal("researchArticleUri was not recorded")
	}
	if post.PostStatus != "RESEARCH_COMPLETE" {
		t.Errorf("PostStatus = %q", post.PostStatus)
	}

	stored, err := env.Blobs.GetText(context.Background(), post.ResearchArticleURI)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if stored != "A thorough research draft." {
		t.Errorf("stored artifact = %q", stored)
	}

	if len(client.calls) != 1 || !strings.Contains(client.calls[0].Prompt, "Go Pipelines") {
		t.Errorf("research prompt did not carry the topic: %+v", client.calls)
	}
}

func TestResearchStageMissingTitle(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1"})
	orch := NewOrchestrator(testEnv(t, records, &fakeAgent{}))

	_, err := orch.Process(context.Background(), "P1", "W1", ResearchStage())
	wantKind(t, err, InvalidRequest)
}

func TestRefineStageMissingUpstream(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"unused"}}
	orch := NewOrchestrator(testEnv(t, records, client))

	_, err := orch.Process(context.Background(), "P1", "W1", RefineStage())
	se := wantKind(t, err, InvalidRequest)
	if !strings.Contains(se.Message, "previous step") {
		t.Errorf("message = %q", se.Message)
	}
	if len(client.calls) != 0 {
		t.Error("agent was invoked without the upstream artifact")
	}
	if records.posts["P1"].PostStatus != "REFINE_FAILED" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func TestRefineStageEndToEnd(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"The refined article."}}
	env := testEnv(t, records, client)
	orch := NewOrchestrator(env)

	locator, err := env.Blobs.PutText(context.Background(), "W1/P1/research_article.txt", "Raw research.")
	if err != nil {
		t.Fatalf("PutText: %v", err)
	}
	records.posts["P1"].ResearchArticleURI = locator

	result, err := orch.Process(context.Background(), "P1", "W1", RefineStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.OutputKey != models.AttrRefinedArticleURI {
		t.Errorf("OutputKey = %q", result.OutputKey)
	}
	if !strings.Contains(client.calls[0].Prompt, "Raw research.") {
		t.Error("refine prompt did not include the upstream draft")
	}
	if records.posts["P1"].PostStatus != "REFINE_COMPLETE" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func seedRefined(t *testing.T, env *Env, records *fakeRecords) {
	t.Helper()
	locator, err := env.Blobs.PutText(context.Background(), "W1/P1/refined_article.txt", "Refined body.")
	if err != nil {
		t.Fatalf("PutText: %v", err)
	}
	records.posts["P1"].RefinedArticleURI = locator
}

func TestImagePromptStagePairResponse(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{
		`{"prompts": [
			{"prompt": "a harbor at dawn", "slug": "Harbor At Dawn"},
			{"prompt": "a market street", "slug": "market-street"}
		]}`,
	}}
	env := testEnv(t, records, client)
	seedRefined(t, env, records)

	_, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", ImagePromptStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got := records.posts["P1"].ImagePrompts
	want := []models.ImagePrompt{
		{Prompt: "a harbor at dawn", Slug: "harbor-at-dawn"},
		{Prompt: "a market street", Slug: "market-street"},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ImagePrompts = %+v, want %+v", got, want)
	}
	if len(client.calls) != 1 {
		t.Errorf("expected a single agent call, got %d", len(client.calls))
	}
}

func TestImagePromptStageSlugFallback(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{
		`["a harbor at dawn", "a market street"]`,
		`{"slugs": ["Harbor Dawn", ""]}`,
	}}
	env := testEnv(t, records, client)
	seedRefined(t, env, records)

	_, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", ImagePromptStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got := records.posts["P1"].ImagePrompts
	if len(got) != 2 {
		t.Fatalf("ImagePrompts = %+v", got)
	}
	if got[0].Slug != "harbor-dawn" {
		t.Errorf("slug[0] = %q", got[0].Slug)
	}
	// Empty slug from the model falls back to a positional one.
	if got[1].Slug != "image-1" {
		t.Errorf("slug[1] = %q", got[1].Slug)
	}
	if len(client.calls) != 2 {
		t.Errorf("expected two agent calls, got %d", len(client.calls))
	}
}

func TestImagePromptStageUnusableOutput(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"I cannot help with that."}}
	env := testEnv(t, records, client)
	seedRefined(t, env, records)

	_, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", ImagePromptStage())
	se := wantKind(t, err, MalformedModelOutput)
	if se.Detail == "" {
		t.Error("raw model text was not kept in Detail")
	}
	if records.posts["P1"].PostStatus != "IMAGE_PROMPT_FAILED" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func TestImageGenStageEndToEnd(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer server.Close()

	records := newFakeRecords()
	seedPost(records, &models.Post{
		PostID: "P1", WebsiteID: "W1", BlogTitle: "T",
		ImagePrompts: []models.ImagePrompt{
			{Prompt: "a harbor", Slug: "harbor"},
			{Prompt: "a market", Slug: "market"},
		},
	})
	client := &fakeAgent{imageURL: server.URL}
	env := testEnv(t, records, client)

	result, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", ImageGenStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	locators, ok := result.Output.([]string)
	if !ok || len(locators) != 2 {
		t.Fatalf("Output = %#v", result.Output)
	}
	if !strings.HasSuffix(locators[0], "W1/P1/images/harbor.png") {
		t.Errorf("locator[0] = %q", locators[0])
	}
	if records.posts["P1"].PostStatus != "IMAGE_GEN_COMPLETE" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func TestImageGenStageRequiresPrompts(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	orch := NewOrchestrator(testEnv(t, records, &fakeAgent{}))

	_, err := orch.Process(context.Background(), "P1", "W1", ImageGenStage())
	wantKind(t, err, InvalidRequest)
}

func TestMetadataStageEndToEnd(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{
		"```json\n{\"metaTitle\": \"Harbors\", \"metaDescription\": \"About harbors.\", \"keywords\": [\"harbor\", \"dawn\"]}\n```",
	}}
	env := testEnv(t, records, client)
	seedRefined(t, env, records)

	_, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", MetadataStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	meta := records.posts["P1"].Metadata
	if meta == nil || meta.MetaTitle != "Harbors" || len(meta.Keywords) != 2 {
		t.Errorf("Metadata = %+v", meta)
	}
}

func TestMetadataStageMalformedOutput(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"not json at all"}}
	env := testEnv(t, records, client)
	seedRefined(t, env, records)

	_, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", MetadataStage())
	se := wantKind(t, err, MalformedModelOutput)
	if se.Detail != "not json at all" {
		t.Errorf("Detail = %q", se.Detail)
	}
	if records.posts["P1"].PostStatus != "METADATA_FAILED" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func TestMarkdownStageEndToEnd(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{
		PostID: "P1", WebsiteID: "W1", BlogTitle: "T",
		Metadata: &models.Metadata{MetaTitle: "Harbors", MetaDescription: "About harbors."},
	})
	env := testEnv(t, records, &fakeAgent{})
	seedRefined(t, env, records)

	result, err := NewOrchestrator(env).Process(context.Background(), "P1", "W1", MarkdownStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	locator := result.Output.(string)
	doc, err := env.Blobs.GetText(context.Background(), locator)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if !strings.HasPrefix(doc, "---\n") || !strings.Contains(doc, "title: Harbors") {
		t.Errorf("front matter missing: %q", doc)
	}
	if !strings.Contains(doc, "Refined body.") {
		t.Error("article body missing from the document")
	}
	if records.posts["P1"].MarkdownURI != locator {
		t.Errorf("markdownUri = %q, want %q", records.posts["P1"].MarkdownURI, locator)
	}
}

func TestAgentFailureMarksStageFailed(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{err: errors.New("upstream is down")}
	orch := NewOrchestrator(testEnv(t, records, client))

	_, err := orch.Process(context.Background(), "P1", "W1", ResearchStage())
	wantKind(t, err, AgentFailure)
	if records.posts["P1"].PostStatus != "RESEARCH_FAILED" {
		t.Errorf("PostStatus = %q", records.posts["P1"].PostStatus)
	}
}

func TestSettingsServedFromCache(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	client := &fakeAgent{responses: []string{"draft one", "draft two"}}
	env := testEnv(t, records, client)
	env.Cache = cache.NewMockCache()
	env.CacheTTL = time.Minute
	orch := NewOrchestrator(env)

	for i := 0; i < 2; i++ {
		if _, err := orch.Process(context.Background(), "P1", "W1", ResearchStage()); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if records.settingsReads != 1 {
		t.Errorf("settings store reads = %d, want 1", records.settingsReads)
	}
}

func TestStatusWriteFailureDoesNotFailTheStage(t *testing.T) {
	records := newFakeRecords()
	seedPost(records, &models.Post{PostID: "P1", WebsiteID: "W1", BlogTitle: "T"})
	records.failStatus = true
	client := &fakeAgent{responses: []string{"draft"}}
	orch := NewOrchestrator(testEnv(t, records, client))

	result, err := orch.Process(context.Background(), "P1", "W1", ResearchStage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result == nil || records.posts["P1"].ResearchArticleURI == "" {
		t.Error("stage output was not durable despite the status failure")
	}
}

func TestResultMarshalUsesOutputKey(t *testing.T) {
	result := Result{
		Message:   "research stage processed successfully.",
		PostID:    "P1",
		OutputKey: models.AttrResearchArticleURI,
		Output:    "file://content/W1/P1/research_article.txt",
	}
	data, err := result.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if !strings.Contains(string(data), `"researchArticleUri"`) {
		t.Errorf("marshaled result = %s", data)
	}
}
