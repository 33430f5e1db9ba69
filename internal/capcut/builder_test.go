package capcut

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/timeline"
)

type fakeMedia struct {
	transcodeErr error
	transcodes   []string
	probeDur     time.Duration
}

func (f *fakeMedia) Probe(_ context.Context, path string) (*ffmpeg.MediaInfo, error) {
	return &ffmpeg.MediaInfo{FilePath: path, Duration: f.probeDur, Width: 640, Height: 360}, nil
}

func (f *fakeMedia) Transcode(_ context.Context, input, output string, _ ffmpeg.ProgressFunc) error {
	f.transcodes = append(f.transcodes, input)
	if f.transcodeErr != nil {
		return f.transcodeErr
	}
	return os.WriteFile(output, []byte("x"), 0644)
}

func testBuilder(t *testing.T, engine MediaEngine, rootDir string) *Builder {
	t.Helper()
	return NewBuilder(zerolog.Nop(), engine, Options{
		Canvas:  ffmpeg.Canvas{Width: 1280, Height: 720, FPS: 30},
		RootDir: rootDir,
	})
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readContent(t *testing.T, outputDir string) *DraftContent {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(outputDir, contentFileName))
	if err != nil {
		t.Fatal(err)
	}
	var content DraftContent
	if err := json.Unmarshal(raw, &content); err != nil {
		t.Fatal(err)
	}
	return &content
}

func TestBuildDedupesSharedSource(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "shared.png")

	b := testBuilder(t, &fakeMedia{}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "dedup",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 2, StartTime: 0, EndTime: 2},
			{Kind: timeline.KindImage, SourcePath: img, Duration: 2, StartTime: 2, EndTime: 4},
		},
		Overlays: []timeline.Overlay{
			{SourcePath: img, StartTime: 0.5, EndTime: 1.5},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := readContent(t, proj.OutputDir)
	if len(content.Materials.Videos) != 1 {
		t.Fatalf("three references to one file must share one material, got %d", len(content.Materials.Videos))
	}

	// One copied file, three segments pointing at the one material.
	entries, err := os.ReadDir(filepath.Join(proj.OutputDir, "Resources", "image"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected a single staged copy, got %d", len(entries))
	}
	matID := content.Materials.Videos[0].ID
	refs := 0
	for _, track := range content.Tracks {
		for _, seg := range track.Segments {
			if seg.MaterialID == matID {
				refs++
			}
		}
	}
	if refs != 3 {
		t.Errorf("expected 3 segments referencing the material, got %d", refs)
	}
}

func TestBuildIDsPairwiseDistinct(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "frame.png")
	audio := writeSource(t, srcDir, "voice.m4a")

	b := testBuilder(t, &fakeMedia{probeDur: 9 * time.Second}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "ids",
		ProjectDir:  srcDir,
		AudioPath:   audio,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 4, StartTime: 0, EndTime: 4},
			{Kind: timeline.KindPlaceholder, Duration: 3, StartTime: 4, EndTime: 7, Label: "beat"},
		},
		CaptionCues: []timeline.CaptionCue{
			{ID: "c", StartTime: 0, EndTime: 1, Text: "hi"},
		},
		PromptCues: []timeline.PromptCue{
			{ID: "p", StartTime: 1, EndTime: 2, Text: "prompt"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := readContent(t, proj.OutputDir)
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" {
			t.Error("empty identifier emitted")
		}
		if id != strings.ToUpper(id) {
			t.Errorf("identifier not case-normalized: %q", id)
		}
		if seen[id] {
			t.Errorf("duplicate identifier %q", id)
		}
		seen[id] = true
	}

	add(content.ID)
	for _, m := range content.Materials.Videos {
		add(m.ID)
	}
	for _, m := range content.Materials.Audios {
		add(m.ID)
	}
	for _, m := range content.Materials.Texts {
		add(m.ID)
	}
	for _, m := range content.Materials.Speeds {
		add(m.ID)
	}
	for _, m := range content.Materials.Canvases {
		add(m.ID)
	}
	for _, track := range content.Tracks {
		add(track.ID)
		for _, seg := range track.Segments {
			add(seg.ID)
		}
	}
}

func TestBuildTextSegmentsReferenceSpeed(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "bg.png")

	b := testBuilder(t, &fakeMedia{}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "text-speed",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 4, StartTime: 0, EndTime: 4},
		},
		PromptCues: []timeline.PromptCue{
			{ID: "p", StartTime: 0, EndTime: 2, Text: "scene"},
		},
		CaptionCues: []timeline.CaptionCue{
			{ID: "c", StartTime: 1, EndTime: 3, Text: "line"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := readContent(t, proj.OutputDir)
	speeds := map[string]SpeedMaterial{}
	for _, s := range content.Materials.Speeds {
		speeds[s.ID] = s
	}

	textSegments := 0
	for _, track := range content.Tracks {
		if track.Type != "text" {
			continue
		}
		for _, seg := range track.Segments {
			textSegments++
			if len(seg.ExtraMaterialRefs) != 1 {
				t.Fatalf("text segment %s must carry a speed reference, got %v", seg.ID, seg.ExtraMaterialRefs)
			}
			s, ok := speeds[seg.ExtraMaterialRefs[0]]
			if !ok {
				t.Errorf("text segment %s references %q which is not a speed material", seg.ID, seg.ExtraMaterialRefs[0])
				continue
			}
			if s.Speed != 1.0 {
				t.Errorf("speed material %s = %vx, want 1.0x", s.ID, s.Speed)
			}
		}
	}
	if textSegments != 2 {
		t.Errorf("expected 2 text segments, got %d", textSegments)
	}
}

func TestBuildVideoOverlayTyped(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "bg.png")
	clip := writeSource(t, srcDir, "sticker.mp4")

	b := testBuilder(t, &fakeMedia{probeDur: 5 * time.Second}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "video-overlay",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 4, StartTime: 0, EndTime: 4},
		},
		Overlays: []timeline.Overlay{
			{SourcePath: clip, StartTime: 1, EndTime: 3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := readContent(t, proj.OutputDir)
	var overlayMat *VideoMaterial
	for i := range content.Materials.Videos {
		if content.Materials.Videos[i].MaterialName == "sticker.mp4" {
			overlayMat = &content.Materials.Videos[i]
		}
	}
	if overlayMat == nil {
		t.Fatal("overlay material missing")
	}
	if overlayMat.Type != "video" {
		t.Errorf("clip overlay must be a video material, got %q", overlayMat.Type)
	}
	if overlayMat.Duration == photoDurationMicros {
		t.Error("clip overlay must not carry the still-image sentinel duration")
	}
	if !strings.Contains(overlayMat.Path, filepath.Join("Resources", "video")) {
		t.Errorf("clip overlay staged under %q, want the video subtree", overlayMat.Path)
	}
}

func TestBuildSharedVideoAudioStagedOnce(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	clip := writeSource(t, srcDir, "interview.mp4")

	b := testBuilder(t, &fakeMedia{probeDur: 6 * time.Second}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "shared",
		ProjectDir:  srcDir,
		AudioPath:   clip,
		Items: []timeline.Item{
			{Kind: timeline.KindVideo, SourcePath: clip, Duration: 6, StartTime: 0, EndTime: 6},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The file copies once; the audio material reuses the staged copy.
	staged := 0
	var stagedPath string
	for _, sub := range []string{"video", "image", "audio"} {
		entries, err := os.ReadDir(filepath.Join(proj.OutputDir, "Resources", sub))
		if err != nil {
			t.Fatal(err)
		}
		staged += len(entries)
		if len(entries) > 0 {
			stagedPath = filepath.Join(proj.OutputDir, "Resources", sub, entries[0].Name())
		}
	}
	if staged != 1 {
		t.Fatalf("one source file must stage exactly once, got %d copies", staged)
	}

	content := readContent(t, proj.OutputDir)
	if got := content.Materials.Videos[0].Path; got != stagedPath {
		t.Errorf("video material path = %q, want staged copy %q", got, stagedPath)
	}
	if got := content.Materials.Audios[0].Path; got != stagedPath {
		t.Errorf("audio material path = %q, want staged copy %q", got, stagedPath)
	}
}

func TestBuildTwiceDistinctProjectsAndCounter(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "only.png")

	req := Request{
		ProjectName: "repeat",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 2, StartTime: 0, EndTime: 2},
		},
	}

	b := testBuilder(t, &fakeMedia{}, rootDir)
	first, err := b.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID {
		t.Error("identical inputs must still yield distinct project IDs")
	}
	if first.OutputDir == second.OutputDir {
		t.Error("identical inputs must still yield distinct project directories")
	}

	raw, err := os.ReadFile(filepath.Join(rootDir, registryFileName))
	if err != nil {
		t.Fatal(err)
	}
	var root RootMetaInfo
	if err := json.Unmarshal(raw, &root); err != nil {
		t.Fatal(err)
	}
	if root.DraftIDs != 2 {
		t.Errorf("draft counter must increase by one per run, got %d", root.DraftIDs)
	}
	if len(root.AllDraftStore) != 2 {
		t.Fatalf("expected 2 registry entries, got %d", len(root.AllDraftStore))
	}
	if root.AllDraftStore[0].DraftID != second.ID {
		t.Error("registry entries must be most-recent-first")
	}
}

func TestBuildWebmTranscoded(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	webm := writeSource(t, srcDir, "clip.webm")

	b := testBuilder(t, &fakeMedia{probeDur: 5 * time.Second}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "webm",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindVideo, SourcePath: webm, Duration: 5, StartTime: 0, EndTime: 5},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content := readContent(t, proj.OutputDir)
	if got := content.Materials.Videos[0].Path; !strings.HasSuffix(got, "clip.mp4") {
		t.Errorf("webm source must be staged as mp4, got %q", got)
	}
}

func TestBuildWebmTranscodeFallsBackToCopy(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	webm := writeSource(t, srcDir, "clip.webm")

	engine := &fakeMedia{transcodeErr: errors.New("no encoder")}
	b := testBuilder(t, engine, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "webm-fallback",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindVideo, SourcePath: webm, Duration: 5, StartTime: 0, EndTime: 5},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.transcodes) != 1 {
		t.Fatalf("expected one transcode attempt, got %d", len(engine.transcodes))
	}

	content := readContent(t, proj.OutputDir)
	got := content.Materials.Videos[0].Path
	if !strings.HasSuffix(got, "clip.webm") {
		t.Errorf("failed transcode must fall back to a raw copy, got %q", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("staged copy missing: %v", err)
	}
}

func TestBuildRegistryFailureNonFatal(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "pic.png")

	// A directory squatting on the registry path makes every read and write
	// fail.
	if err := os.Mkdir(filepath.Join(rootDir, registryFileName), 0755); err != nil {
		t.Fatal(err)
	}

	b := testBuilder(t, &fakeMedia{}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "unregistered",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 2, StartTime: 0, EndTime: 2},
		},
	})
	if err != nil {
		t.Fatalf("registry failure must not fail the build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(proj.OutputDir, contentFileName)); err != nil {
		t.Errorf("bundle must remain valid on disk: %v", err)
	}
}

func TestBuildBundleLayout(t *testing.T) {
	srcDir := t.TempDir()
	rootDir := t.TempDir()
	img := writeSource(t, srcDir, "a.png")
	vid := writeSource(t, srcDir, "b.mp4")

	b := testBuilder(t, &fakeMedia{probeDur: 5 * time.Second}, rootDir)
	proj, err := b.Build(context.Background(), Request{
		ProjectName: "layout check",
		ProjectDir:  srcDir,
		Items: []timeline.Item{
			{Kind: timeline.KindImage, SourcePath: img, Duration: 4, StartTime: 0, EndTime: 4},
			{Kind: timeline.KindPlaceholder, Duration: 3, StartTime: 4, EndTime: 7},
			{Kind: timeline.KindVideo, SourcePath: vid, Duration: 5, StartTime: 7, EndTime: 12, SourceOffset: 1.5},
		},
		Overlays: []timeline.Overlay{
			{SourcePath: img, StartTime: 1, EndTime: 3},
		},
		PromptCues: []timeline.PromptCue{
			{ID: "p", StartTime: 0, EndTime: 2, Text: "scene one"},
		},
		CaptionCues: []timeline.CaptionCue{
			{ID: "c", StartTime: 0, EndTime: 1, Text: "hello"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		contentFileName, infoFileName, metaFileName, settingsFileName,
		storeFileName, agencyFileName, "template.tmp",
	} {
		if _, err := os.Stat(filepath.Join(proj.OutputDir, name)); err != nil {
			t.Errorf("missing bundle file %s: %v", name, err)
		}
	}
	for _, dir := range capabilityDirs {
		info, err := os.Stat(filepath.Join(proj.OutputDir, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("missing capability dir %s", dir)
		}
	}

	content := readContent(t, proj.OutputDir)
	if content.Duration != 12000000 {
		t.Errorf("draft duration = %d, want 12000000", content.Duration)
	}

	// Stills and placeholders are photo materials with the sentinel
	// duration; the segment's target timerange governs screen time.
	photos := 0
	for _, m := range content.Materials.Videos {
		if m.Type == "photo" {
			photos++
			if m.Duration != photoDurationMicros {
				t.Errorf("photo material duration = %d, want sentinel", m.Duration)
			}
		}
	}
	if photos != 2 {
		t.Errorf("expected 2 photo materials (still + placeholder), got %d", photos)
	}

	// Layering: primary < overlay < prompt < caption.
	var indices []int
	for _, track := range content.Tracks {
		if len(track.Segments) == 0 || track.Type == "audio" {
			continue
		}
		indices = append(indices, track.Segments[0].RenderIndex)
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			t.Errorf("render order not ascending: %v", indices)
		}
	}

	// Every video segment carries speed and canvas references.
	for _, seg := range content.Tracks[0].Segments {
		if len(seg.ExtraMaterialRefs) != 2 {
			t.Errorf("video segment must reference speed and canvas materials, got %v", seg.ExtraMaterialRefs)
		}
		if seg.Speed != 1.0 {
			t.Errorf("segment speed = %v, want 1.0", seg.Speed)
		}
	}

	// The video segment seeks its source offset.
	videoSeg := content.Tracks[0].Segments[2]
	if videoSeg.SourceTimerange.Start != 1500000 {
		t.Errorf("source timerange start = %d, want 1500000", videoSeg.SourceTimerange.Start)
	}
}
