package capcut

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"

	"github.com/keagan/cutforge/internal/ffmpeg"
	"github.com/keagan/cutforge/internal/paths"
	"github.com/keagan/cutforge/internal/timeline"
	"github.com/keagan/cutforge/pkg/util"
)

const (
	contentFileName  = "draft_content.json"
	infoFileName     = "draft_info.json"
	metaFileName     = "draft_meta_info.json"
	settingsFileName = "draft_settings"
	storeFileName    = "draft_virtual_store.json"
	agencyFileName   = "draft_agency_config.json"
)

// capabilityDirs must exist (empty) or the editor refuses to open the
// bundle's media panel.
var capabilityDirs = []string{"common_attachment", "matting", "qr_upload", "smart_crop"}

// MediaEngine is the slice of the media toolchain the builder needs:
// probing copied files for real durations and transcoding web-delivery
// codecs the target editor cannot play.
type MediaEngine interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	Transcode(ctx context.Context, input, output string, fn ffmpeg.ProgressFunc) error
}

// Options configures a Builder.
type Options struct {
	Canvas  ffmpeg.Canvas
	RootDir string
}

// Request carries one timeline to serialize into an editable bundle.
type Request struct {
	ProjectName string
	Items       []timeline.Item
	ProjectDir  string
	AudioPath   string
	Overlays    []timeline.Overlay
	CaptionCues []timeline.CaptionCue
	PromptCues  []timeline.PromptCue
}

// Project identifies the bundle a Build call produced.
type Project struct {
	ID        string
	OutputDir string
}

// Builder serializes timelines into draft bundles under a shared root.
type Builder struct {
	logger   zerolog.Logger
	engine   MediaEngine
	canvas   ffmpeg.Canvas
	rootDir  string
	registry *Registry
}

func NewBuilder(logger zerolog.Logger, engine MediaEngine, opts Options) *Builder {
	canvas := opts.Canvas
	if canvas.Width == 0 || canvas.Height == 0 {
		canvas = ffmpeg.Canvas{Width: 1280, Height: 720, FPS: 30}
	}
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = discoverRootDir()
	}
	return &Builder{
		logger:   logger.With().Str("component", "draft").Logger(),
		engine:   engine,
		canvas:   canvas,
		rootDir:  rootDir,
		registry: NewRegistry(logger, rootDir),
	}
}

// discoverRootDir looks for the draft root of an installed editor and falls
// back to a local directory when none is present.
func discoverRootDir() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "Movies", "JianyingPro", "User Data", "Projects", "com.lveditor.draft"),
		filepath.Join(home, "Movies", "CapCut", "User Data", "Projects", "com.lveditor.draft"),
		filepath.Join(os.Getenv("LOCALAPPDATA"), "CapCut", "User Data", "Projects", "com.lveditor.draft"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return filepath.Join(home, ".cutforge", "drafts")
}

// Build runs the full bundle pipeline: stage media, build deduplicated
// materials, lay out tracks and segments, emit the schema files, and
// register the draft. A registry failure is logged and swallowed; the
// bundle on disk is valid either way.
func (b *Builder) Build(ctx context.Context, req Request) (*Project, error) {
	items := make([]timeline.Item, len(req.Items))
	copy(items, req.Items)
	for i := range items {
		if items[i].SourcePath != "" {
			items[i].SourcePath = paths.Resolve(items[i].SourcePath, req.ProjectDir)
		}
	}
	if err := timeline.Validate(items); err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}

	name := sanitizeName(req.ProjectName)
	projectID := newID()
	draftName := name + "_" + strings.ToLower(projectID[:8])
	draftDir := filepath.Join(b.rootDir, draftName)

	for _, sub := range []string{
		filepath.Join("Resources", "video"),
		filepath.Join("Resources", "image"),
		filepath.Join("Resources", "audio"),
	} {
		if err := util.EnsureDir(filepath.Join(draftDir, sub)); err != nil {
			return nil, fmt.Errorf("bundle layout: %w", err)
		}
	}
	for _, sub := range capabilityDirs {
		if err := util.EnsureDir(filepath.Join(draftDir, sub)); err != nil {
			return nil, fmt.Errorf("bundle layout: %w", err)
		}
	}

	b.logger.Info().
		Str("draft", draftName).
		Str("dir", draftDir).
		Int("items", len(items)).
		Msg("building editable project")

	st := &buildState{
		staged:      make(map[string]stagedFile),
		videoByPath: make(map[string]string),
		audioByPath: make(map[string]string),
	}

	durationMicros := timeline.Microseconds(timeline.TotalDuration(items))

	b.buildPrimaryTrack(ctx, st, items, draftDir)
	b.buildOverlayTrack(ctx, st, req, draftDir)
	b.buildAudioTrack(ctx, st, req, draftDir, durationMicros)
	b.buildTextTrack(st, timeline.FilterPromptCues(req.PromptCues), renderIndexPrompt)
	b.buildCaptionTrack(st, timeline.FilterCaptionCues(req.CaptionCues))

	platform := sniffPlatform(b.logger, b.rootDir)
	content := DraftContent{
		ID:       projectID,
		Duration: durationMicros,
		FPS:      b.canvas.FPS,
		CanvasConfig: CanvasConfig{
			Width:  b.canvas.Width,
			Height: b.canvas.Height,
			Ratio:  "original",
		},
		Materials:            st.materials,
		Tracks:               st.tracks,
		Platform:             platform,
		LastModifiedPlatform: platform,
		Version:              draftVersion,
		NewVersion:           draftNewVersion,
	}

	if err := b.emitBundle(draftDir, draftName, projectID, &content, st); err != nil {
		return nil, err
	}

	now := time.Now().UnixMicro()
	err := b.registry.Register(DraftEntry{
		DraftID:            projectID,
		DraftName:          draftName,
		DraftFoldPath:      draftDir,
		DraftDuration:      durationMicros,
		DraftMaterialsSize: st.stagedBytes,
		TmDraftCreate:      now,
		TmDraftModified:    now,
	})
	if err != nil {
		// The bundle is complete and openable; it is just unlisted.
		b.logger.Warn().Err(err).Msg("registry update failed, project left unregistered")
	}

	b.logger.Info().Str("draft", draftName).Msg("editable project ready")
	return &Project{ID: projectID, OutputDir: draftDir}, nil
}

type stagedFile struct {
	path     string
	size     int64
	duration int64
	width    int
	height   int
}

type buildState struct {
	materials   Materials
	tracks      []Track
	staged      map[string]stagedFile
	videoByPath map[string]string // canonical source path -> material ID
	audioByPath map[string]string
	stagedBytes int64
}

func (b *Builder) buildPrimaryTrack(ctx context.Context, st *buildState, items []timeline.Item, draftDir string) {
	track := Track{ID: newID(), Type: "video"}
	for _, item := range items {
		matID := b.videoMaterial(ctx, st, item, draftDir)
		seg := b.videoSegment(st, matID, Timerange{
			Start:    timeline.Microseconds(item.StartTime),
			Duration: timeline.Microseconds(item.Duration),
		}, timeline.Microseconds(item.SourceOffset), renderIndexPrimary)
		track.Segments = append(track.Segments, seg)
	}
	st.tracks = append(st.tracks, track)
}

func (b *Builder) buildOverlayTrack(ctx context.Context, st *buildState, req Request, draftDir string) {
	var segments []Segment
	for _, ovl := range req.Overlays {
		if err := timeline.ValidateOverlay(ovl); err != nil {
			b.logger.Warn().Err(err).Msg("dropping invalid overlay")
			continue
		}
		src := paths.Resolve(ovl.SourcePath, req.ProjectDir)
		item := timeline.Item{
			Kind:       sourceKind(src),
			SourcePath: src,
			Duration:   ovl.EndTime - ovl.StartTime,
		}
		matID := b.videoMaterial(ctx, st, item, draftDir)
		seg := b.videoSegment(st, matID, Timerange{
			Start:    timeline.Microseconds(ovl.StartTime),
			Duration: timeline.Microseconds(ovl.EndTime - ovl.StartTime),
		}, 0, renderIndexOverlay)
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return
	}
	st.tracks = append(st.tracks, Track{ID: newID(), Type: "video", Segments: segments})
}

func (b *Builder) buildAudioTrack(ctx context.Context, st *buildState, req Request, draftDir string, timelineMicros int64) {
	if req.AudioPath == "" {
		return
	}
	src := paths.Resolve(req.AudioPath, req.ProjectDir)
	if !util.FileExists(src) {
		b.logger.Warn().Str("audio", req.AudioPath).Msg("audio track missing, emitting video-only draft")
		return
	}

	key := canonicalPath(src)
	matID, ok := st.audioByPath[key]
	if !ok {
		staged := b.stageFile(ctx, st, src, "audio", draftDir, 0)
		mat := AudioMaterial{
			ID:       newID(),
			Type:     "extract_music",
			Path:     staged.path,
			Name:     filepath.Base(src),
			Duration: staged.duration,
		}
		st.materials.Audios = append(st.materials.Audios, mat)
		st.audioByPath[key] = mat.ID
		matID = mat.ID
	}

	// Shortest-stream policy: the timeline, not the narration, bounds the
	// draft.
	dur := st.staged[key].duration
	if dur <= 0 || dur > timelineMicros {
		dur = timelineMicros
	}

	speed := SpeedMaterial{ID: newID(), Type: "speed", Speed: 1.0, Mode: 0}
	st.materials.Speeds = append(st.materials.Speeds, speed)
	st.tracks = append(st.tracks, Track{
		ID:   newID(),
		Type: "audio",
		Segments: []Segment{{
			ID:                newID(),
			MaterialID:        matID,
			TargetTimerange:   Timerange{Start: 0, Duration: dur},
			SourceTimerange:   &Timerange{Start: 0, Duration: dur},
			ExtraMaterialRefs: []string{speed.ID},
			Speed:             1.0,
			Volume:            1.0,
			Visible:           true,
		}},
	})
}

func (b *Builder) buildTextTrack(st *buildState, cues []timeline.PromptCue, renderIndex int) {
	if len(cues) == 0 {
		return
	}
	track := Track{ID: newID(), Type: "text"}
	for _, cue := range cues {
		mat := b.textMaterial(st, cue.Text)
		// The schema mandates a speed reference on every segment, text
		// included; omitting it produces a project the editor rejects.
		speed := SpeedMaterial{ID: newID(), Type: "speed", Speed: 1.0, Mode: 0}
		st.materials.Speeds = append(st.materials.Speeds, speed)
		track.Segments = append(track.Segments, Segment{
			ID:         newID(),
			MaterialID: mat,
			TargetTimerange: Timerange{
				Start:    timeline.Microseconds(cue.StartTime),
				Duration: timeline.Microseconds(cue.EndTime - cue.StartTime),
			},
			ExtraMaterialRefs: []string{speed.ID},
			Speed:             1.0,
			Volume:            1.0,
			Visible:           true,
			RenderIndex:       renderIndex,
		})
	}
	st.tracks = append(st.tracks, track)
}

func (b *Builder) buildCaptionTrack(st *buildState, cues []timeline.CaptionCue) {
	prompts := make([]timeline.PromptCue, 0, len(cues))
	for _, c := range cues {
		prompts = append(prompts, timeline.PromptCue{
			ID:        c.ID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Text:      c.Text,
		})
	}
	b.buildTextTrack(st, prompts, renderIndexCaption)
}

// videoMaterial returns the material ID for item's source, creating and
// staging it on first sight. Repeated references to the same file share one
// material and one copied file.
func (b *Builder) videoMaterial(ctx context.Context, st *buildState, item timeline.Item, draftDir string) string {
	if item.Kind == timeline.KindPlaceholder || item.SourcePath == "" {
		mat := VideoMaterial{
			ID:           newID(),
			Type:         "photo",
			Path:         "",
			MaterialName: placeholderName(item.Label),
			Duration:     photoDurationMicros,
			Width:        b.canvas.Width,
			Height:       b.canvas.Height,
			CropRatio:    "free",
			CategoryName: "local",
		}
		st.materials.Videos = append(st.materials.Videos, mat)
		return mat.ID
	}

	key := canonicalPath(item.SourcePath)
	if id, ok := st.videoByPath[key]; ok {
		return id
	}

	subdir := "video"
	matType := "video"
	duration := timeline.Microseconds(item.Duration)
	if item.Kind == timeline.KindImage {
		subdir = "image"
		matType = "photo"
		duration = photoDurationMicros
	}

	staged := b.stageFile(ctx, st, item.SourcePath, subdir, draftDir, item.Duration)
	if matType == "video" && staged.duration > 0 {
		duration = staged.duration
	}

	mat := VideoMaterial{
		ID:           newID(),
		Type:         matType,
		Path:         staged.path,
		MaterialName: filepath.Base(item.SourcePath),
		Duration:     duration,
		Width:        staged.width,
		Height:       staged.height,
		CropRatio:    "free",
		CategoryName: "local",
	}
	st.materials.Videos = append(st.materials.Videos, mat)
	st.videoByPath[key] = mat.ID
	return mat.ID
}

func (b *Builder) videoSegment(st *buildState, matID string, target Timerange, sourceStart int64, renderIndex int) Segment {
	speed := SpeedMaterial{ID: newID(), Type: "speed", Speed: 1.0, Mode: 0}
	canvas := CanvasMaterial{ID: newID(), Type: "canvas_color", Color: "#000000"}
	st.materials.Speeds = append(st.materials.Speeds, speed)
	st.materials.Canvases = append(st.materials.Canvases, canvas)

	return Segment{
		ID:                newID(),
		MaterialID:        matID,
		TargetTimerange:   target,
		SourceTimerange:   &Timerange{Start: sourceStart, Duration: target.Duration},
		ExtraMaterialRefs: []string{speed.ID, canvas.ID},
		Speed:             1.0,
		Volume:            1.0,
		Visible:           true,
		RenderIndex:       renderIndex,
	}
}

func (b *Builder) textMaterial(st *buildState, text string) string {
	content, _ := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	mat := TextMaterial{
		ID:        newID(),
		Type:      "subtitle",
		Content:   string(content),
		FontSize:  8.0,
		TextColor: "#FFFFFF",
		Alignment: 1,
		CheckFlag: 7,
	}
	st.materials.Texts = append(st.materials.Texts, mat)
	return mat.ID
}

// stageFile places one source file into the bundle's media subtree. Webm
// sources are transcoded to H.264 MP4 first; a failed transcode falls back
// to a raw copy, and a failed copy references the original in place. No
// single media file aborts the build.
func (b *Builder) stageFile(ctx context.Context, st *buildState, src, subdir, draftDir string, fallbackSec float64) stagedFile {
	key := canonicalPath(src)
	if staged, ok := st.staged[key]; ok {
		return staged
	}

	base := filepath.Base(src)
	dest := filepath.Join(draftDir, "Resources", subdir, base)
	finalPath := dest

	if strings.EqualFold(filepath.Ext(src), ".webm") {
		mp4 := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".mp4"
		if err := b.engine.Transcode(ctx, src, mp4, nil); err == nil {
			finalPath = mp4
		} else {
			b.logger.Warn().Err(err).Str("source", src).Msg("transcode failed, copying raw")
			if copyErr := util.CopyFile(src, dest); copyErr != nil {
				b.logger.Warn().Err(copyErr).Str("source", src).Msg("copy failed, referencing original in place")
				finalPath = src
			}
		}
	} else if err := util.CopyFile(src, dest); err != nil {
		b.logger.Warn().Err(err).Str("source", src).Msg("copy failed, referencing original in place")
		finalPath = src
	}

	staged := stagedFile{path: finalPath}
	if info, err := os.Stat(finalPath); err == nil {
		staged.size = info.Size()
		st.stagedBytes += info.Size()
	}
	if probe, err := b.engine.Probe(ctx, finalPath); err == nil {
		staged.duration = probe.Duration.Microseconds()
		staged.width = probe.Width
		staged.height = probe.Height
	} else if fallbackSec > 0 {
		staged.duration = timeline.Microseconds(fallbackSec)
	}

	st.staged[key] = staged
	return staged
}

func (b *Builder) emitBundle(draftDir, draftName, projectID string, content *DraftContent, st *buildState) error {
	if err := writeJSON(filepath.Join(draftDir, contentFileName), content); err != nil {
		return fmt.Errorf("draft content: %w", err)
	}
	// Older editor builds read draft_info.json; same payload.
	if err := writeJSON(filepath.Join(draftDir, infoFileName), content); err != nil {
		return fmt.Errorf("draft info: %w", err)
	}

	now := time.Now().UnixMicro()
	meta := MetaInfo{
		DraftID:            projectID,
		DraftName:          draftName,
		DraftFoldPath:      draftDir,
		DraftRootPath:      b.rootDir,
		DraftDuration:      content.Duration,
		DraftMaterialsSize: st.stagedBytes,
		TmDraftCreate:      now,
		TmDraftModified:    now,
	}
	if err := writeJSON(filepath.Join(draftDir, metaFileName), &meta); err != nil {
		return fmt.Errorf("draft meta: %w", err)
	}

	if err := writeJSON(filepath.Join(draftDir, storeFileName), virtualStore(&content.Materials)); err != nil {
		return fmt.Errorf("virtual store: %w", err)
	}
	if err := writeJSON(filepath.Join(draftDir, agencyFileName), agencyConfig(st, b.canvas.Height)); err != nil {
		return fmt.Errorf("agency config: %w", err)
	}
	if err := b.writeSettings(filepath.Join(draftDir, settingsFileName)); err != nil {
		return fmt.Errorf("draft settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(draftDir, "template.tmp"), []byte("{}"), 0644); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	return nil
}

func (b *Builder) writeSettings(path string) error {
	f := ini.Empty()
	sec := f.Section("basic")
	sec.Key("video_resolution").SetValue(strconv.Itoa(b.canvas.Height))
	sec.Key("video_fps").SetValue(strconv.FormatFloat(b.canvas.FPS, 'f', 2, 64))
	sec.Key("zoom").SetValue("1.000000")
	sec.Key("use_converter").SetValue("false")
	return f.SaveTo(path)
}

// virtualStore indexes every material ID so the editor's media panel can
// list the bundle's contents.
func virtualStore(m *Materials) *VirtualStore {
	var ids []string
	for _, v := range m.Videos {
		ids = append(ids, v.ID)
	}
	for _, a := range m.Audios {
		ids = append(ids, a.ID)
	}
	for _, t := range m.Texts {
		ids = append(ids, t.ID)
	}

	units := []VirtualStoreUnit{{}}
	for _, id := range ids {
		units = append(units, VirtualStoreUnit{ID: id, DisplayName: "material"})
	}
	return &VirtualStore{
		DraftMaterials: ids,
		Store: []VirtualStoreItem{
			{Type: 0, Value: units},
			{Type: 1, Value: []VirtualStoreUnit{}},
		},
	}
}

func agencyConfig(st *buildState, resolution int) *AgencyConfig {
	cfg := &AgencyConfig{
		Materials:       []AgencyMaterial{},
		UseConverter:    false,
		VideoResolution: resolution,
	}
	for _, staged := range st.staged {
		cfg.Materials = append(cfg.Materials, AgencyMaterial{
			SourcePath:   staged.path,
			UseConverter: true,
		})
	}
	return cfg
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// sourceKind classifies a media file by extension; anything that is not a
// known clip container is treated as a still.
func sourceKind(path string) timeline.ItemKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v":
		return timeline.KindVideo
	}
	return timeline.KindImage
}

func placeholderName(label string) string {
	if label == "" {
		return "placeholder"
	}
	return label
}

func sanitizeName(name string) string {
	if name == "" {
		return "untitled"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
