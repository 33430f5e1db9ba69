// Package capcut emits an editable project bundle in the draft format used
// by CapCut-family editors: a directory tree with the timeline content file,
// metadata, settings, auxiliary configs, copied media, and an entry in the
// shared cross-project registry.
package capcut

import (
	"strings"

	"github.com/google/uuid"
)

// Stills have no native material kind in the draft schema; they are "photo"
// video materials whose nominal duration is a large sentinel. On-screen time
// comes from the segment's target timerange, not from the material.
const photoDurationMicros = int64(10800000000)

const (
	draftVersion    = "13.0.0"
	draftNewVersion = "110.0.0"
)

// Compositing layers, ascending render order. The editor's renderer draws
// higher values on top, so captions must outrank prompts, which outrank
// overlays, which outrank the primary track.
const (
	renderIndexPrimary = 0
	renderIndexOverlay = 1
	renderIndexPrompt  = 14000
	renderIndexCaption = 15000
)

// newID returns a fresh uppercase identifier in the draft schema's
// canonical form.
func newID() string {
	return strings.ToUpper(uuid.New().String())
}

// Timerange is a half-open window in microseconds.
type Timerange struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

type CanvasConfig struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Ratio  string `json:"ratio"`
}

// VideoMaterial covers both clips (type "video") and stills (type "photo").
type VideoMaterial struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Path         string `json:"path"`
	MaterialName string `json:"material_name"`
	Duration     int64  `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	CropRatio    string `json:"crop_ratio"`
	CategoryName string `json:"category_name"`
}

type AudioMaterial struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Duration int64  `json:"duration"`
}

type TextMaterial struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	FontSize  float64 `json:"font_size"`
	TextColor string  `json:"text_color"`
	Alignment int     `json:"alignment"`
	CheckFlag int     `json:"check_flag"`
}

// SpeedMaterial is mandatory plumbing: every video/audio segment must carry
// a speed reference even at 1.0x, or the editor rejects the project.
type SpeedMaterial struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Speed float64 `json:"speed"`
	Mode  int     `json:"mode"`
}

type CanvasMaterial struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	AlbumImg  string `json:"album_image"`
	BlurLevel string `json:"blur"`
	Color     string `json:"color"`
}

type Materials struct {
	Videos   []VideoMaterial  `json:"videos"`
	Audios   []AudioMaterial  `json:"audios"`
	Texts    []TextMaterial   `json:"texts"`
	Speeds   []SpeedMaterial  `json:"speeds"`
	Canvases []CanvasMaterial `json:"canvases"`
}

type Segment struct {
	ID                string     `json:"id"`
	MaterialID        string     `json:"material_id"`
	TargetTimerange   Timerange  `json:"target_timerange"`
	SourceTimerange   *Timerange `json:"source_timerange"`
	ExtraMaterialRefs []string   `json:"extra_material_refs"`
	Speed             float64    `json:"speed"`
	Volume            float64    `json:"volume"`
	Visible           bool       `json:"visible"`
	RenderIndex       int        `json:"render_index"`
}

type Track struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Attribute int       `json:"attribute"`
	Segments  []Segment `json:"segments"`
}

// Platform is the device/app identity stanza the editor shows in its own
// UI. Sniffed from an existing installation when one is found, otherwise a
// plausible default.
type Platform struct {
	AppID      int64  `json:"app_id"`
	AppSource  string `json:"app_source"`
	AppVersion string `json:"app_version"`
	DeviceID   string `json:"device_id"`
	HardDiskID string `json:"hard_disk_id"`
	MacAddress string `json:"mac_address"`
	OS         string `json:"os"`
	OSVersion  string `json:"os_version"`
}

// DraftContent is the main timeline content file (draft_content.json).
type DraftContent struct {
	ID                   string       `json:"id"`
	Duration             int64        `json:"duration"`
	FPS                  float64      `json:"fps"`
	CanvasConfig         CanvasConfig `json:"canvas_config"`
	Materials            Materials    `json:"materials"`
	Tracks               []Track      `json:"tracks"`
	Platform             Platform     `json:"platform"`
	LastModifiedPlatform Platform     `json:"last_modified_platform"`
	Version              string       `json:"version"`
	NewVersion           string       `json:"new_version"`
}

// MetaInfo is draft_meta_info.json, the bundle-level metadata file.
type MetaInfo struct {
	DraftID            string `json:"draft_id"`
	DraftName          string `json:"draft_name"`
	DraftFoldPath      string `json:"draft_fold_path"`
	DraftRootPath      string `json:"draft_root_path"`
	DraftDuration      int64  `json:"tm_duration"`
	DraftMaterialsSize int64  `json:"draft_timeline_materials_size"`
	TmDraftCreate      int64  `json:"tm_draft_create"`
	TmDraftModified    int64  `json:"tm_draft_modified"`
}

// VirtualStore is draft_virtual_store.json; it lists every material ID so
// the editor's media panel can index the bundle.
type VirtualStore struct {
	DraftMaterials []string           `json:"draft_materials"`
	Store          []VirtualStoreItem `json:"draft_virtual_store"`
}

type VirtualStoreItem struct {
	Type  int                `json:"type"`
	Value []VirtualStoreUnit `json:"value"`
}

type VirtualStoreUnit struct {
	CreationTime int64  `json:"creation_time"`
	DisplayName  string `json:"display_name"`
	FilterType   int    `json:"filter_type"`
	ID           string `json:"id"`
	ImportTime   int64  `json:"import_time"`
	SortSubType  int    `json:"sort_sub_type"`
	SortType     int    `json:"sort_type"`
}

// AgencyConfig is draft_agency_config.json. The field spelling "marterials"
// is the target application's own typo and must be preserved.
type AgencyConfig struct {
	Materials       []AgencyMaterial `json:"marterials"`
	UseConverter    bool             `json:"use_converter"`
	VideoResolution int              `json:"video_resolution"`
}

type AgencyMaterial struct {
	SourcePath   string `json:"source_path"`
	UseConverter bool   `json:"use_converter"`
}

// RootMetaInfo is the shared cross-project registry (root_meta_info.json),
// rewritten wholesale on every registration.
type RootMetaInfo struct {
	AllDraftStore []DraftEntry `json:"all_draft_store"`
	DraftIDs      int64        `json:"draft_ids"`
	RootPath      string       `json:"root_path"`
}

type DraftEntry struct {
	DraftID            string `json:"draft_id"`
	DraftName          string `json:"draft_name"`
	DraftFoldPath      string `json:"draft_fold_path"`
	DraftCover         string `json:"draft_cover"`
	DraftDuration      int64  `json:"tm_duration"`
	DraftMaterialsSize int64  `json:"draft_timeline_materials_size"`
	TmDraftCreate      int64  `json:"tm_draft_create"`
	TmDraftModified    int64  `json:"tm_draft_modified"`
}
