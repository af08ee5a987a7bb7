package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"EmberFM/core/utils"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

func sanitizeObjectName(name string) string {
	name = multipleSpaces.ReplaceAllString(strings.TrimSpace(name), "_")
	name = nonAlphaNumeric.ReplaceAllString(name, "")
	if name == "" {
		name = "untitled"
	}
	if len(name) > 150 {
		name = name[:150]
	}
	return name
}

// ListTracksHandler serves the dashboard catalog. The Redis heat board is
// tried first; the in-memory list is the fallback and the truth.
func (h *APIHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	if h.catalog != nil {
		if tracks, err := h.catalog.Hottest(r.Context(), 100); err == nil && len(tracks) > 0 {
			writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks, "source": "cache"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": h.engine.Tracks(), "source": "memory"})
}

// VoteRequest represents the vote request body
type VoteRequest struct {
	Direction model.VoteDirection `json:"direction"`
}

// VoteHandler applies an up/down vote to a track.
func (h *APIHandler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	track, err := h.engine.Vote(r.Context(), trackID, req.Direction)
	if err != nil {
		logger.Warn("[Vote] 投票失败",
			logger.String("trackId", trackID),
			logger.String("direction", string(req.Direction)),
			logger.ErrorField(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"track": track})
}

// LoadTrackRequest represents the player load request body
type LoadTrackRequest struct {
	TrackID string `json:"trackId"`
	Preview *bool  `json:"preview,omitempty"` // defaults to true
}

// LoadTrackHandler creates a fresh playback session for a track.
func (h *APIHandler) LoadTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req LoadTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	track, ok := h.engine.Track(req.TrackID)
	if !ok {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	asPreview := true
	if req.Preview != nil {
		asPreview = *req.Preview
	}
	if err := h.engine.LoadTrack(track, asPreview); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": h.engine.Session()})
}

// TogglePlayPauseHandler flips playback on the active session.
func (h *APIHandler) TogglePlayPauseHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.TogglePlayPause()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": snap})
}

// SkipTrackHandler advances past the current session explicitly.
func (h *APIHandler) SkipTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.engine.Skip()
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": h.engine.Session()})
}

// PlaybackSessionHandler returns the current playback snapshot.
func (h *APIHandler) PlaybackSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": h.engine.Session()})
}

// UploadTrackHandler handles audio file uploads and metadata.
// Expected multipart form fields:
// - trackFile: the audio file (WAV, MP3, etc.)
// - title: track title
// - artist: display artist (optional, defaults to uploader)
// - genre: genre tag (optional)
// - coverFile: cover art image (JPEG, PNG, optional)
// Only artist-role profiles may upload.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile := h.manager.Get(principal).Profile()
	if profile == nil || profile.Role != model.RoleArtist {
		http.Error(w, "Only artists can upload tracks", http.StatusForbidden)
		return
	}

	if err := r.ParseMultipartForm(200 << 20); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	artist := strings.TrimSpace(r.FormValue("artist"))
	if artist == "" {
		artist = profile.DisplayName
	}
	genre := strings.TrimSpace(r.FormValue("genre"))

	trackFile, trackHeader, err := r.FormFile("trackFile")
	if err != nil {
		http.Error(w, "trackFile is required", http.StatusBadRequest)
		return
	}
	defer trackFile.Close()

	trackID := uuid.NewString()

	ext := filepath.Ext(trackHeader.Filename)
	if ext == "" {
		ext = ".mp3"
	}

	// ffmpeg 需要本地文件，先落盘再处理
	stagedPath, size, err := stageUpload(trackFile, ext)
	if err != nil {
		logger.Error("[Upload] 暂存上传失败", logger.ErrorField(err))
		writeError(w, err)
		return
	}
	defer os.Remove(stagedPath)

	coverURL := ""
	if coverFile, coverHeader, err := r.FormFile("coverFile"); err == nil {
		defer coverFile.Close()
		object := fmt.Sprintf("tracks/%s/cover%s", trackID, filepath.Ext(coverHeader.Filename))
		if url, err := h.uploadWithProgress(r.Context(), object, coverFile, coverHeader.Size, coverHeader.Header.Get("Content-Type")); err != nil {
			logger.Warn("[Upload] 封面上传失败", logger.ErrorField(err))
		} else {
			coverURL = url
		}
	}

	track, err := h.ingestTrack(r.Context(), ingestInput{
		trackID:     trackID,
		title:       title,
		artist:      artist,
		genre:       genre,
		stagedPath:  stagedPath,
		ext:         ext,
		size:        size,
		contentType: trackHeader.Header.Get("Content-Type"),
		coverURL:    coverURL,
	})
	if err != nil {
		logger.Error("[Upload] 曲目入库失败",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, err)
		return
	}

	h.engine.AddTrack(r.Context(), *track)
	logger.Info("[Upload] 曲目上传成功",
		logger.String("trackId", trackID),
		logger.String("title", title))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"track": track})
}

// ImportTrackRequest pulls a track into the catalog from a remote URL
// instead of a direct upload.
type ImportTrackRequest struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Genre    string `json:"genre,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// ImportTrackHandler downloads a remote audio source and runs it through
// the same ingest pipeline as direct uploads. Artist-only, like uploads.
func (h *APIHandler) ImportTrackHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile := h.manager.Get(principal).Profile()
	if profile == nil || profile.Role != model.RoleArtist {
		http.Error(w, "Only artists can import tracks", http.StatusForbidden)
		return
	}

	var req ImportTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Title) == "" {
		http.Error(w, "url and title are required", http.StatusBadRequest)
		return
	}
	artist := strings.TrimSpace(req.Artist)
	if artist == "" {
		artist = profile.DisplayName
	}

	stagedPath, err := utils.FetchToTemp(r.Context(), req.URL)
	if err != nil {
		logger.Error("[Import] 远程音源下载失败",
			logger.String("url", req.URL),
			logger.ErrorField(err))
		http.Error(w, "Failed to fetch remote audio", http.StatusBadGateway)
		return
	}
	defer os.Remove(stagedPath)

	info, err := os.Stat(stagedPath)
	if err != nil {
		writeError(w, err)
		return
	}

	ext := utils.RemoteExt(req.URL)
	if ext == "" {
		ext = ".mp3"
	}

	trackID := uuid.NewString()
	track, err := h.ingestTrack(r.Context(), ingestInput{
		trackID:    trackID,
		title:      strings.TrimSpace(req.Title),
		artist:     artist,
		genre:      strings.TrimSpace(req.Genre),
		stagedPath: stagedPath,
		ext:        ext,
		size:       info.Size(),
		coverURL:   strings.TrimSpace(req.CoverURL),
	})
	if err != nil {
		logger.Error("[Import] 曲目入库失败",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, err)
		return
	}

	h.engine.AddTrack(r.Context(), *track)
	logger.Info("[Import] 曲目导入成功",
		logger.String("trackId", trackID),
		logger.String("title", track.Title))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"track": track})
}

// stageUpload copies a multipart stream to a temp file so ffmpeg can seek
// it. Returns the temp path and the byte count.
func stageUpload(src multipart.File, ext string) (string, int64, error) {
	tmp, err := os.CreateTemp("", "emberfm-upload-*"+ext)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("failed to stage upload: %w", err)
	}
	return tmp.Name(), size, nil
}

type ingestInput struct {
	trackID     string
	title       string
	artist      string
	genre       string
	stagedPath  string
	ext         string
	size        int64
	contentType string
	coverURL    string
}

// ingestTrack cuts the preview clip from the staged audio, pushes both
// sources to object storage and records the track with baseline heat.
func (h *APIHandler) ingestTrack(ctx context.Context, in ingestInput) (*model.Track, error) {
	duration, err := h.clipper.Duration(ctx, in.stagedPath)
	if err != nil {
		logger.Warn("[Upload] 无法读取音频时长", logger.ErrorField(err))
	}

	base := sanitizeObjectName(in.artist + "_" + in.title)
	audioObject := fmt.Sprintf("tracks/%s/%s%s", in.trackID, base, in.ext)

	full, err := os.Open(in.stagedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen staged upload: %w", err)
	}
	defer full.Close()

	audioURL, err := h.uploadWithProgress(ctx, audioObject, full, in.size, in.contentType)
	if err != nil {
		return nil, err
	}

	// 截取30秒试听片段；失败时退回完整音源，不阻塞上传
	previewURL := audioURL
	previewPath := in.stagedPath + ".preview" + in.ext
	if err := h.clipper.Clip(ctx, in.stagedPath, previewPath); err != nil {
		logger.Warn("[Upload] 试听片段生成失败，使用完整音源", logger.ErrorField(err))
	} else {
		defer os.Remove(previewPath)
		if url, err := h.uploadFile(ctx, fmt.Sprintf("tracks/%s/preview%s", in.trackID, in.ext), previewPath); err != nil {
			logger.Warn("[Upload] 试听片段上传失败，使用完整音源", logger.ErrorField(err))
		} else {
			previewURL = url
		}
	}

	track := &model.Track{
		ID:              in.trackID,
		Title:           in.title,
		Artist:          in.artist,
		Genre:           in.genre,
		CoverArtURL:     in.coverURL,
		AudioURL:        audioURL,
		PreviewURL:      previewURL,
		DurationSeconds: duration,
		HeatScore:       model.HeatBaseline,
	}
	if err := h.trackRepo.CreateTrack(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

// uploadWithProgress streams an object to storage, logging progress at
// quarter intervals.
func (h *APIHandler) uploadWithProgress(ctx context.Context, object string, r io.Reader, size int64, contentType string) (string, error) {
	var lastQuarter int64 = -1
	return storage.Upload(ctx, object, r, size, contentType, func(transferred, total int64) {
		if total <= 0 {
			return
		}
		quarter := transferred * 4 / total
		if quarter > lastQuarter {
			lastQuarter = quarter
			logger.Debug("[Upload] 进度",
				logger.String("object", object),
				logger.Int64("transferred", transferred),
				logger.Int64("total", total))
		}
	})
}

func (h *APIHandler) uploadFile(ctx context.Context, object, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return h.uploadWithProgress(ctx, object, f, info.Size(), "")
}
