package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/guiyumin/mediadrop/internal/core/instagram"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/version"
)

// FileInfo describes one registered file in a download response.
type FileInfo struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// DownloadResult is the data of a successful download. A single file is
// also spelled out at the top level.
type DownloadResult struct {
	Status   string     `json:"status"`
	Platform string     `json:"platform"`
	Files    []FileInfo `json:"files"`

	FileID      string `json:"file_id,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

func newDownloadResult(sub *extractor.Submission) DownloadResult {
	res := DownloadResult{
		Status:   "ok",
		Platform: string(sub.Platform),
		Files:    make([]FileInfo, 0, len(sub.Files)),
	}
	for _, f := range sub.Files {
		res.Files = append(res.Files, FileInfo{
			FileID:      f.ID,
			DownloadURL: "/files/" + f.ID,
			Filename:    f.Filename,
		})
	}
	if len(res.Files) == 1 {
		res.FileID = res.Files[0].FileID
		res.DownloadURL = res.Files[0].DownloadURL
		res.Filename = res.Files[0].Filename
	}
	return res
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
			"files":   s.reg.Len(),
		},
		Message: "everything is good",
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "invalid request body: url is required",
		})
		return
	}

	s.submit(c, extractor.SubmitRequest{
		URL:       req.URL,
		Platform:  req.Platform,
		MediaType: req.MediaType,
		Filename:  req.Filename,
	})
}

// handleDownloadGet acquires and streams the file in one request. Instagram
// posts can yield several files, so they get the JSON list instead.
func (s *Server) handleDownloadGet(c *gin.Context) {
	req := extractor.SubmitRequest{
		URL:       c.Query("url"),
		Platform:  c.Query("platform"),
		MediaType: c.Query("media_type"),
	}

	platform, err := extractor.Resolve(req.URL, req.Platform)
	if err != nil {
		s.fail(c, err)
		return
	}
	if platform == extractor.PlatformInstagram {
		s.submit(c, req)
		return
	}

	release, ok := s.acquireSlot(c)
	if !ok {
		return
	}
	acq, err := s.svc.Acquire(c.Request.Context(), req)
	release()
	if err != nil {
		s.fail(c, err)
		return
	}

	// there is no registry entry, the whole task dir goes once it is sent
	defer s.reg.Release("", acq.Task.Dir)
	defer acq.Done()
	s.serveFile(c, acq.Artifacts[0].Path)
}

func (s *Server) submit(c *gin.Context, req extractor.SubmitRequest) {
	release, ok := s.acquireSlot(c)
	if !ok {
		return
	}
	defer release()

	sub, err := s.svc.Submit(c.Request.Context(), req)
	if err != nil {
		log.Emit(logger.ERROR, "Download of %s failed: %v", req.URL, err)
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    newDownloadResult(sub),
		Message: "download ready",
	})
}

// handleFile serves a registered file once. The entry is consumed before
// streaming so a second request for the same id is a 404.
func (s *Server) handleFile(c *gin.Context) {
	entry, ok := s.reg.Remove(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "file not found",
		})
		return
	}

	defer s.reg.Release("", entry.Path)
	s.serveFile(c, entry.Path)
}

func (s *Server) handleDiagInstagram(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    instagram.Diagnose(s.cfg.Instagram.SessionFile),
		Message: "ok",
	})
}

func (s *Server) serveFile(c *gin.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "file not found",
		})
		return
	}

	c.Header("Content-Type", contentType(path))
	c.FileAttachment(path, filepath.Base(path))
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".mov":  "video/mp4",
	".mkv":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func contentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
